package arena

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/bodgit/arena/cfa"
	"github.com/stretchr/testify/require"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// testAnimation returns an encoded animation with n frames of w x h, each
// frame filled with a pattern seeded by its index.
func testAnimation(t *testing.T, n, w, h int) []byte {
	t.Helper()

	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}

	frames := make([]*image.Paletted, n)
	for i := range frames {
		m := image.NewPaletted(image.Rect(0, 0, w, h), p)
		for j := range m.Pix {
			m.Pix[j] = uint8((i + j) % 12)
		}
		frames[i] = m
	}

	b := new(bytes.Buffer)
	require.NoError(t, cfa.Encode(b, frames, -4, 9))
	return b.Bytes()
}

func testDB(t *testing.T) *AssetDB {
	t.Helper()

	db, err := NewAssetDB(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
