package arena

import (
	"crypto/sha1"
	"database/sql"
	"fmt"

	"github.com/bodgit/arena/cfa"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
)

// Asset describes one catalogued animation.
type Asset struct {
	Name   string
	SHA1   string
	Config cfa.Config
}

// AssetDB is a SQLite catalogue of decoded animations. The decoded pixels
// are stored zstd compressed so an animation can be restored without the
// original file.
type AssetDB struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewAssetDB opens or creates the catalogue in file.
func NewAssetDB(file string) (*AssetDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS animation (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, sha1 TEXT NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, x_offset INTEGER NOT NULL, y_offset INTEGER NOT NULL, bit_width INTEGER NOT NULL, frames INTEGER NOT NULL, pixels BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &AssetDB{
		db:  db,
		enc: enc,
		dec: dec,
	}, nil
}

// Close closes the catalogue.
func (db *AssetDB) Close() error {
	db.dec.Close()
	if err := db.enc.Close(); err != nil {
		db.db.Close()
		return err
	}
	return db.db.Close()
}

// Checksum returns the hash used to detect when an animation has changed.
func Checksum(b []byte) string {
	return fmt.Sprintf("%X", sha1.Sum(b))
}

// Add stores f under name, replacing any previous animation with that name
// unless the checksum is unchanged. It returns the row id. It is safe to
// call concurrently for the same name.
func (db *AssetDB) Add(name, sha string, f *cfa.File) (int64, error) {
	c := f.Config()
	pixels := db.enc.EncodeAll(f.Pix(), nil)

	// A single statement so concurrent writers can't both insert
	if _, err := db.db.Exec("INSERT INTO animation (name, sha1, width, height, x_offset, y_offset, bit_width, frames, pixels) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(name) DO UPDATE SET sha1 = excluded.sha1, width = excluded.width, height = excluded.height, x_offset = excluded.x_offset, y_offset = excluded.y_offset, bit_width = excluded.bit_width, frames = excluded.frames, pixels = excluded.pixels WHERE sha1 <> excluded.sha1", name, sha, c.Width, c.Height, c.XOffset, c.YOffset, c.BitWidth, c.Frames, pixels); err != nil {
		return 0, err
	}

	var id int64
	if err := db.db.QueryRow("SELECT id FROM animation WHERE name = ?", name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Find restores the animation stored under name. It returns nil if there
// is no such animation.
func (db *AssetDB) Find(name string) (*cfa.File, error) {
	var c cfa.Config
	var pixels []byte
	switch err := db.db.QueryRow("SELECT width, height, x_offset, y_offset, bit_width, frames, pixels FROM animation WHERE name = ?", name).Scan(&c.Width, &c.Height, &c.XOffset, &c.YOffset, &c.BitWidth, &c.Frames, &pixels); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		pix, err := db.dec.DecodeAll(pixels, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return cfa.New(c, pix)
	default:
		return nil, err
	}
}

// List returns every catalogued animation ordered by name.
func (db *AssetDB) List() ([]Asset, error) {
	rows, err := db.db.Query("SELECT name, sha1, width, height, x_offset, y_offset, bit_width, frames FROM animation ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Name, &a.SHA1, &a.Config.Width, &a.Config.Height, &a.Config.XOffset, &a.Config.YOffset, &a.Config.BitWidth, &a.Config.Frames); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
