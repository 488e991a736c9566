package cfa

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture describes a CFA file to be assembled by hand
type fixture struct {
	width, height    int
	stride           int
	xOffset, yOffset int
	bitWidth         int
	frames           int
	headerSize       int // defaults to headerLen+len(table)
	table            []byte
	payload          []byte // packed rows, before compression
}

func (f fixture) bytes() []byte {
	size := f.headerSize
	if size == 0 {
		size = headerLen + len(f.table)
	}

	b := make([]byte, headerLen)
	binary.LittleEndian.PutUint16(b[0:], uint16(f.width))
	binary.LittleEndian.PutUint16(b[2:], uint16(f.height))
	binary.LittleEndian.PutUint16(b[4:], uint16(f.stride))
	binary.LittleEndian.PutUint16(b[6:], uint16(int16(f.xOffset)))
	binary.LittleEndian.PutUint16(b[8:], uint16(int16(f.yOffset)))
	b[10] = byte(f.bitWidth)
	b[11] = byte(f.frames)
	binary.LittleEndian.PutUint16(b[12:], uint16(size))

	b = append(b, f.table...)
	return append(b, compress(f.payload)...)
}

// The 2x2, 3 bit frame; each 6 bit row is padded to a whole byte
func smallFixture() fixture {
	return fixture{
		width:    2,
		height:   2,
		stride:   1,
		xOffset:  -3,
		yOffset:  12,
		bitWidth: 3,
		frames:   1,
		payload:  []byte{0xb4, 0x18},
	}
}

func TestLoad(t *testing.T) {
	f, err := Load(smallFixture().bytes())
	require.NoError(t, err)

	assert.Equal(t, 1, f.Len())
	assert.Equal(t, 2, f.Width())
	assert.Equal(t, 2, f.Height())
	assert.Equal(t, -3, f.XOffset())
	assert.Equal(t, 12, f.YOffset())
	assert.Equal(t, 3, f.BitWidth())

	frame, err := f.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, 4, frame.Len())
	assert.Equal(t, []byte{5, 5, 0, 6}, frame.Pix())
	assert.Equal(t, uint8(6), frame.ColorIndexAt(1, 1))
	assert.Equal(t, uint8(0), frame.ColorIndexAt(2, 0))
}

func TestLoadLookupTable(t *testing.T) {
	fx := fixture{
		width:    4,
		height:   1,
		stride:   1,
		bitWidth: 2,
		frames:   2,
		table:    []byte{10, 20, 30, 40},
		payload:  []byte{0x1b, 0xe4},
	}

	f, err := Load(fx.bytes())
	require.NoError(t, err)

	frame, err := f.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40}, frame.Pix())

	frame, err = f.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 30, 20, 10}, frame.Pix())

	fx.table = fx.table[:3]
	_, err = Load(fx.bytes())
	assert.ErrorIs(t, err, ErrColorIndex)
}

func TestLoadRowPadding(t *testing.T) {
	// 3 pixels of 7 bits in a 4 byte row, the last 11 bits are padding
	fx := fixture{
		width:    3,
		height:   2,
		stride:   4,
		bitWidth: 7,
		frames:   1,
		payload:  []byte{0x03, 0x05, 0x80, 0xff, 0xfe, 0x00, 0x00, 0x00},
	}

	f, err := Load(fx.bytes())
	require.NoError(t, err)

	frame, err := f.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 65, 48, 127, 0, 0}, frame.Pix())
}

func TestFrameIndexOutOfRange(t *testing.T) {
	f, err := Load(smallFixture().bytes())
	require.NoError(t, err)

	_, err = f.Frame(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = f.Frame(f.Len())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	// The file is still usable
	_, err = f.Frame(0)
	assert.NoError(t, err)
}

func TestFrameIsReadOnly(t *testing.T) {
	f, err := Load(smallFixture().bytes())
	require.NoError(t, err)

	frame, err := f.Frame(0)
	require.NoError(t, err)

	pix := frame.Pix()
	pix[0] = 0xff

	frame, err = f.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), frame.ColorIndexAt(0, 0))
}

func TestLoadManyFrames(t *testing.T) {
	// Enough frames to be unpacked concurrently, each filled with its own
	// index so ordering can be checked
	fx := fixture{
		width:    5,
		height:   3,
		stride:   PackedLen(5, 5),
		bitWidth: 5,
		frames:   parallelThreshold + 9,
	}

	row := make([]byte, 5)
	packed := make([]byte, fx.stride)
	for i := 0; i < fx.frames; i++ {
		for x := range row {
			row[x] = byte(i)
		}
		require.NoError(t, Pack(packed, row, 5))
		for y := 0; y < fx.height; y++ {
			fx.payload = append(fx.payload, packed...)
		}
	}

	f, err := Load(fx.bytes())
	require.NoError(t, err)
	require.Equal(t, fx.frames, f.Len())

	for i := 0; i < f.Len(); i++ {
		frame, err := f.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, f.Width()*f.Height(), frame.Len())
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 15), frame.Pix(), "frame %d", i)
	}
}

func TestLoadTruncatedFrames(t *testing.T) {
	fx := fixture{
		width:    8,
		height:   4,
		stride:   3,
		bitWidth: 3,
		frames:   4,
		payload:  bytes.Repeat([]byte{0x05, 0x39, 0x77}, 4*4),
	}

	b := fx.bytes()
	// Cut the stream part way through the third frame
	cut := headerLen + len(compress(fx.payload[:2*12+6]))

	f, err := Load(b[:cut])
	assert.ErrorIs(t, err, ErrTruncatedFrameData)
	assert.Nil(t, f)
}

func TestLoadErrors(t *testing.T) {
	valid := smallFixture()

	tests := []struct {
		name string
		b    func() []byte
		err  error
	}{
		{
			name: "empty",
			b:    func() []byte { return nil },
			err:  ErrCorruptHeader,
		},
		{
			name: "short header",
			b:    func() []byte { return valid.bytes()[:headerLen-1] },
			err:  ErrCorruptHeader,
		},
		{
			name: "header size too small",
			b: func() []byte {
				fx := valid
				fx.headerSize = headerLen - 2
				return fx.bytes()
			},
			err: ErrCorruptHeader,
		},
		{
			name: "header size past end",
			b: func() []byte {
				fx := valid
				fx.headerSize = 1000
				return fx.bytes()
			},
			err: ErrCorruptHeader,
		},
		{
			name: "no frames",
			b: func() []byte {
				fx := valid
				fx.frames = 0
				return fx.bytes()
			},
			err: ErrInvalidDimensions,
		},
		{
			name: "zero width",
			b: func() []byte {
				fx := valid
				fx.width = 0
				return fx.bytes()
			},
			err: ErrInvalidDimensions,
		},
		{
			name: "zero height",
			b: func() []byte {
				fx := valid
				fx.height = 0
				return fx.bytes()
			},
			err: ErrInvalidDimensions,
		},
		{
			name: "zero bit width",
			b: func() []byte {
				fx := valid
				fx.bitWidth = 0
				return fx.bytes()
			},
			err: ErrUnsupportedBitWidth,
		},
		{
			name: "8 bit width",
			b: func() []byte {
				fx := valid
				fx.bitWidth = 8
				return fx.bytes()
			},
			err: ErrUnsupportedBitWidth,
		},
		{
			name: "row stride too small",
			b: func() []byte {
				fx := valid
				fx.width = 3
				return fx.bytes()
			},
			err: ErrTruncatedFrameData,
		},
		{
			name: "missing pixel data",
			b:    func() []byte { return valid.bytes()[:headerLen] },
			err:  ErrTruncatedFrameData,
		},
		{
			name: "impossibly large frames",
			b: func() []byte {
				fx := valid
				fx.width, fx.height, fx.stride, fx.frames = 0xffff, 0xffff, 0xffff, 0xff
				return fx.bytes()
			},
			err: ErrTruncatedFrameData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Load(tt.b())
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, f)
		})
	}
}

func TestDecode(t *testing.T) {
	f, err := Decode(bytes.NewReader(smallFixture().bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}

func TestDecodeConfig(t *testing.T) {
	c, err := DecodeConfig(bytes.NewReader(smallFixture().bytes()))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Width:    2,
		Height:   2,
		XOffset:  -3,
		YOffset:  12,
		BitWidth: 3,
		Frames:   1,
	}, c)

	_, err = DecodeConfig(bytes.NewReader(make([]byte, 10)))
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestNew(t *testing.T) {
	c := Config{Width: 2, Height: 1, BitWidth: 4, Frames: 2}
	pix := []byte{1, 2, 3, 4}

	f, err := New(c, pix)
	require.NoError(t, err)
	pix[0] = 9

	frame, err := f.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, frame.Pix())
	assert.Equal(t, []byte{1, 2, 3, 4}, f.Pix())

	_, err = New(c, pix[:3])
	assert.ErrorIs(t, err, ErrTruncatedFrameData)

	c.Frames = 0
	_, err = New(c, nil)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestHeaderCheckSize(t *testing.T) {
	tests := []struct {
		name   string
		h      header
		avail  int
		err    error
		accept bool
	}{
		{
			name:   "fits",
			h:      header{Config: Config{Width: 8, Height: 4, Frames: 2}, stride: 3},
			avail:  2,
			accept: true,
		},
		{
			name:   "exactly the expansion limit",
			h:      header{Config: Config{Width: 1, Height: 1, Frames: 1}, stride: 3 * rleMaxLen},
			avail:  4,
			accept: true,
		},
		{
			name:  "just over the expansion limit",
			h:     header{Config: Config{Width: 1, Height: 1, Frames: 1}, stride: 3*rleMaxLen + 1},
			avail: 4,
			err:   ErrTruncatedFrameData,
		},
		{
			// The payload product is more than 32 bits wide
			name:  "largest possible header",
			h:     header{Config: Config{Width: maxWidth, Height: maxWidth, Frames: maxFrames}, stride: maxWidth},
			avail: 1 << 20,
			err:   ErrTruncatedFrameData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.checkSize(tt.avail)
			if tt.accept {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
