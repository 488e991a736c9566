package cfa

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"runtime"
	"sync"
)

var (
	// ErrCorruptHeader is returned when the header is truncated or
	// structurally invalid.
	ErrCorruptHeader = errors.New("cfa: corrupt header")
	// ErrInvalidDimensions is returned when the frame count, width or
	// height is zero.
	ErrInvalidDimensions = errors.New("cfa: invalid dimensions")
	// ErrTruncatedFrameData is returned when there is less pixel data than
	// the header and bit width require.
	ErrTruncatedFrameData = errors.New("cfa: truncated frame data")
	// ErrUnsupportedBitWidth is returned for a bit width outside 1 to 7.
	ErrUnsupportedBitWidth = errors.New("cfa: unsupported bit width")
	// ErrIndexOutOfRange is returned when accessing a frame that doesn't
	// exist.
	ErrIndexOutOfRange = errors.New("cfa: frame index out of range")
	// ErrColorIndex is returned when a code has no entry in the lookup
	// table.
	ErrColorIndex = errors.New("cfa: color index outside lookup table")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// File is a decoded CFA animation. It is safe for concurrent use as nothing
// can modify it once decoded.
type File struct {
	config Config
	pix    []byte
}

// Frame is a read only view of a single frame's palette indices.
type Frame struct {
	pix           []byte
	width, height int
}

type decoder struct {
	h       *header
	payload []byte
	pix     []byte
}

func (d *decoder) decodeFrame(i int) error {
	desc := d.h.descriptor(i)
	src := d.payload[desc.offset : desc.offset+desc.length]

	w := d.h.Width
	dst := d.pix[i*w*d.h.Height : (i+1)*w*d.h.Height]

	for y := 0; y < d.h.Height; y++ {
		row := dst[y*w : (y+1)*w]
		if err := Unpack(row, src[y*d.h.stride:(y+1)*d.h.stride], desc.bitWidth); err != nil {
			return err
		}

		// An empty table means the codes are the palette indices
		if len(d.h.table) == 0 {
			continue
		}
		for x, c := range row {
			if int(c) >= len(d.h.table) {
				return fmt.Errorf("%w: code %d at (%d, %d), table has %d entries", ErrColorIndex, c, x, y, len(d.h.table))
			}
			row[x] = d.h.table[c]
		}
	}

	return nil
}

func (d *decoder) decodeFrames() error {
	frames := d.h.Frames
	if frames < parallelThreshold {
		for i := 0; i < frames; i++ {
			if err := d.decodeFrame(i); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		return nil
	}

	// Each frame writes to its own slot in the arena so no locking is
	// needed, only the errors are collected
	errs := make([]error, frames)
	in := make(chan int)

	var wg sync.WaitGroup
	workers := runtime.NumCPU()
	if workers > frames {
		workers = frames
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range in {
				errs[i] = d.decodeFrame(i)
			}
		}()
	}
	for i := 0; i < frames; i++ {
		in <- i
	}
	close(in)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func (d *decoder) decode(b []byte) error {
	h, err := readHeader(b)
	if err != nil {
		return err
	}
	d.h = h

	if err := h.checkSize(len(b) - h.size); err != nil {
		return err
	}

	d.payload = make([]byte, h.payloadSize())
	if _, err := expand(d.payload, b[h.size:]); err != nil {
		return err
	}

	d.pix = make([]byte, h.Frames*h.Width*h.Height)

	return d.decodeFrames()
}

// Load decodes a complete CFA file held in b. Either every frame decodes or
// an error is returned and no File is produced. b is not modified or
// retained.
func Load(b []byte) (*File, error) {
	var d decoder
	if err := d.decode(b); err != nil {
		return nil, err
	}
	return &File{
		config: d.h.Config,
		pix:    d.pix,
	}, nil
}

// Decode reads a CFA file from r until EOF and decodes it.
func Decode(r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// DecodeConfig returns the geometry of a CFA file without decoding any
// frames.
func DecodeConfig(r io.Reader) (Config, error) {
	var b [headerLen]byte
	if err := readFull(r, b[:]); err != nil {
		if err != io.ErrUnexpectedEOF {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	h, err := parseHeader(b[:])
	if err != nil {
		return Config{}, err
	}
	return h.Config, nil
}

// New returns a File built from frames already decoded into one contiguous
// buffer, such as one previously returned by Pix. pix is copied.
func New(c Config, pix []byte) (*File, error) {
	if c.Width <= 0 || c.Height <= 0 || c.Frames <= 0 {
		return nil, fmt.Errorf("%w: %d frames of %dx%d", ErrInvalidDimensions, c.Frames, c.Width, c.Height)
	}
	if c.BitWidth < minBitWidth || c.BitWidth > maxBitWidth {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitWidth, c.BitWidth)
	}
	if need := c.Frames * c.Width * c.Height; len(pix) != need {
		return nil, fmt.Errorf("%w: %d bytes of pixels, need %d", ErrTruncatedFrameData, len(pix), need)
	}
	return &File{
		config: c,
		pix:    append([]byte(nil), pix...),
	}, nil
}

// Config returns the geometry shared by all frames.
func (f *File) Config() Config {
	return f.config
}

// Len returns the number of frames.
func (f *File) Len() int {
	return f.config.Frames
}

// Width returns the width of every frame.
func (f *File) Width() int {
	return f.config.Width
}

// Height returns the height of every frame.
func (f *File) Height() int {
	return f.config.Height
}

// XOffset returns the horizontal anchor of every frame.
func (f *File) XOffset() int {
	return f.config.XOffset
}

// YOffset returns the vertical anchor of every frame.
func (f *File) YOffset() int {
	return f.config.YOffset
}

// BitWidth returns the number of bits each pixel was packed into.
func (f *File) BitWidth() int {
	return f.config.BitWidth
}

// Frame returns frame i, or ErrIndexOutOfRange.
func (f *File) Frame(i int) (Frame, error) {
	if i < 0 || i >= f.config.Frames {
		return Frame{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, f.config.Frames)
	}
	n := f.config.Width * f.config.Height
	return Frame{
		pix:    f.pix[i*n : (i+1)*n : (i+1)*n],
		width:  f.config.Width,
		height: f.config.Height,
	}, nil
}

// Pix returns a copy of every frame's palette indices laid out one after
// the other.
func (f *File) Pix() []byte {
	return append([]byte(nil), f.pix...)
}

// Len returns the number of pixels in the frame.
func (f Frame) Len() int {
	return len(f.pix)
}

// Bounds returns the frame rectangle, anchored at (0, 0).
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// ColorIndexAt returns the palette index at (x, y), or 0 outside the frame.
func (f Frame) ColorIndexAt(x, y int) uint8 {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return 0
	}
	return f.pix[y*f.width+x]
}

// Pix returns a copy of the frame's palette indices in row order.
func (f Frame) Pix() []byte {
	return append([]byte(nil), f.pix...)
}

// Paletted returns the frame as an image using palette p.
func (f Frame) Paletted(p color.Palette) *image.Paletted {
	m := image.NewPaletted(f.Bounds(), p)
	copy(m.Pix, f.pix)
	return m
}
