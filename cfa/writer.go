package cfa

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/ericpauley/go-quantize/quantize"
)

type encoder struct {
	w io.Writer

	width, height int
	bitWidth      int
	stride        int

	// code for each palette index, and the reverse
	codes [256]byte
	table []byte
}

// Every pixel of every frame, in order
func pixels(frames []*image.Paletted, fn func(uint8) error) error {
	for _, m := range frames {
		b := m.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if err := fn(m.ColorIndexAt(x, y)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func usedIndices(frames []*image.Paletted) []uint8 {
	var seen [256]bool
	_ = pixels(frames, func(i uint8) error {
		seen[i] = true
		return nil
	})
	var used []uint8
	for i, ok := range seen {
		if ok {
			used = append(used, uint8(i))
		}
	}
	return used
}

// Stack the frames on top of each other so the quantizer considers every
// pixel of the animation at once
func stack(frames []*image.Paletted) *image.Paletted {
	b := frames[0].Bounds()
	m := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()*len(frames)), frames[0].Palette)
	for i, f := range frames {
		fb := f.Bounds()
		for y := 0; y < b.Dy(); y++ {
			o := f.PixOffset(fb.Min.X, fb.Min.Y+y)
			copy(m.Pix[m.PixOffset(0, i*b.Dy()+y):], f.Pix[o:o+b.Dx()])
		}
	}
	return m
}

// reduce maps each used palette index onto one of at most maxCodes indices,
// picked by median cut over the colors of the whole animation.
func reduce(frames []*image.Paletted, used []uint8) (map[uint8]uint8, error) {
	p := frames[0].Palette
	if int(used[len(used)-1]) >= len(p) {
		return nil, fmt.Errorf("%w: index %d outside %d color palette", ErrColorIndex, used[len(used)-1], len(p))
	}

	q := quantize.MedianCutQuantizer{}
	reduced := q.Quantize(make(color.Palette, 0, maxCodes), stack(frames))

	remap := make(map[uint8]uint8, len(used))
	for _, i := range used {
		remap[i] = uint8(p.Index(reduced.Convert(p[i])))
	}
	return remap, nil
}

func (e *encoder) buildTable(frames []*image.Paletted) error {
	used := usedIndices(frames)

	var remap map[uint8]uint8
	if len(used) > maxCodes {
		var err error
		if remap, err = reduce(frames, used); err != nil {
			return err
		}
	}

	var set [256]bool
	for _, i := range used {
		if remap != nil {
			i = remap[i]
		}
		set[i] = true
	}
	for i, ok := range set {
		if ok {
			e.codes[i] = byte(len(e.table))
			e.table = append(e.table, byte(i))
		}
	}
	for _, i := range used {
		if remap != nil {
			e.codes[i] = e.codes[remap[i]]
		}
	}

	e.bitWidth = minBitWidth
	for 1<<e.bitWidth < len(e.table) {
		e.bitWidth++
	}
	return nil
}

func (e *encoder) writeHeader(frames, xOffset, yOffset int) error {
	var b [headerLen]byte
	binary.LittleEndian.PutUint16(b[0:], uint16(e.width))
	binary.LittleEndian.PutUint16(b[2:], uint16(e.height))
	binary.LittleEndian.PutUint16(b[4:], uint16(e.stride))
	binary.LittleEndian.PutUint16(b[6:], uint16(int16(xOffset)))
	binary.LittleEndian.PutUint16(b[8:], uint16(int16(yOffset)))
	b[10] = byte(e.bitWidth)
	b[11] = byte(frames)
	binary.LittleEndian.PutUint16(b[12:], uint16(headerLen+len(e.table)))

	if _, err := e.w.Write(b[:]); err != nil {
		return err
	}
	_, err := e.w.Write(e.table)
	return err
}

func (e *encoder) encode(frames []*image.Paletted, xOffset, yOffset int) error {
	if err := e.buildTable(frames); err != nil {
		return err
	}
	e.stride = PackedLen(e.width, e.bitWidth)

	payload := make([]byte, len(frames)*e.height*e.stride)
	row := make([]byte, e.width)
	o := 0
	for _, m := range frames {
		b := m.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				row[x-b.Min.X] = e.codes[m.ColorIndexAt(x, y)]
			}
			if err := Pack(payload[o:o+e.stride], row, e.bitWidth); err != nil {
				return err
			}
			o += e.stride
		}
	}

	if err := e.writeHeader(len(frames), xOffset, yOffset); err != nil {
		return err
	}
	_, err := e.w.Write(compress(payload))
	return err
}

// Encode writes frames to w as a CFA file anchored at (xOffset, yOffset).
// Every frame must be the same size. Only the palette indices are stored;
// if the animation uses more than 128 of them, the colors of the first
// frame's palette are reduced to fit.
func Encode(w io.Writer, frames []*image.Paletted, xOffset, yOffset int) error {
	if len(frames) == 0 || len(frames) > maxFrames {
		return fmt.Errorf("%w: %d frames", ErrInvalidDimensions, len(frames))
	}

	size := frames[0].Bounds().Size()
	if size.X <= 0 || size.Y <= 0 || size.X > maxWidth || size.Y > maxWidth {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, size.X, size.Y)
	}
	for i, m := range frames[1:] {
		if m.Bounds().Size() != size {
			return fmt.Errorf("%w: frame %d is %v, not %v", ErrInvalidDimensions, i+1, m.Bounds().Size(), size)
		}
	}

	if xOffset < math.MinInt16 || xOffset > math.MaxInt16 || yOffset < math.MinInt16 || yOffset > math.MaxInt16 {
		return fmt.Errorf("cfa: offset (%d, %d) out of range", xOffset, yOffset)
	}

	e := encoder{
		w:      w,
		width:  size.X,
		height: size.Y,
	}
	return e.encode(frames, xOffset, yOffset)
}
