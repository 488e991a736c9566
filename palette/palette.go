/*
Package palette reads the 256 color palettes used to render Arena images.

Two layouts are understood. A COL file is 776 bytes; an 8 byte header holding
the file length and a version word followed by 256 RGB triples using the full
8-bit range. A raw VGA palette is just the 768 bytes of RGB triples, each
component being a 6-bit DAC value.
*/
package palette

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
)

const (
	numColors  = 256
	rgbBytes   = numColors * 3
	colHeader  = 8
	colBytes   = colHeader + rgbBytes
	colVersion = 0xb123
)

// ErrFormat is returned when the data is not a recognised palette.
var ErrFormat = errors.New("palette: unrecognised format")

func rgb(b []byte, shift uint) color.Palette {
	p := make(color.Palette, numColors)
	for i := range p {
		p[i] = color.RGBA{
			b[i*3+0] << shift,
			b[i*3+1] << shift,
			b[i*3+2] << shift,
			0xff,
		}
	}
	return p
}

// Decode reads a COL or raw VGA palette from r.
func Decode(r io.Reader) (color.Palette, error) {
	// Read one byte more than the largest format to detect trailing data
	b := make([]byte, colBytes+1)
	n, err := io.ReadFull(r, b)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}

	switch n {
	case colBytes:
		if length := binary.LittleEndian.Uint32(b[0:]); length != colBytes {
			return nil, fmt.Errorf("%w: length field is %d", ErrFormat, length)
		}
		if version := binary.LittleEndian.Uint32(b[4:]); version != colVersion {
			return nil, fmt.Errorf("%w: version %#x", ErrFormat, version)
		}
		return rgb(b[colHeader:], 0), nil
	case rgbBytes:
		for _, c := range b[:rgbBytes] {
			if c > 0x3f {
				return nil, fmt.Errorf("%w: component %#x exceeds 6 bits", ErrFormat, c)
			}
		}
		return rgb(b, 2), nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, n)
	}
}

// Encode writes p to w as a COL file. Palettes with fewer than 256 colors
// are padded with black.
func Encode(w io.Writer, p color.Palette) error {
	if len(p) > numColors {
		return fmt.Errorf("palette: %d colors, at most %d allowed", len(p), numColors)
	}

	b := make([]byte, colBytes)
	binary.LittleEndian.PutUint32(b[0:], colBytes)
	binary.LittleEndian.PutUint32(b[4:], colVersion)
	for i, c := range p {
		r, g, bl, _ := c.RGBA()
		b[colHeader+i*3+0] = byte(r >> 8)
		b[colHeader+i*3+1] = byte(g >> 8)
		b[colHeader+i*3+2] = byte(bl >> 8)
	}

	_, err := w.Write(b)
	return err
}

// Grayscale returns a 256 entry ramp from black to white, used when no real
// palette is available.
func Grayscale() color.Palette {
	p := make(color.Palette, numColors)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}
