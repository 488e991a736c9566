package cfa

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Config holds the geometry shared by every frame in a CFA file.
type Config struct {
	Width, Height    int
	XOffset, YOffset int
	BitWidth         int
	Frames           int
}

type header struct {
	Config

	stride int
	size   int
	table  []byte
}

// descriptor locates one frame's packed rows within the expanded payload.
type descriptor struct {
	offset   int
	length   int
	bitWidth int
}

// PackedLen returns the number of bytes needed to hold pixels codes of
// bitWidth bits each.
func PackedLen(pixels, bitWidth int) int {
	return (pixels*bitWidth + 7) >> 3
}

func parseHeader(b []byte) (*header, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrCorruptHeader, len(b), headerLen)
	}

	h := &header{
		Config: Config{
			Width:    int(binary.LittleEndian.Uint16(b[0:])),
			Height:   int(binary.LittleEndian.Uint16(b[2:])),
			XOffset:  int(int16(binary.LittleEndian.Uint16(b[6:]))),
			YOffset:  int(int16(binary.LittleEndian.Uint16(b[8:]))),
			BitWidth: int(b[10]),
			Frames:   int(b[11]),
		},
		stride: int(binary.LittleEndian.Uint16(b[4:])),
		size:   int(binary.LittleEndian.Uint16(b[12:])),
	}

	if h.Width <= 0 || h.Height <= 0 || h.Frames <= 0 {
		return nil, fmt.Errorf("%w: %d frames of %dx%d", ErrInvalidDimensions, h.Frames, h.Width, h.Height)
	}

	if h.BitWidth < minBitWidth || h.BitWidth > maxBitWidth {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitWidth, h.BitWidth)
	}

	if h.size < headerLen {
		return nil, fmt.Errorf("%w: header size %d", ErrCorruptHeader, h.size)
	}

	// Every row must be able to hold width codes
	if need := PackedLen(h.Width, h.BitWidth); h.stride < need {
		return nil, fmt.Errorf("%w: %d bytes per row, need %d", ErrTruncatedFrameData, h.stride, need)
	}

	return h, nil
}

// readHeader parses the fixed header and the lookup table that follows it.
func readHeader(b []byte) (*header, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}

	if h.size > len(b) {
		return nil, fmt.Errorf("%w: header size %d exceeds %d bytes", ErrCorruptHeader, h.size, len(b))
	}
	h.table = b[headerLen:h.size]

	return h, nil
}

// checkSize rejects a header whose frames can't be expanded from avail bytes
// of compressed data, or wouldn't fit in memory. The products are taken in
// uint64 so they can't wrap before being compared.
func (h *header) checkSize(avail int) error {
	frames, height := uint64(h.Frames), uint64(h.Height)
	payload := uint64(h.stride) * height * frames
	pix := uint64(h.Width) * height * frames

	// Two bytes of input expand to at most rleMaxLen bytes
	if limit := uint64(avail)/2*rleMaxLen + rleMaxLen; payload > limit {
		return fmt.Errorf("%w: %d compressed bytes cannot hold %d bytes", ErrTruncatedFrameData, avail, payload)
	}

	if payload > math.MaxInt || pix > math.MaxInt {
		return fmt.Errorf("%w: %d frames of %dx%d are too large", ErrInvalidDimensions, h.Frames, h.Width, h.Height)
	}

	return nil
}

func (h *header) frameSize() int {
	return h.stride * h.Height
}

func (h *header) payloadSize() int {
	return h.frameSize() * h.Frames
}

func (h *header) descriptor(i int) descriptor {
	return descriptor{
		offset:   i * h.frameSize(),
		length:   h.frameSize(),
		bitWidth: h.BitWidth,
	}
}
