package cfa

import "fmt"

// Each demux function expands one group of packed bytes into whole codes.
// The group size is the smallest number of bytes that holds a whole number
// of codes.
type demuxFunc func(dst, src []byte)

// 1 byte, 8 codes
func demux1(dst, src []byte) {
	_ = dst[7]
	s := src[0]
	dst[0] = s >> 7
	dst[1] = s >> 6 & 0x01
	dst[2] = s >> 5 & 0x01
	dst[3] = s >> 4 & 0x01
	dst[4] = s >> 3 & 0x01
	dst[5] = s >> 2 & 0x01
	dst[6] = s >> 1 & 0x01
	dst[7] = s & 0x01
}

// 1 byte, 4 codes
func demux2(dst, src []byte) {
	_ = dst[3]
	s := src[0]
	dst[0] = s >> 6
	dst[1] = s >> 4 & 0x03
	dst[2] = s >> 2 & 0x03
	dst[3] = s & 0x03
}

// 3 bytes, 8 codes
func demux3(dst, src []byte) {
	_, _ = dst[7], src[2]
	dst[0] = src[0] >> 5
	dst[1] = src[0] >> 2 & 0x07
	dst[2] = src[0]<<1&0x06 | src[1]>>7
	dst[3] = src[1] >> 4 & 0x07
	dst[4] = src[1] >> 1 & 0x07
	dst[5] = src[1]<<2&0x04 | src[2]>>6
	dst[6] = src[2] >> 3 & 0x07
	dst[7] = src[2] & 0x07
}

// 1 byte, 2 codes
func demux4(dst, src []byte) {
	_ = dst[1]
	dst[0] = src[0] >> 4
	dst[1] = src[0] & 0x0f
}

// 5 bytes, 8 codes
func demux5(dst, src []byte) {
	_, _ = dst[7], src[4]
	dst[0] = src[0] >> 3
	dst[1] = src[0]<<2&0x1c | src[1]>>6
	dst[2] = src[1] >> 1 & 0x1f
	dst[3] = src[1]<<4&0x10 | src[2]>>4
	dst[4] = src[2]<<1&0x1e | src[3]>>7
	dst[5] = src[3] >> 2 & 0x1f
	dst[6] = src[3]<<3&0x18 | src[4]>>5
	dst[7] = src[4] & 0x1f
}

// 3 bytes, 4 codes
func demux6(dst, src []byte) {
	_, _ = dst[3], src[2]
	dst[0] = src[0] >> 2
	dst[1] = src[0]<<4&0x30 | src[1]>>4
	dst[2] = src[1]<<2&0x3c | src[2]>>6
	dst[3] = src[2] & 0x3f
}

// 7 bytes, 8 codes
func demux7(dst, src []byte) {
	_, _ = dst[7], src[6]
	dst[0] = src[0] >> 1
	dst[1] = src[0]<<6&0x40 | src[1]>>2
	dst[2] = src[1]<<5&0x60 | src[2]>>3
	dst[3] = src[2]<<4&0x70 | src[3]>>4
	dst[4] = src[3]<<3&0x78 | src[4]>>5
	dst[5] = src[4]<<2&0x7c | src[5]>>6
	dst[6] = src[5]<<1&0x7e | src[6]>>7
	dst[7] = src[6] & 0x7f
}

// demuxer returns the routine for bitWidth along with how many codes and
// bytes make up one of its groups.
func demuxer(bitWidth int) (demuxFunc, int, int, error) {
	switch bitWidth {
	case 1:
		return demux1, 8, 1, nil
	case 2:
		return demux2, 4, 1, nil
	case 3:
		return demux3, 8, 3, nil
	case 4:
		return demux4, 2, 1, nil
	case 5:
		return demux5, 8, 5, nil
	case 6:
		return demux6, 4, 3, nil
	case 7:
		return demux7, 8, 7, nil
	default:
		return nil, 0, 0, fmt.Errorf("%w: %d", ErrUnsupportedBitWidth, bitWidth)
	}
}

// Unpack expands the most significant bit first stream of bitWidth bit codes
// in src into one byte per code, filling all of dst. src must hold at least
// PackedLen(len(dst), bitWidth) bytes.
func Unpack(dst, src []byte, bitWidth int) error {
	demux, n, m, err := demuxer(bitWidth)
	if err != nil {
		return err
	}

	if need := PackedLen(len(dst), bitWidth); len(src) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrTruncatedFrameData, len(src), need)
	}

	i, j := 0, 0
	for ; i+n <= len(dst); i, j = i+n, j+m {
		demux(dst[i:i+n], src[j:j+m])
	}

	// Partial trailing group, pad with zero bits
	if i < len(dst) {
		var in [maxBitWidth]byte
		var out [8]byte
		copy(in[:m], src[j:])
		demux(out[:n], in[:m])
		copy(dst[i:], out[:n])
	}

	return nil
}

// Pack is the inverse of Unpack, packing each byte of src as a bitWidth bit
// code into dst, most significant bit first. Any unused bits in the final
// byte are zeroed.
func Pack(dst, src []byte, bitWidth int) error {
	if bitWidth < minBitWidth || bitWidth > maxBitWidth {
		return fmt.Errorf("%w: %d", ErrUnsupportedBitWidth, bitWidth)
	}

	if need := PackedLen(len(src), bitWidth); len(dst) < need {
		return fmt.Errorf("cfa: packed buffer is %d bytes, need %d", len(dst), need)
	}

	w := uint(bitWidth)
	var acc, bits uint
	j := 0
	for _, c := range src {
		if c >= 1<<w {
			return fmt.Errorf("%w: code %d does not fit in %d bits", ErrColorIndex, c, w)
		}
		acc = acc<<w | uint(c)
		bits += w
		for bits >= 8 {
			bits -= 8
			dst[j] = byte(acc >> bits)
			j++
		}
		acc &= 1<<bits - 1
	}

	if bits > 0 {
		dst[j] = byte(acc << (8 - bits))
	}

	return nil
}
