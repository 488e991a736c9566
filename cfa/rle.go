package cfa

import "fmt"

const (
	rleRun    = 0x80
	rleMaxLen = 0x80
)

// expand fills dst from the run-length encoded src and returns the number of
// bytes of src consumed. A control byte with the top bit set repeats the next
// byte (c&0x7f)+1 times, otherwise the next c+1 bytes are copied as is. A run
// that overshoots dst is clipped.
func expand(dst, src []byte) (int, error) {
	i, o := 0, 0
	for o < len(dst) {
		if i >= len(src) {
			return i, fmt.Errorf("%w: compressed data ends after %d of %d bytes", ErrTruncatedFrameData, o, len(dst))
		}
		c := src[i]
		i++

		n := int(c&^rleRun) + 1
		if o+n > len(dst) {
			n = len(dst) - o
		}

		if c&rleRun != 0 {
			if i >= len(src) {
				return i, fmt.Errorf("%w: compressed data ends after %d of %d bytes", ErrTruncatedFrameData, o, len(dst))
			}
			v := src[i]
			i++
			for end := o + n; o < end; o++ {
				dst[o] = v
			}
			continue
		}

		if i+n > len(src) {
			o += copy(dst[o:], src[i:])
			return len(src), fmt.Errorf("%w: compressed data ends after %d of %d bytes", ErrTruncatedFrameData, o, len(dst))
		}
		o += copy(dst[o:o+n], src[i:i+n])
		i += n
	}
	return i, nil
}

// compress is the inverse of expand. Repeats of three or more bytes become
// runs, everything else is gathered into literal blocks.
func compress(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/rleMaxLen+1)

	literal := func(b []byte) {
		for len(b) > 0 {
			n := len(b)
			if n > rleMaxLen {
				n = rleMaxLen
			}
			out = append(out, byte(n-1))
			out = append(out, b[:n]...)
			b = b[n:]
		}
	}

	start := 0
	for i := 0; i < len(src); {
		j := i + 1
		for j < len(src) && src[j] == src[i] && j-i < rleMaxLen {
			j++
		}
		if j-i < 3 {
			i = j
			continue
		}
		literal(src[start:i])
		out = append(out, rleRun|byte(j-i-1), src[i])
		i, start = j, j
	}
	literal(src[start:])

	return out
}
