/*
Package cfa implements a decoder and encoder for the CFA creature and spell
animation format used by The Elder Scrolls: Arena.

A CFA file holds one or more frames that all share the same width, height and
anchor offset. Each pixel is stored as a short code of between 1 and 7 bits,
the width chosen by how many colors the animation uses, and each code is
translated into an 8-bit palette index through a lookup table held in the
header. Rows are packed most significant bit first and padded to a whole
number of bytes, and the packed rows of every frame are then compressed
together with a simple run-length encoding.

The file starts with a 76 byte header:

	0   uint16  width in pixels
	2   uint16  height in pixels
	4   uint16  packed bytes per row
	6   int16   x offset
	8   int16   y offset
	10  uint8   bits per pixel
	11  uint8   number of frames
	12  uint16  header size, i.e. offset of the compressed pixel data
	14          reserved

The lookup table fills the space between the end of the fixed header and the
header size. Decoded frames are never palette mapped; callers supply a
palette when converting a frame to an image.
*/
package cfa

const (
	headerLen   = 76
	minBitWidth = 1
	maxBitWidth = 7
	maxCodes    = 1 << maxBitWidth
	maxFrames   = 0xff
	maxWidth    = 0xffff

	// Files with at least this many frames are unpacked concurrently
	parallelThreshold = 16
)
