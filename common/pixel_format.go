package common

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PixelFormat describes the channel layout and component type of pixel data handed to a texture.
// The set is closed: {byte, float} x {RGB, RGBA}.
type PixelFormat int

const (
	// PixelFormatRGB8 is three unsigned normalized 8-bit channels.
	PixelFormatRGB8 PixelFormat = iota

	// PixelFormatRGBA8 is four unsigned normalized 8-bit channels.
	PixelFormatRGBA8

	// PixelFormatRGB32F is three 32-bit float channels.
	PixelFormatRGB32F

	// PixelFormatRGBA32F is four 32-bit float channels. Compute kernels write this layout.
	PixelFormatRGBA32F
)

// ErrFormatNotCopyable is returned when a texture is filled from a buffer holding three-channel
// pixels. GPU copies move texels as they are and cannot insert an alpha channel.
var ErrFormatNotCopyable = errors.New("pixel format cannot be copied from a buffer")

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatRGB8:    "rgb",
	PixelFormatRGBA8:   "rgba",
	PixelFormatRGB32F:  "rgbf",
	PixelFormatRGBA32F: "rgbaf",
}

// ParsePixelFormat resolves a short format name ("rgb", "rgba", "rgbf", "rgbaf") to a PixelFormat.
// Matching is case-insensitive.
//
// Parameters:
//   - name: the short format name
//
// Returns:
//   - PixelFormat: the matching format
//   - error: an error if the name is not recognized
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range pixelFormatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q", name)
}

func (f PixelFormat) String() string {
	if n, ok := pixelFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Channels returns the number of color channels per pixel (3 or 4).
func (f PixelFormat) Channels() int {
	switch f {
	case PixelFormatRGB8, PixelFormatRGB32F:
		return 3
	default:
		return 4
	}
}

// IsFloat reports whether each channel is a 32-bit float.
func (f PixelFormat) IsFloat() bool {
	return f == PixelFormatRGB32F || f == PixelFormatRGBA32F
}

// BytesPerChannel returns 4 for float formats and 1 for byte formats.
func (f PixelFormat) BytesPerChannel() int {
	if f.IsFloat() {
		return 4
	}
	return 1
}

// BytesPerPixel returns the packed size of one pixel in host memory.
func (f PixelFormat) BytesPerPixel() int {
	return f.Channels() * f.BytesPerChannel()
}

// Copyable reports whether a buffer of this format can be copied into a texture as is.
func (f PixelFormat) Copyable() bool {
	return f.Channels() == 4
}

// RGBA returns the four-channel format with the same component type.
func (f PixelFormat) RGBA() PixelFormat {
	if f.IsFloat() {
		return PixelFormatRGBA32F
	}
	return PixelFormatRGBA8
}

// ExpandToRGBA converts tightly packed three-channel pixel data into four-channel data with an
// opaque alpha channel (255 for byte data, 1.0 for float data). Four-channel input is returned as is.
// Trailing bytes that do not form a whole pixel are dropped.
//
// Parameters:
//   - format: the layout of pixels
//   - pixels: the packed source data
//
// Returns:
//   - []byte: four-channel pixel data in the matching RGBA format
func ExpandToRGBA(format PixelFormat, pixels []byte) []byte {
	if format.Channels() == 4 {
		return pixels
	}

	srcStride := format.BytesPerPixel()
	channel := format.BytesPerChannel()
	count := len(pixels) / srcStride
	out := make([]byte, count*4*channel)

	var alpha [4]byte
	if format.IsFloat() {
		binary.LittleEndian.PutUint32(alpha[:], math.Float32bits(1))
	} else {
		alpha[0] = 0xff
	}

	for i := range count {
		src := pixels[i*srcStride : (i+1)*srcStride]
		dst := out[i*4*channel : (i+1)*4*channel]
		copy(dst, src)
		copy(dst[3*channel:], alpha[:channel])
	}
	return out
}

// RowAlignment is the byte alignment of one row of pixel data inside a buffer that is copied
// to a texture on the GPU.
const RowAlignment = 256

// RowPitch returns the number of bytes one row of width pixels occupies in a pixel-transfer
// buffer, rounded up to RowAlignment.
//
// Parameters:
//   - width: the row width in pixels
//
// Returns:
//   - uint32: the aligned row size in bytes
func (f PixelFormat) RowPitch(width uint32) uint32 {
	return AlignUp(width*uint32(f.BytesPerPixel()), RowAlignment)
}
