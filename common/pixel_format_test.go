package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePixelFormat(t *testing.T) {
	for name, want := range map[string]PixelFormat{
		"rgb":    PixelFormatRGB8,
		"RGBA":   PixelFormatRGBA8,
		" rgbf ": PixelFormatRGB32F,
		"rgbaf":  PixelFormatRGBA32F,
	} {
		got, err := ParsePixelFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParsePixelFormat("bgra")
	assert.Error(t, err)
}

func TestPixelFormat_Sizes(t *testing.T) {
	assert.Equal(t, 3, PixelFormatRGB8.BytesPerPixel())
	assert.Equal(t, 4, PixelFormatRGBA8.BytesPerPixel())
	assert.Equal(t, 12, PixelFormatRGB32F.BytesPerPixel())
	assert.Equal(t, 16, PixelFormatRGBA32F.BytesPerPixel())
	assert.Equal(t, PixelFormatRGBA32F, PixelFormatRGB32F.RGBA())
	assert.Equal(t, PixelFormatRGBA8, PixelFormatRGB8.RGBA())
	assert.Equal(t, "rgbaf", PixelFormatRGBA32F.String())
	assert.Equal(t, "PixelFormat(9)", PixelFormat(9).String())
}

func TestExpandToRGBA_Bytes(t *testing.T) {
	out := ExpandToRGBA(PixelFormatRGB8, []byte{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, []byte{1, 2, 3, 0xff, 4, 5, 6, 0xff}, out)
}

func TestExpandToRGBA_Float(t *testing.T) {
	src := make([]byte, 12)
	for i := range 3 {
		binary.LittleEndian.PutUint32(src[i*4:], math.Float32bits(float32(i)*0.5))
	}
	out := ExpandToRGBA(PixelFormatRGB32F, src)
	require.Len(t, out, 16)
	assert.Equal(t, src, out[:12])
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(out[12:])))
}

func TestExpandToRGBA_Passthrough(t *testing.T) {
	src := []byte{9, 8, 7, 6}
	assert.Equal(t, src, ExpandToRGBA(PixelFormatRGBA8, src))
}

func TestPixelFormat_RowPitch(t *testing.T) {
	// float rows pad to 16 pixels, byte rows to 64
	assert.Equal(t, uint32(256), PixelFormatRGBA32F.RowPitch(1))
	assert.Equal(t, uint32(256), PixelFormatRGBA32F.RowPitch(16))
	assert.Equal(t, uint32(512), PixelFormatRGBA32F.RowPitch(17))
	assert.Equal(t, uint32(256), PixelFormatRGBA8.RowPitch(64))
	assert.Equal(t, uint32(512), PixelFormatRGBA8.RowPitch(65))
	assert.Equal(t, uint32(0), PixelFormatRGBA8.RowPitch(0))
}

func TestPixelFormat_Copyable(t *testing.T) {
	assert.True(t, PixelFormatRGBA8.Copyable())
	assert.True(t, PixelFormatRGBA32F.Copyable())
	assert.False(t, PixelFormatRGB8.Copyable())
	assert.False(t, PixelFormatRGB32F.Copyable())
}
