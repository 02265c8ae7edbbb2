package headless

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putFloats(dst []byte, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func TestContext_CountsFlushes(t *testing.T) {
	c := NewContext()
	assert.Equal(t, 0, c.Flushes())
	require.NoError(t, c.Flush())
	require.NoError(t, c.Flush())
	assert.Equal(t, 2, c.Flushes())
}

func TestBuffer(t *testing.T) {
	b := NewContext().NewBuffer("pixels", 64)
	assert.Equal(t, "pixels", b.Label())
	assert.Equal(t, uint64(64), b.Size())
	data, ok := b.Native().([]byte)
	require.True(t, ok)
	data[3] = 7
	assert.Equal(t, byte(7), b.Bytes()[3])
}

func TestTexture_SetDataExpandsRGB(t *testing.T) {
	tex := NewContext().NewTexture("tex")
	require.NoError(t, tex.SetData(common.PixelFormatRGB8, 2, 1, []byte{1, 2, 3, 4, 5, 6}))

	assert.Equal(t, common.PixelFormatRGBA8, tex.Format())
	assert.Equal(t, uint32(2), tex.Width())
	assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, tex.Native())
	assert.Equal(t, 1, tex.Uploads())

	assert.Error(t, tex.SetData(common.PixelFormatRGBA8, 4, 4, []byte{1}))
}

func TestTexture_SetDataFromBufferHonorsPitch(t *testing.T) {
	c := NewContext()
	// 2x2 RGBA32F: each row is padded to 256 bytes
	buf := c.NewBuffer("pixels", 512)
	putFloats(buf.Bytes()[0:], 1, 0, 0, 1, 0, 1, 0, 1)
	putFloats(buf.Bytes()[256:], 0, 0, 1, 1, 1, 1, 1, 1)

	tex := c.NewTexture("tex")
	require.NoError(t, tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 2, 2, buf))

	img := tex.Image()
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[0:4])
	assert.Equal(t, []uint8{0, 255, 0, 255}, img.Pix[4:8])
	assert.Equal(t, []uint8{0, 0, 255, 255}, img.Pix[8:12])
	assert.Equal(t, []uint8{255, 255, 255, 255}, img.Pix[12:16])
}

func TestTexture_SetDataFromBufferRejects(t *testing.T) {
	c := NewContext()
	tex := c.NewTexture("tex")

	err := tex.SetDataFromBuffer(common.PixelFormatRGB32F, 1, 1, c.NewBuffer("pixels", 256))
	assert.ErrorIs(t, err, common.ErrFormatNotCopyable)

	err = tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 2, 2, c.NewBuffer("small", 200))
	assert.Error(t, err)
	assert.Equal(t, 0, tex.Uploads())
}

func TestTexture_ImageClampsFloats(t *testing.T) {
	c := NewContext()
	buf := c.NewBuffer("pixels", 256)
	putFloats(buf.Bytes(), -1, 0.5, 2, 1)
	tex := c.NewTexture("tex")
	require.NoError(t, tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 1, 1, buf))

	assert.Equal(t, []uint8{0, 128, 255, 255}, tex.Image().Pix)
}

func TestTexture_Snapshot(t *testing.T) {
	c := NewContext()
	tex := c.NewTexture("tex")
	path := filepath.Join(t.TempDir(), "frame.png")
	assert.Error(t, tex.Snapshot(path))

	pixels := make([]byte, 4*3*4)
	for i := range pixels {
		pixels[i] = 200
	}
	require.NoError(t, tex.SetData(common.PixelFormatRGBA8, 4, 3, pixels))
	require.NoError(t, tex.Snapshot(path))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	scaled := filepath.Join(t.TempDir(), "scaled.png")
	require.NoError(t, tex.SnapshotResized(scaled, 8, 0))
	img, err = imaging.Open(scaled)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}
