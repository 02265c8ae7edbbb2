package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
)

type hostBuffer struct{ data []byte }

func (b *hostBuffer) Label() string { return "host" }
func (b *hostBuffer) Size() uint64  { return uint64(len(b.data)) }
func (b *hostBuffer) Native() any   { return b.data }

func TestTextureFormat(t *testing.T) {
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, TextureFormat(common.PixelFormatRGB8))
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, TextureFormat(common.PixelFormatRGBA8))
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, TextureFormat(common.PixelFormatRGB32F))
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, TextureFormat(common.PixelFormatRGBA32F))
}

func TestQuadVertexBytes(t *testing.T) {
	raw := QuadVertexBytes()
	require.Len(t, raw, QuadVertexCount*3*4)

	v := safeish.SliceCast[[]float32](raw)
	assert.Equal(t, []float32{-1, -1, 0}, v[0:3])
	assert.Equal(t, []float32{1, 1, 0}, v[9:12])
	assert.Equal(t, []float32{1, -1, 0}, v[15:18])

	raw[0] = 0
	assert.Equal(t, float32(-1), QuadVertices[0], "the upload is a copy")
}

func TestQuadShader_Reflection(t *testing.T) {
	sh, err := QuadShader()
	require.NoError(t, err)

	vs := sh.EntryPointsOf(shader.ShaderTypeVertex)
	fs := sh.EntryPointsOf(shader.ShaderTypeFragment)
	require.Len(t, vs, 1)
	require.Len(t, fs, 1)
	assert.Equal(t, "vs_main", vs[0].Name)
	assert.Equal(t, "fs_main", fs[0].Name)
	assert.Equal(t, []uint32{0, 1}, fs[0].Bindings)

	layouts := sh.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(12), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 1)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, layouts[0].Attributes[0].Format)
}

func TestResolveTextureBindings(t *testing.T) {
	sh, err := QuadShader()
	require.NoError(t, err)

	tex, samp, err := resolveTextureBindings(sh, "tex")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tex)
	assert.Equal(t, uint32(1), samp)

	_, _, err = resolveTextureBindings(sh, "image")
	assert.ErrorContains(t, err, `no texture uniform "image"`)
	_, _, err = resolveTextureBindings(sh, "tex_sampler")
	assert.Error(t, err, "a sampler is not a texture uniform")
}

func TestQuadPipelineKey(t *testing.T) {
	assert.Equal(t, "quad", quadPipelineKey(false))
	assert.Equal(t, "quad:unfilterable", quadPipelineKey(true))
}

func TestClipViewport(t *testing.T) {
	assert.Equal(t, [4]uint32{0, 0, 800, 600}, clipViewport([4]uint32{}, 800, 600), "empty covers the surface")
	assert.Equal(t, [4]uint32{16, 8, 768, 576}, clipViewport([4]uint32{16, 8, 768, 576}, 800, 600))
	assert.Equal(t, [4]uint32{700, 500, 100, 100}, clipViewport([4]uint32{700, 500, 256, 256}, 800, 600))
	assert.Equal(t, [4]uint32{800, 600, 0, 0}, clipViewport([4]uint32{900, 700, 10, 10}, 800, 600))
}

func TestTexture_SetDataFromBufferRejects(t *testing.T) {
	tex := &Texture{label: "tex", format: common.PixelFormatRGBA32F}

	err := tex.SetDataFromBuffer(common.PixelFormatRGB32F, 4, 4, &Buffer{label: "pixels", buf: &wgpu.Buffer{}, size: 4096})
	assert.ErrorIs(t, err, common.ErrFormatNotCopyable)

	err = tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 4, 4, &hostBuffer{data: make([]byte, 4096)})
	assert.ErrorContains(t, err, "not a GPU buffer")

	// 4 rows at a 256-byte pitch need 3*256 + 4*16 bytes
	err = tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 4, 4, &Buffer{label: "pixels", buf: &wgpu.Buffer{}, size: 831})
	assert.ErrorContains(t, err, "need 832")

	err = tex.SetDataFromBuffer(common.PixelFormatRGBA32F, 0, 4, &Buffer{label: "pixels", buf: &wgpu.Buffer{}, size: 4096})
	assert.Error(t, err)
	assert.Nil(t, tex.View(), "rejected uploads allocate nothing")
}

func TestTexture_SetDataRejectsShortData(t *testing.T) {
	tex := &Texture{label: "tex"}
	err := tex.SetData(common.PixelFormatRGB8, 2, 2, make([]byte, 11))
	assert.ErrorContains(t, err, "need 12")
}

func TestBuffer_WriteChecks(t *testing.T) {
	b := &Buffer{label: "pixels", buf: &wgpu.Buffer{}, size: 16}
	assert.Equal(t, "pixels", b.Label())
	assert.Equal(t, uint64(16), b.Size())

	assert.ErrorContains(t, b.Write(2, make([]byte, 4)), "aligned")
	assert.ErrorContains(t, b.Write(0, make([]byte, 6)), "aligned")
	assert.ErrorContains(t, b.Write(8, make([]byte, 12)), "exceeds")

	released := &Buffer{label: "gone", size: 16}
	assert.ErrorContains(t, released.Write(0, make([]byte, 4)), "released")
}
