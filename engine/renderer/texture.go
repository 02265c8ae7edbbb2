package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureUsage lets a texture be sampled, filled by copies and written by compute kernels.
const textureUsage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageStorageBinding

// TextureFormat maps a pixel format to the texel format it is stored in. Three-channel formats
// are stored as their four-channel counterparts.
//
// Parameters:
//   - f: the pixel format
//
// Returns:
//   - wgpu.TextureFormat: RGBA8Unorm for byte formats, RGBA32Float for float formats
func TextureFormat(f common.PixelFormat) wgpu.TextureFormat {
	if f.IsFloat() {
		return wgpu.TextureFormatRGBA32Float
	}
	return wgpu.TextureFormatRGBA8Unorm
}

// Texture is a 2D texture with its sampler. Storage is allocated on the first upload and
// reallocated whenever an upload changes the format or the size.
type Texture struct {
	backend RendererBackend
	label   string

	format        common.PixelFormat
	width, height uint32

	tex         *wgpu.Texture
	view        *wgpu.TextureView
	sampler     *wgpu.Sampler
	samplerData common.SamplerStagingData

	// generation increases whenever the view or the sampler is replaced
	generation uint64
}

var _ common.GraphicsTexture = &Texture{}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Width returns the allocated width in pixels, 0 before the first upload.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the allocated height in pixels, 0 before the first upload.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the stored pixel format. Before the first upload it is the format the texture
// was created for.
func (t *Texture) Format() common.PixelFormat { return t.format }

// Native returns the texture's *wgpu.TextureView, nil before the first upload.
func (t *Texture) Native() any { return t.view }

// View returns the texture view, nil before the first upload.
func (t *Texture) View() *wgpu.TextureView { return t.view }

// Sampler returns the sampler, nil before the first upload or SetProperties call.
func (t *Texture) Sampler() *wgpu.Sampler { return t.sampler }

// Generation counts replacements of the view or the sampler; bind groups built from an older
// generation are out of date.
func (t *Texture) Generation() uint64 { return t.generation }

// SetProperties sets the wrap and filter modes. Unset fields default to clamp-to-edge and nearest.
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - error: an error if the sampler could not be created
func (t *Texture) SetProperties(data common.SamplerStagingData) error {
	t.samplerData = data
	return t.recreateSampler()
}

func (t *Texture) recreateSampler() error {
	samp, err := t.backend.CreateSampler(t.label+" Sampler", t.samplerData)
	if err != nil {
		return fmt.Errorf("texture %q: create sampler: %w", t.label, err)
	}
	if t.sampler != nil {
		t.sampler.Release()
	}
	t.sampler = samp
	t.generation++
	return nil
}

// SetData uploads tightly packed pixels from host memory. Three-channel data is expanded to
// four channels before upload.
//
// Parameters:
//   - format: the layout of pixels
//   - width, height: the image size in pixels
//   - pixels: the packed pixel data
//
// Returns:
//   - error: an error if pixels is too small or the texture could not be allocated
func (t *Texture) SetData(format common.PixelFormat, width, height uint32, pixels []byte) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("texture %q: empty image %dx%d", t.label, width, height)
	}
	need := int(width) * int(height) * format.BytesPerPixel()
	if len(pixels) < need {
		return fmt.Errorf("texture %q: %d bytes for %dx%d %s, need %d", t.label, len(pixels), width, height, format, need)
	}
	stored := format.RGBA()
	texels := common.ExpandToRGBA(format, pixels[:need])
	if err := t.ensure(stored, width, height); err != nil {
		return err
	}
	t.backend.WriteTexture(t.tex, texels, width*uint32(stored.BytesPerPixel()), width, height)
	return nil
}

// SetDataFromBuffer fills the texture from a graphics buffer with a GPU-side copy. Rows in src are
// format.RowPitch(width) bytes apart. The copy cannot add channels, so three-channel formats are
// rejected with common.ErrFormatNotCopyable.
//
// Parameters:
//   - format: the layout of the pixels in src
//   - width, height: the image size in pixels
//   - src: a renderer buffer with CopySrc usage
//
// Returns:
//   - error: an error if the format is not copyable, src is foreign or too small, or the copy fails
func (t *Texture) SetDataFromBuffer(format common.PixelFormat, width, height uint32, src common.GraphicsBuffer) error {
	if !format.Copyable() {
		return fmt.Errorf("texture %q: %w: %s", t.label, common.ErrFormatNotCopyable, format)
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("texture %q: empty image %dx%d", t.label, width, height)
	}
	buf, ok := src.Native().(*wgpu.Buffer)
	if !ok || buf == nil {
		return fmt.Errorf("texture %q: buffer %q is not a GPU buffer", t.label, src.Label())
	}
	pitch := format.RowPitch(width)
	need := uint64(pitch)*uint64(height-1) + uint64(width)*uint64(format.BytesPerPixel())
	if src.Size() < need {
		return fmt.Errorf("texture %q: buffer %q holds %d bytes, need %d", t.label, src.Label(), src.Size(), need)
	}
	if err := t.ensure(format, width, height); err != nil {
		return err
	}
	return t.backend.CopyBufferToTexture(buf, pitch, t.tex, width, height)
}

// ensure (re)allocates storage for format and size.
func (t *Texture) ensure(format common.PixelFormat, width, height uint32) error {
	if t.tex != nil && t.format == format && t.width == width && t.height == height {
		return nil
	}
	tex, view, err := t.backend.CreateTexture(t.label, TextureFormat(format), textureUsage, width, height)
	if err != nil {
		return fmt.Errorf("texture %q: allocate %dx%d %s: %w", t.label, width, height, format, err)
	}
	t.releaseStorage()
	t.tex, t.view = tex, view
	t.format, t.width, t.height = format, width, height
	t.generation++
	if t.sampler == nil {
		return t.recreateSampler()
	}
	return nil
}

func (t *Texture) releaseStorage() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// Release releases the texture storage and the sampler.
func (t *Texture) Release() {
	t.releaseStorage()
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	t.width, t.height = 0, 0
}
