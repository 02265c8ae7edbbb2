package headless

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/disintegration/imaging"
	"honnef.co/go/safeish"
)

// Texture is a host-memory 2D texture. Texels are stored tightly packed in an RGBA format.
type Texture struct {
	label  string
	logger *slog.Logger

	mu      sync.Mutex
	format  common.PixelFormat
	width   uint32
	height  uint32
	texels  []byte
	uploads int
}

var _ common.GraphicsTexture = &Texture{}

func (t *Texture) Label() string { return t.label }

func (t *Texture) Width() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

func (t *Texture) Height() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

// Format returns the RGBA format texels are stored in.
func (t *Texture) Format() common.PixelFormat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format
}

// Native returns the packed texel storage.
func (t *Texture) Native() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texels
}

// Uploads returns how many uploads the texture received.
func (t *Texture) Uploads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uploads
}

// SetData replaces the texture contents with tightly packed host pixels. Three-channel data is
// expanded to RGBA.
//
// Parameters:
//   - format: the layout of pixels
//   - width: the width in pixels
//   - height: the height in pixels
//   - pixels: at least width*height pixels of data
//
// Returns:
//   - error: an error if pixels is too short
func (t *Texture) SetData(format common.PixelFormat, width, height uint32, pixels []byte) error {
	need := int(width) * int(height) * format.BytesPerPixel()
	if len(pixels) < need {
		return fmt.Errorf("headless: %s: %d bytes of %s data for %dx%d, need %d", t.label, len(pixels), format, width, height, need)
	}
	texels := common.ExpandToRGBA(format, pixels[:need])
	t.store(format.RGBA(), width, height, texels)
	return nil
}

// SetDataFromBuffer replaces the texture contents with a copy of a graphics buffer whose rows are
// format.RowPitch(width) bytes apart.
//
// Parameters:
//   - format: the RGBA layout of the buffer
//   - width: the width in pixels
//   - height: the height in pixels
//   - src: a host-memory graphics buffer
//
// Returns:
//   - error: common.ErrFormatNotCopyable for three-channel formats, or an error if src is not host
//     memory or is too small
func (t *Texture) SetDataFromBuffer(format common.PixelFormat, width, height uint32, src common.GraphicsBuffer) error {
	if !format.Copyable() {
		return fmt.Errorf("headless: %s: %w: %s", t.label, common.ErrFormatNotCopyable, format)
	}
	data, ok := src.Native().([]byte)
	if !ok {
		return fmt.Errorf("headless: %s: %s is not a host memory buffer", t.label, src.Label())
	}
	pitch := int(format.RowPitch(width))
	row := int(width) * format.BytesPerPixel()
	if height > 0 && len(data) < (int(height)-1)*pitch+row {
		return fmt.Errorf("headless: %s: %s holds %d bytes, too small for %dx%d", t.label, src.Label(), len(data), width, height)
	}

	texels := make([]byte, row*int(height))
	for y := range int(height) {
		copy(texels[y*row:(y+1)*row], data[y*pitch:y*pitch+row])
	}
	t.store(format, width, height, texels)
	return nil
}

func (t *Texture) store(format common.PixelFormat, width, height uint32, texels []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if format != t.format || width != t.width || height != t.height {
		t.logger.Debug("texture reallocated", "label", t.label, "format", format.String(), "width", width, "height", height)
	}
	t.format, t.width, t.height = format, width, height
	t.texels = texels
	t.uploads++
}

// Image converts the texture to an 8-bit image. Float channels are clamped to [0, 1].
func (t *Texture) Image() *image.NRGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	img := image.NewNRGBA(image.Rect(0, 0, int(t.width), int(t.height)))
	if !t.format.IsFloat() {
		copy(img.Pix, t.texels)
		return img
	}
	for i, v := range safeish.SliceCast[[]float32](t.texels) {
		if i >= len(img.Pix) {
			break
		}
		img.Pix[i] = uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
	}
	return img
}

// Snapshot writes the texture to an image file. The format follows the file extension.
//
// Parameters:
//   - path: the output file
//
// Returns:
//   - error: an error if the texture is empty or the file cannot be written
func (t *Texture) Snapshot(path string) error {
	return t.SnapshotResized(path, 0, 0)
}

// SnapshotResized writes the texture to an image file scaled with a Lanczos filter. A zero width or
// height preserves the aspect ratio; both zero keeps the native size.
func (t *Texture) SnapshotResized(path string, width, height int) error {
	var img image.Image = t.Image()
	if img.Bounds().Empty() {
		return fmt.Errorf("headless: %s: nothing uploaded", t.label)
	}
	if width > 0 || height > 0 {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("headless: %s: %w", t.label, err)
	}
	t.logger.Info("snapshot written", "label", t.label, "path", path)
	return nil
}
