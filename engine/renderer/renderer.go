package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-interop/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

type renderer struct {
	mu            *sync.Mutex
	pipelineCache map[string]pipeline.Pipeline
	backend       RendererBackend

	// applied once the backend exists
	pendingPresentMode *PresentMode
}

// Renderer is the graphics side of the interop layer.
//
// It owns the WebGPU instance, surface, adapter and device of a window and creates the resources
// compute kernels write into: pixel-transfer buffers, textures and the vertex array that draws a
// texture over the viewport. Render pipelines are cached by key.
//
// The compute layer uses a Renderer as its WebGPU graphics context through Flush, Instance,
// Adapter, Device, Queue and Surface.
type Renderer interface {
	// Pipeline returns the registered pipeline with the given key, or nil.
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines creates and caches the GPU pipeline of each argument. Keys that are
	// already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the pipelines to register
	//
	// Returns:
	//   - error: the first creation error
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// Resize reconfigures the surface for a new framebuffer size. A zero size is ignored.
	//
	// Parameters:
	//   - width, height: the framebuffer size in pixels
	Resize(width, height int)

	// SetViewport restricts draws to a rectangle of the surface, clipped to the surface bounds.
	//
	// Parameters:
	//   - x, y: the top-left corner in pixels
	//   - width, height: the size in pixels
	SetViewport(x, y, width, height int)

	// Viewport returns the current viewport as x, y, width, height.
	Viewport() [4]uint32

	// BeginFrame acquires the next surface texture and opens a render pass that clears it.
	//
	// Returns:
	//   - error: an error if no surface texture is available
	BeginFrame() error

	// EndFrame closes the render pass and submits it.
	EndFrame()

	// Present shows the frame and releases the surface texture.
	Present()

	// Flush blocks until every submitted graphics command has completed.
	//
	// Returns:
	//   - error: always nil; device loss surfaces through the device error callback
	Flush() error

	// NewVertexBuffer creates a vertex buffer holding data.
	//
	// Parameters:
	//   - label: the debug label
	//   - data: the vertex data, a multiple of 4 bytes
	//
	// Returns:
	//   - *Buffer: the created buffer
	//   - error: an error if creation fails
	NewVertexBuffer(label string, data []byte) (*Buffer, error)

	// NewPixelBuffer creates a pixel-transfer buffer with Storage | CopySrc | CopyDst usage, which
	// compute kernels write and textures copy from.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - *Buffer: the created buffer
	//   - error: an error if creation fails
	NewPixelBuffer(label string, size uint64) (*Buffer, error)

	// NewTexture creates a texture handle. Storage is allocated by the first upload.
	//
	// Parameters:
	//   - label: the debug label
	//   - format: the pixel format the texture is expected to hold
	//
	// Returns:
	//   - *Texture: the texture
	NewTexture(label string, format common.PixelFormat) *Texture

	// NewVertexArray creates an unprepared vertex array.
	NewVertexArray(label string) *VertexArray

	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Surface() *wgpu.Surface

	// Release releases the cached pipelines and the GPU device. Resources created by the
	// renderer must be released first.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the WebGPU device for a window and configures its surface at the window's
// framebuffer size. Adapter and device failures panic since nothing can be drawn without them.
//
// Parameters:
//   - window: the window whose surface is rendered to
//   - options: options applied before the surface is configured
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
	}
	for _, opt := range options {
		opt(r)
	}

	r.backend = newWGPURendererBackend(window.SurfaceDescriptor())
	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(window.Width(), window.Height())
	return r
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetViewport(x, y, width, height int) {
	r.backend.SetViewport(uint32(max(x, 0)), uint32(max(y, 0)), uint32(max(width, 0)), uint32(max(height, 0)))
}

func (r *renderer) Viewport() [4]uint32 {
	return r.backend.Viewport()
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Flush() error {
	r.backend.Poll(true)
	return nil
}

func (r *renderer) NewVertexBuffer(label string, data []byte) (*Buffer, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("vertex buffer %q: %d bytes is not a positive multiple of 4", label, len(data))
	}
	usage := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	buf, err := r.backend.CreateBuffer(label, usage, uint64(len(data)), data)
	if err != nil {
		return nil, fmt.Errorf("vertex buffer %q: %w", label, err)
	}
	return &Buffer{backend: r.backend, label: label, buf: buf, size: uint64(len(data)), usage: usage}, nil
}

func (r *renderer) NewPixelBuffer(label string, size uint64) (*Buffer, error) {
	size = common.AlignUp(size, 4)
	if size == 0 {
		return nil, fmt.Errorf("pixel buffer %q: empty", label)
	}
	buf, err := r.backend.CreateBuffer(label, PixelBufferUsage, size, nil)
	if err != nil {
		return nil, fmt.Errorf("pixel buffer %q: %w", label, err)
	}
	return &Buffer{backend: r.backend, label: label, buf: buf, size: size, usage: PixelBufferUsage}, nil
}

func (r *renderer) NewTexture(label string, format common.PixelFormat) *Texture {
	return &Texture{backend: r.backend, label: label, format: format}
}

func (r *renderer) NewVertexArray(label string) *VertexArray {
	return &VertexArray{r: r, label: label}
}

func (r *renderer) Instance() *wgpu.Instance { return r.backend.Instance() }

func (r *renderer) Adapter() *wgpu.Adapter { return r.backend.Adapter() }

func (r *renderer) Device() *wgpu.Device { return r.backend.Device() }

func (r *renderer) Queue() *wgpu.Queue { return r.backend.Queue() }

func (r *renderer) Surface() *wgpu.Surface { return r.backend.Surface() }

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()
	r.backend.Release()
}
