package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoFrame is returned when drawing outside a BeginFrame/EndFrame pair.
var ErrNoFrame = errors.New("renderer: no frame in progress")

// letterbox clears the surface around the viewport.
var letterbox = wgpu.Color{A: 1}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// surface size and the viewport draws are restricted to, in pixels
	width, height uint32
	viewport      [4]uint32

	// held between BeginFrame and Present
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

type wgpuRendererBackend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface

	// ConfigureSurface (re)configures the surface for a new size. A zero size is ignored.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the present mode used by the next ConfigureSurface call.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SetViewport restricts subsequent draws to a rectangle of the surface. The rectangle is
	// clipped to the surface bounds.
	//
	// Parameters:
	//   - x, y: the top-left corner in pixels
	//   - width, height: the size in pixels
	SetViewport(x, y, width, height uint32)

	// Viewport returns the current viewport rectangle as x, y, width, height.
	Viewport() [4]uint32

	// SurfaceFormat returns the color format of the configured surface.
	SurfaceFormat() wgpu.TextureFormat

	// RegisterRenderPipeline creates the GPU render pipeline and its bind group layouts for p.
	//
	// Parameters:
	//   - p: the pipeline to create
	//
	// Returns:
	//   - error: an error if any GPU object could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateBuffer creates a GPU buffer, optionally filled with contents.
	//
	// Parameters:
	//   - label: the debug label
	//   - usage: the buffer usage flags; CopyDst is added when contents is non-empty
	//   - size: the buffer size in bytes
	//   - contents: initial data, may be nil
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: an error if creation fails
	CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, contents []byte) (*wgpu.Buffer, error)

	// WriteBuffer writes data into a buffer through the queue.
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// CreateTexture creates a single-sample 2D texture and its default view.
	//
	// Parameters:
	//   - label: the debug label
	//   - format: the texel format
	//   - usage: the texture usage flags
	//   - width, height: the texture size in pixels
	//
	// Returns:
	//   - *wgpu.Texture: the created texture
	//   - *wgpu.TextureView: the default view of the texture
	//   - error: an error if creation fails
	CreateTexture(label string, format wgpu.TextureFormat, usage wgpu.TextureUsage, width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error)

	// CreateSampler creates a sampler, filling unset fields with clamp-to-edge addressing and nearest filtering.
	//
	// Parameters:
	//   - label: the debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - *wgpu.Sampler: the created sampler
	//   - error: an error if creation fails
	CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error)

	// WriteTexture uploads host pixel rows into a texture.
	WriteTexture(tex *wgpu.Texture, data []byte, bytesPerRow, width, height uint32)

	// CopyBufferToTexture records and submits a GPU-side copy of pitched rows from a buffer into a texture.
	//
	// Parameters:
	//   - src: the source buffer
	//   - bytesPerRow: the row pitch of src, a multiple of 256
	//   - dst: the destination texture
	//   - width, height: the copy extent in pixels
	//
	// Returns:
	//   - error: an error if the command could not be encoded
	CopyBufferToTexture(src *wgpu.Buffer, bytesPerRow uint32, dst *wgpu.Texture, width, height uint32) error

	// BuildBindGroup creates a bind group from the provider's layout and resources and stores it on the provider.
	//
	// Parameters:
	//   - provider: the provider holding the layout and resources
	//
	// Returns:
	//   - error: an error if the layout is missing or creation fails
	BuildBindGroup(provider bind_group_provider.BindGroupProvider) error

	// BeginFrame acquires the swapchain texture and begins a render pass that clears it to black.
	BeginFrame() error

	// Draw encodes a non-indexed draw within the current render pass, restricted to the viewport.
	//
	// Parameters:
	//   - p: the registered render pipeline
	//   - vertexBuffer: the buffer bound at vertex slot 0
	//   - bindGroups: providers whose bind groups are set at group index i
	//   - vertexCount: the number of vertices to draw
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame
	Draw(p pipeline.Pipeline, vertexBuffer *wgpu.Buffer, bindGroups []bind_group_provider.BindGroupProvider, vertexCount uint32) error

	// EndFrame ends the render pass and submits the frame's command buffer.
	EndFrame()

	// Present presents the surface and releases the swapchain texture.
	Present()

	// Poll drives the device, optionally blocking until all submitted work completes.
	Poll(wait bool)

	// Release releases the device, surface, adapter and instance.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates the instance, surface, adapter and device on the calling
// thread, which stays locked to it. The device is shared with the compute layer, so it is
// requested with the default limits kernels are written against.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor) wgpuRendererBackend {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{CompatibleSurface: b.surface})
	if err != nil {
		panic(fmt.Sprintf("renderer: request adapter: %v", err))
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "interop device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: wgpu.DefaultLimits()},
	})
	if err != nil {
		panic(fmt.Sprintf("renderer: request device: %v", err))
	}
	b.device = device
	b.queue = device.GetQueue()
	return b
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		// minimized; keep the previous configuration
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = uint32(width), uint32(height)
	b.viewport = clipViewport(b.viewport, b.width, b.height)
}

// clipViewport clips a viewport rectangle to the surface. A zero-sized viewport covers the whole surface.
func clipViewport(vp [4]uint32, width, height uint32) [4]uint32 {
	if vp[2] == 0 || vp[3] == 0 {
		return [4]uint32{0, 0, width, height}
	}
	x, y := min(vp[0], width), min(vp[1], height)
	return [4]uint32{x, y, min(vp[2], width-x), min(vp[3], height-y)}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) SetViewport(x, y, width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = clipViewport([4]uint32{x, y, width, height}, b.width, b.height)
}

func (b *wgpuRendererBackendImpl) Viewport() [4]uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surfaceFormat == nil {
		return wgpu.TextureFormatUndefined
	}
	return *b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surfaceFormat == nil {
		return errors.New("surface must be configured before registering a render pipeline")
	}

	sh := p.Shader()
	module, err := b.device.CreateShaderModule(sh.Module())
	if err != nil {
		return err
	}
	defer module.Release()

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, p.GroupCount())
	releaseLayouts := func() {
		for _, l := range bindGroupLayouts {
			if l != nil {
				l.Release()
			}
		}
	}
	for g := range bindGroupLayouts {
		desc := p.BindGroupLayoutDescriptor(g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			releaseLayouts()
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		releaseLayouts()
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: p.VertexEntryPoint(),
			Buffers:    sh.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: p.FragmentEntryPoint(),
			Targets: []wgpu.ColorTargetState{{
				Format:    *b.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		releaseLayouts()
		return err
	}

	p.SetRenderPipeline(created, bindGroupLayouts)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, contents []byte) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(contents) > 0 {
		usage |= wgpu.BufferUsageCopyDst
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, err
	}
	if len(contents) > 0 {
		b.queue.WriteBuffer(buf, 0, contents)
	}
	return buf, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteBuffer(buf, offset, data)
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, format wgpu.TextureFormat, usage wgpu.TextureUsage, width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         usage,
		Dimension:     wgpu.TextureDimension2D,
		Size:          *extent(width, height),
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeNearest),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeNearest),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: 1,
	})
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex *wgpu.Texture, data []byte, bytesPerRow, width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout := rows(bytesPerRow, height)
	b.queue.WriteTexture(wholeTexture(tex), data, &layout, extent(width, height))
}

func (b *wgpuRendererBackendImpl) CopyBufferToTexture(src *wgpu.Buffer, bytesPerRow uint32, dst *wgpu.Texture, width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	encoder.CopyBufferToTexture(
		&wgpu.ImageCopyBuffer{Buffer: src, Layout: rows(bytesPerRow, height)},
		wholeTexture(dst),
		extent(width, height),
	)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(cmd)
	cmd.Release()
	return nil
}

// extent is a single-layer 2D copy or texture size.
func extent(width, height uint32) *wgpu.Extent3D {
	return &wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
}

// wholeTexture addresses mip 0 of a texture from its origin.
func wholeTexture(tex *wgpu.Texture) *wgpu.ImageCopyTexture {
	return &wgpu.ImageCopyTexture{Texture: tex, Aspect: wgpu.TextureAspectAll}
}

// rows describes height tightly stacked rows of bytesPerRow bytes.
func rows(bytesPerRow, height uint32) wgpu.TextureDataLayout {
	return wgpu.TextureDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: height}
}

func (b *wgpuRendererBackendImpl) BuildBindGroup(provider bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout := provider.BindGroupLayout()
	if layout == nil {
		return fmt.Errorf("bind group %q has no layout", provider.Label())
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: provider.Entries(),
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup)
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: letterbox,
		}},
	})

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) Draw(
	p pipeline.Pipeline,
	vertexBuffer *wgpu.Buffer,
	bindGroups []bind_group_provider.BindGroupProvider,
	vertexCount uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	vp := b.viewport
	if vp[2] == 0 || vp[3] == 0 {
		return nil
	}

	b.framePass.SetViewport(float32(vp[0]), float32(vp[1]), float32(vp[2]), float32(vp[3]), 0, 1)
	b.framePass.SetPipeline(p.Pipeline())
	for i, bg := range bindGroups {
		b.framePass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	b.framePass.SetVertexBuffer(0, vertexBuffer, 0, wgpu.WholeSize)
	b.framePass.Draw(vertexCount, 1, 0, 0)
	return nil
}

// EndFrame submits the frame's pass. If the encoder cannot finish, the surface texture is dropped
// and Present becomes a no-op for this frame.
func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil

	encoder := b.frameEncoder
	b.frameEncoder = nil
	defer encoder.Release()
	cmd, err := encoder.Finish(nil)
	if err != nil {
		b.dropSurfaceTexture()
		return
	}
	defer cmd.Release()
	b.queue.Submit(cmd)
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.dropSurfaceTexture()
}

// dropSurfaceTexture releases the frame's surface texture and its view.
func (b *wgpuRendererBackendImpl) dropSurfaceTexture() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Poll(wait bool) {
	b.device.Poll(wait, nil)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device     { return b.device }
func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue       { return b.queue }
func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance { return b.instance }
func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter   { return b.adapter }
func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface   { return b.surface }
