package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// discoverWGPU groups every adapter of the graphics instance into one platform per WebGPU
// backend. A platform can share the graphics context when it holds the adapter the graphics
// device was created from and the surface reports formats for that adapter.
func discoverWGPU(r *Registry, g WGPUGraphicsContext) ([]*Platform, error) {
	instance := g.Instance()
	if instance == nil || g.Adapter() == nil || g.Device() == nil {
		return nil, fmt.Errorf("%w: graphics device not initialized", ErrNoGraphicsContext)
	}
	gInfo := g.Adapter().GetInfo()
	surfaceOK := true
	if g.Surface() != nil {
		caps := g.Surface().GetCapabilities(g.Adapter())
		surfaceOK = len(caps.Formats) > 0
	}

	var platforms []*Platform
	byBackend := make(map[wgpu.BackendType]*Platform)
	for _, a := range instance.EnumerateAdapters(nil) {
		info := a.GetInfo()
		p, ok := byBackend[info.BackendType]
		if !ok {
			p = &Platform{
				registry: r,
				name:     "WebGPU " + info.BackendType.String(),
				version:  strings.TrimSpace(info.DriverDescription),
				driver:   &wgpuPlatform{gfx: g},
			}
			byBackend[info.BackendType] = p
			platforms = append(platforms, p)
		}
		dev := &Device{
			platform: p,
			name:     strings.TrimSpace(info.Name),
			vendor:   strings.TrimSpace(info.VendorName),
			profile:  info.AdapterType.String(),
			native:   a,
		}
		driver := p.driver.(*wgpuPlatform)
		driver.adapters = append(driver.adapters, a)
		if sameAdapter(info, gInfo) && surfaceOK && !p.sharable {
			// the graphics adapter becomes the default device
			p.sharable = true
			p.devices = append([]*Device{dev}, p.devices...)
			continue
		}
		p.devices = append(p.devices, dev)
	}
	for _, p := range platforms {
		r.logger.Debug("platform enumerated", "platform", p.name, "version", p.version,
			"devices", len(p.devices), "sharable", p.sharable)
	}
	return platforms, nil
}

func sameAdapter(a, b wgpu.AdapterInfo) bool {
	return a.BackendType == b.BackendType &&
		a.VendorId == b.VendorId &&
		a.DeviceId == b.DeviceId &&
		a.Name == b.Name
}

type wgpuPlatform struct {
	gfx      WGPUGraphicsContext
	adapters []*wgpu.Adapter
}

func (p *wgpuPlatform) newContext(dev *Device) (contextDriver, error) {
	adapter := dev.native.(*wgpu.Adapter)
	if dev.platform.sharable && dev == dev.platform.DefaultDevice() {
		return &wgpuContext{device: p.gfx.Device(), queue: p.gfx.Queue(), shared: true}, nil
	}
	limits := wgpu.DefaultLimits()
	d, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: dev.name + " compute device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuContext{device: d, queue: d.GetQueue()}, nil
}

func (p *wgpuPlatform) release() {
	for _, a := range p.adapters {
		a.Release()
	}
	p.adapters = nil
}

// wgpuContext is a compute context on a WebGPU device. A shared context adopts the graphics
// device and never releases it.
type wgpuContext struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	shared bool
}

func (c *wgpuContext) createBuffer(label string, size uint64) (bufferDriver, error) {
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  common.AlignUp(size, 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buf: buf, bytes: size, owned: true}, nil
}

func (c *wgpuContext) wrapBuffer(g GraphicsBuffer) (bufferDriver, error) {
	if !c.shared {
		return nil, ErrNotSharable
	}
	buf, ok := g.Native().(*wgpu.Buffer)
	if !ok || buf == nil {
		return nil, fmt.Errorf("%s is not a WebGPU buffer", g.Label())
	}
	return &wgpuBuffer{buf: buf, bytes: g.Size()}, nil
}

func (c *wgpuContext) wrapTexture(g GraphicsTexture) (bufferDriver, error) {
	if !c.shared {
		return nil, ErrNotSharable
	}
	view, ok := g.Native().(*wgpu.TextureView)
	if !ok || view == nil {
		return nil, fmt.Errorf("%s is not a WebGPU texture view", g.Label())
	}
	return &wgpuTextureView{view: view}, nil
}

func (c *wgpuContext) newQueue(string) (queueDriver, error) {
	return &wgpuQueue{device: c.device, queue: c.queue}, nil
}

func (c *wgpuContext) buildProgram(path, _ string, sh shader.Shader) (programDriver, error) {
	module, err := c.device.CreateShaderModule(sh.Module())
	if err != nil {
		return nil, &BuildError{Path: path, Log: err.Error()}
	}
	return &wgpuProgram{ctx: c, path: path, shader: sh, module: module}, nil
}

func (c *wgpuContext) release() {
	if !c.shared {
		c.device.Release()
	}
}

type wgpuBuffer struct {
	buf   *wgpu.Buffer
	bytes uint64
	owned bool
}

func (b *wgpuBuffer) size() uint64    { return b.bytes }
func (b *wgpuBuffer) native() any     { return b.buf }
func (b *wgpuBuffer) isTexture() bool { return false }
func (b *wgpuBuffer) release() {
	// wrapped buffers belong to the graphics side
	if b.owned {
		b.buf.Release()
	}
}

type wgpuTextureView struct {
	view *wgpu.TextureView
}

func (t *wgpuTextureView) size() uint64    { return SizeUnknown }
func (t *wgpuTextureView) native() any     { return t.view }
func (t *wgpuTextureView) isTexture() bool { return true }
func (t *wgpuTextureView) release()        {}

type wgpuQueue struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

var errTextureTransfer = errors.New("host transfers to texture memory are not supported")

func (q *wgpuQueue) write(buf bufferDriver, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return errTextureTransfer
	}
	payload, err := writePayload(data, b.bytes, b.owned)
	if err != nil {
		return err
	}
	q.queue.WriteBuffer(b.buf, 0, payload)
	return nil
}

// writePayload returns data in the 4-byte granularity WebGPU writes need. A write that fills a
// buffer this context allocated is zero-padded into the allocation's rounding; any other unaligned
// write is rejected.
func writePayload(data []byte, capacity uint64, owned bool) ([]byte, error) {
	if uint64(len(data)) > capacity {
		return nil, fmt.Errorf("write of %d bytes exceeds %d-byte buffer", len(data), capacity)
	}
	if len(data)%4 == 0 {
		return data, nil
	}
	if !owned || uint64(len(data)) != capacity {
		return nil, fmt.Errorf("write of %d bytes is not a multiple of 4", len(data))
	}
	padded := make([]byte, common.AlignUp(capacity, 4))
	copy(padded, data)
	return padded, nil
}

// read copies the buffer into a mappable staging buffer and blocks until the map completes.
func (q *wgpuQueue) read(buf bufferDriver, dst []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return errTextureTransfer
	}
	if uint64(len(dst)) > b.bytes {
		return fmt.Errorf("read of %d bytes exceeds %d-byte buffer", len(dst), b.bytes)
	}
	if len(dst) == 0 {
		return nil
	}
	size := common.AlignUp(uint64(len(dst)), 4)

	staging, err := q.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "compute read staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	defer staging.Release()

	encoder, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return err
	}
	q.queue.Submit(cmd)
	cmd.Release()

	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
	})
	if err != nil {
		return err
	}
	q.device.Poll(true, nil)
	if mapErr != nil {
		return mapErr
	}
	copy(dst, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return nil
}

func (q *wgpuQueue) flush() error {
	q.device.Poll(false, nil)
	return nil
}

func (q *wgpuQueue) finish() error {
	q.device.Poll(true, nil)
	return nil
}

func (q *wgpuQueue) release() {}

type wgpuProgram struct {
	ctx    *wgpuContext
	path   string
	shader shader.Shader
	module *wgpu.ShaderModule
}

// kernel builds a compute pipeline for one entry point with an explicit layout reflected from
// the bindings that entry point uses.
func (p *wgpuProgram) kernel(ep shader.EntryPoint) (kernelDriver, error) {
	desc := p.shader.BindGroupLayoutDescriptor(0, ep.Name)
	bgl, err := p.ctx.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return nil, fmt.Errorf("bind group layout: %w", err)
	}
	layout, err := p.ctx.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            ep.Name,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, err
	}
	pipeline, err := p.ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  ep.Name + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.module,
			EntryPoint: ep.Name,
		},
	})
	if err != nil {
		layout.Release()
		bgl.Release()
		return nil, err
	}
	return &wgpuKernel{
		ctx:             p.ctx,
		entry:           ep,
		entries:         desc.Entries,
		bindGroupLayout: bgl,
		pipelineLayout:  layout,
		pipeline:        pipeline,
		values:          make(map[uint32]*wgpu.Buffer),
	}, nil
}

func (p *wgpuProgram) release() {
	p.module.Release()
}

type wgpuKernel struct {
	ctx             *wgpuContext
	entry           shader.EntryPoint
	entries         []wgpu.BindGroupLayoutEntry
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipeline        *wgpu.ComputePipeline
	values          map[uint32]*wgpu.Buffer
}

// run rebuilds the bind group from args, dispatches one compute pass and waits for the device.
func (k *wgpuKernel) run(qd queueDriver, args map[uint32]resolvedArg, global [2]uint32) error {
	q := qd.(*wgpuQueue)
	if global[0] == 0 || global[1] == 0 {
		return nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.entries))
	for _, e := range k.entries {
		arg := args[e.Binding]
		switch {
		case arg.value != nil:
			buf, err := k.valueBuffer(q, e, arg.value)
			if err != nil {
				return err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: buf, Size: wgpu.WholeSize})
		case arg.buf != nil && arg.buf.isTexture():
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, TextureView: arg.buf.native().(*wgpu.TextureView)})
		case arg.buf != nil:
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: arg.buf.native().(*wgpu.Buffer), Size: wgpu.WholeSize})
		default:
			return fmt.Errorf("%w: binding %d", ErrUnboundArgument, e.Binding)
		}
	}

	bindGroup, err := k.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.entry.Name + " Bind Group",
		Layout:  k.bindGroupLayout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	encoder, err := k.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	wg := k.entry.WorkgroupSize
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(
		common.AlignUp(global[0], wg[0])/max(wg[0], 1),
		common.AlignUp(global[1], wg[1])/max(wg[1], 1),
		1,
	)
	pass.End()

	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return err
	}
	q.queue.Submit(cmd)
	cmd.Release()
	q.device.Poll(true, nil)
	return nil
}

// valueBuffer writes a by-value argument into the kernel's buffer for that binding,
// growing it to the declared size rounded up to 16 bytes.
func (k *wgpuKernel) valueBuffer(q *wgpuQueue, e wgpu.BindGroupLayoutEntry, value []byte) (*wgpu.Buffer, error) {
	size := common.AlignUp(max(uint64(len(value)), e.Buffer.MinBindingSize), 16)
	buf := k.values[e.Binding]
	if buf == nil || buf.GetSize() < size {
		if buf != nil {
			buf.Release()
		}
		var err error
		buf, err = k.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s value %d", k.entry.Name, e.Binding),
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		k.values[e.Binding] = buf
	}
	padded := make([]byte, size)
	copy(padded, value)
	q.queue.WriteBuffer(buf, 0, padded)
	return buf, nil
}

func (k *wgpuKernel) release() {
	for _, buf := range k.values {
		buf.Release()
	}
	k.pipeline.Release()
	k.pipelineLayout.Release()
	k.bindGroupLayout.Release()
}
