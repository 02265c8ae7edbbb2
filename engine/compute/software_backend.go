package compute

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
)

// Grid is the index space a software kernel row executes in.
type Grid struct {
	// Width and Height are the requested index space.
	Width, Height uint32
	// Pitch is the index space width rounded up to whole workgroups; it matches
	// num_workgroups.x * workgroup_size.x on the GPU.
	Pitch uint32
	// Rows is the index space height rounded up to whole workgroups.
	Rows uint32
}

// SoftwareKernel computes every invocation of one row of a kernel's index space. Buffer arguments
// arrive as the backing bytes of the memory object, value arguments as the bound value's bytes.
// Rows of one run execute concurrently and must only write locations derived from their own row.
type SoftwareKernel func(row uint32, grid Grid, args map[uint32][]byte)

// discoverSoftware builds the configured software platforms.
func discoverSoftware(r *Registry) []*Platform {
	platforms := make([]*Platform, 0, len(r.softwarePlatforms))
	for _, sp := range r.softwarePlatforms {
		p := &Platform{
			registry: r,
			name:     sp.Name,
			version:  sp.Version,
			sharable: sp.Sharable,
			driver:   &softwarePlatform{registry: r},
		}
		for _, d := range sp.Devices {
			p.devices = append(p.devices, &Device{platform: p, name: d.Name, vendor: d.Vendor, profile: d.Profile})
		}
		platforms = append(platforms, p)
	}
	return platforms
}

type softwarePlatform struct {
	registry *Registry
}

func (p *softwarePlatform) newContext(dev *Device) (contextDriver, error) {
	return &softwareContext{
		registry: p.registry,
		workers:  p.registry.workers,
		pool:     worker.NewDynamicWorkerPool(p.registry.workers, 256, 1*time.Second),
	}, nil
}

func (p *softwarePlatform) release() {}

// softwareContext runs kernels on a worker pool shared by every kernel of the context.
type softwareContext struct {
	registry *Registry
	workers  int
	pool     worker.DynamicWorkerPool
}

func (c *softwareContext) createBuffer(_ string, size uint64) (bufferDriver, error) {
	return &hostBuffer{data: make([]byte, size)}, nil
}

func (c *softwareContext) wrapBuffer(g GraphicsBuffer) (bufferDriver, error) {
	data, ok := g.Native().([]byte)
	if !ok {
		return nil, fmt.Errorf("%s is not a host memory buffer", g.Label())
	}
	return &hostBuffer{data: data}, nil
}

func (c *softwareContext) wrapTexture(g GraphicsTexture) (bufferDriver, error) {
	data, ok := g.Native().([]byte)
	if !ok {
		return nil, fmt.Errorf("%s is not a host memory texture", g.Label())
	}
	return &hostBuffer{data: data, texture: true}, nil
}

func (c *softwareContext) newQueue(string) (queueDriver, error) {
	return softwareQueue{}, nil
}

// buildProgram succeeds when every @compute entry point has a registered software implementation.
func (c *softwareContext) buildProgram(path, _ string, sh shader.Shader) (programDriver, error) {
	impls := make(map[string]SoftwareKernel)
	var missing []string
	for _, ep := range sh.EntryPointsOf(shader.ShaderTypeCompute) {
		impl, ok := c.registry.softwareKernels[ep.Name]
		if !ok {
			missing = append(missing, fmt.Sprintf("error: entry point %q has no software implementation", ep.Name))
			continue
		}
		impls[ep.Name] = impl
	}
	if len(missing) > 0 {
		return nil, &BuildError{Path: path, Log: strings.Join(missing, "\n")}
	}
	return &softwareProgram{ctx: c, impls: impls}, nil
}

func (c *softwareContext) release() {
	c.pool.Stop()
}

// hostBuffer is a software allocation, or a view of a host memory graphics resource.
type hostBuffer struct {
	data    []byte
	texture bool
}

func (b *hostBuffer) size() uint64    { return uint64(len(b.data)) }
func (b *hostBuffer) native() any     { return b.data }
func (b *hostBuffer) isTexture() bool { return b.texture }
func (b *hostBuffer) release()        {}

// softwareQueue executes transfers immediately, so flush and finish have nothing to wait for.
type softwareQueue struct{}

func (softwareQueue) write(buf bufferDriver, data []byte) error {
	b := buf.(*hostBuffer)
	if len(data) > len(b.data) {
		return fmt.Errorf("write of %d bytes exceeds %d-byte buffer", len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (softwareQueue) read(buf bufferDriver, dst []byte) error {
	b := buf.(*hostBuffer)
	if len(dst) > len(b.data) {
		return fmt.Errorf("read of %d bytes exceeds %d-byte buffer", len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

func (softwareQueue) flush() error  { return nil }
func (softwareQueue) finish() error { return nil }
func (softwareQueue) release()      {}

type softwareProgram struct {
	ctx   *softwareContext
	impls map[string]SoftwareKernel
}

func (p *softwareProgram) kernel(ep shader.EntryPoint) (kernelDriver, error) {
	return &softwareKernel{ctx: p.ctx, entry: ep, impl: p.impls[ep.Name]}, nil
}

func (p *softwareProgram) release() {}

type softwareKernel struct {
	ctx   *softwareContext
	entry shader.EntryPoint
	impl  SoftwareKernel
}

// run splits the workgroup-rounded rows into bands, executes the bands on the context's worker
// pool and waits for all of them. A panicking row fails the run instead of the process.
func (k *softwareKernel) run(_ queueDriver, args map[uint32]resolvedArg, global [2]uint32) error {
	if global[0] == 0 || global[1] == 0 {
		return nil
	}
	wg := k.entry.WorkgroupSize
	grid := Grid{
		Width:  global[0],
		Height: global[1],
		Pitch:  common.AlignUp(global[0], max(wg[0], 1)),
		Rows:   common.AlignUp(global[1], max(wg[1], 1)),
	}
	bufs := make(map[uint32][]byte, len(args))
	for idx, arg := range args {
		if arg.value != nil {
			bufs[idx] = arg.value
			continue
		}
		bufs[idx] = arg.buf.native().([]byte)
	}

	bands := min(uint32(max(k.ctx.workers, 1)*4), grid.Rows)
	bandRows := (grid.Rows + bands - 1) / bands

	var (
		barrier  sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for b := range bands {
		start := b * bandRows
		end := min(start+bandRows, grid.Rows)
		if start >= end {
			break
		}
		barrier.Add(1)
		k.ctx.pool.SubmitTask(worker.Task{
			ID: int(b),
			Do: func() (any, error) {
				defer barrier.Done()
				defer func() {
					if rec := recover(); rec != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = fmt.Errorf("software kernel %s panicked: %v", k.entry.Name, rec)
						}
						errMu.Unlock()
					}
				}()
				for row := start; row < end; row++ {
					k.impl(row, grid, bufs)
				}
				return nil, nil
			},
		})
	}
	barrier.Wait()
	return firstErr
}

func (k *softwareKernel) release() {}
