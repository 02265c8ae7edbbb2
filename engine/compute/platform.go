package compute

import (
	"fmt"
	"slices"
	"sync"
)

// Device is one compute device of a platform. It is immutable after discovery.
type Device struct {
	platform *Platform
	name     string
	vendor   string
	profile  string
	native   any
}

// Name returns the device name reported by the driver.
func (d *Device) Name() string { return d.name }

// Vendor returns the device vendor reported by the driver.
func (d *Device) Vendor() string { return d.vendor }

// Profile returns the device profile, e.g. the adapter type.
func (d *Device) Profile() string { return d.profile }

// Platform returns the platform that owns the device.
func (d *Device) Platform() *Platform { return d.platform }

// Context is the compute context of a platform, bound to the platform's default device for its lifetime.
type Context struct {
	platform *Platform
	device   *Device
	driver   contextDriver
}

// Device returns the device the context is bound to.
func (c *Context) Device() *Device { return c.device }

// Platform returns the platform that owns the context.
func (c *Context) Platform() *Platform { return c.platform }

// Platform groups the devices of one driver and owns at most one Context.
type Platform struct {
	registry *Registry
	name     string
	version  string
	devices  []*Device
	sharable bool
	driver   platformDriver

	ctxOnce sync.Once
	ctx     *Context
	ctxErr  error

	mu       sync.Mutex
	queues   []*Queue
	programs []*Program
	memories []*Memory
	released bool
}

// Name returns the platform name.
func (p *Platform) Name() string { return p.name }

// Version returns the platform version string.
func (p *Platform) Version() string { return p.version }

// Devices returns the devices of the platform in discovery order.
func (p *Platform) Devices() []*Device { return p.devices }

// DefaultDevice returns the first device of the platform, or nil if it has none.
func (p *Platform) DefaultDevice() *Device {
	if len(p.devices) == 0 {
		return nil
	}
	return p.devices[0]
}

// Sharable reports whether the platform can share the active graphics context.
func (p *Platform) Sharable() bool { return p.sharable }

// Context returns the platform's compute context, creating it on first use. Only the first
// call creates the context; later calls return the same context or the same error.
//
// Returns:
//   - *Context: the context bound to the default device
//   - error: the creation error, if the first call failed
func (p *Platform) Context() (*Context, error) {
	if p.isReleased() {
		return nil, ErrReleased
	}
	p.ctxOnce.Do(func() {
		dev := p.DefaultDevice()
		if dev == nil {
			p.ctxErr = fmt.Errorf("compute: platform %s has no devices", p.name)
			return
		}
		driver, err := p.driver.newContext(dev)
		if err != nil {
			p.ctxErr = fmt.Errorf("compute: create context on %s: %w", p.name, err)
			return
		}
		p.ctx = &Context{platform: p, device: dev, driver: driver}
		p.registry.logger.Info("context created", "platform", p.name, "device", dev.name)
	})
	return p.ctx, p.ctxErr
}

// CreateQueue creates a command queue on the platform's context, initializing the context if needed.
//
// Parameters:
//   - dev: the device the queue is scoped to; nil selects the default device
//
// Returns:
//   - *Queue: the new queue
//   - error: ErrForeignDevice if dev belongs to another platform, or the context/driver error
func (p *Platform) CreateQueue(dev *Device) (*Queue, error) {
	if dev == nil {
		dev = p.DefaultDevice()
	}
	if dev == nil || dev.platform != p {
		return nil, ErrForeignDevice
	}
	ctx, err := p.Context()
	if err != nil {
		return nil, err
	}
	if dev != ctx.device {
		return nil, fmt.Errorf("%w: context is bound to %s", ErrForeignDevice, ctx.device.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}
	label := fmt.Sprintf("%s queue %d", p.name, len(p.queues))
	driver, err := ctx.driver.newQueue(label)
	if err != nil {
		return nil, fmt.Errorf("compute: create queue: %w", err)
	}
	q := &Queue{ctx: ctx, device: dev, driver: driver, label: label}
	p.queues = append(p.queues, q)
	return q, nil
}

func (p *Platform) livePrograms() []*Program {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.programs)
}

func (p *Platform) liveQueues() []*Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queues)
}

func (p *Platform) liveMemories() []*Memory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.memories)
}

func (p *Platform) forgetProgram(prog *Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.programs = slices.DeleteFunc(p.programs, func(x *Program) bool { return x == prog })
}

func (p *Platform) forgetQueue(q *Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = slices.DeleteFunc(p.queues, func(x *Queue) bool { return x == q })
}

func (p *Platform) forgetMemory(m *Memory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memories = slices.DeleteFunc(p.memories, func(x *Memory) bool { return x == m })
}

// releaseContext releases the context if it was ever created.
func (p *Platform) releaseContext() {
	p.mu.Lock()
	ctx := p.ctx
	p.ctx = nil
	p.mu.Unlock()
	if ctx == nil {
		return
	}
	ctx.driver.release()
	p.registry.released(ObjectContext, p.name)
}

// release releases the platform itself.
func (p *Platform) release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()
	p.driver.release()
	p.registry.released(ObjectPlatform, p.name)
}

// isReleased reports whether the platform was released.
func (p *Platform) isReleased() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
