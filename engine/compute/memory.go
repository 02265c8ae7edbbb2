package compute

import (
	"fmt"
	"math"
	"sync"
)

// MemoryKind tags a memory object as compute-only or as a wrapper of a graphics resource.
type MemoryKind int

const (
	// MemoryKindDevicePrivate is a compute-only allocation with a fixed capacity.
	MemoryKindDevicePrivate MemoryKind = iota

	// MemoryKindInterop wraps a graphics buffer or texture.
	MemoryKindInterop
)

func (k MemoryKind) String() string {
	if k == MemoryKindInterop {
		return "interop"
	}
	return "device-private"
}

// Role is the side that currently owns an interop memory object.
type Role int

const (
	// RoleGraphics means the graphics side owns the resource; compute must not touch it.
	RoleGraphics Role = iota

	// RoleCompute means a compute queue acquired the resource; graphics must not touch it.
	RoleCompute
)

func (r Role) String() string {
	if r == RoleCompute {
		return "compute"
	}
	return "graphics"
}

// SizeUnknown is the size reported by interop memory objects.
const SizeUnknown uint64 = math.MaxUint64

// Memory is a GPU allocation addressable as a kernel argument. Interop objects wrap a graphics
// resource and follow the acquire/release protocol: compute may only use them between a
// successful Acquire and the matching Release on the same queue.
type Memory struct {
	platform *Platform
	label    string
	kind     MemoryKind
	capacity uint64
	driver   bufferDriver

	graphicsBuffer  GraphicsBuffer
	graphicsTexture GraphicsTexture

	mu       sync.Mutex
	role     Role
	owner    *Queue
	released bool
}

// CreateBuffer allocates a device-private memory object of a fixed capacity on the platform's context.
//
// Parameters:
//   - size: the capacity in bytes
//
// Returns:
//   - *Memory: the new device-private object
//   - error: the context or driver error
func (p *Platform) CreateBuffer(size uint64) (*Memory, error) {
	ctx, err := p.Context()
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("%s buffer %d", p.name, len(p.liveMemories()))
	driver, err := ctx.driver.createBuffer(label, size)
	if err != nil {
		return nil, fmt.Errorf("compute: create buffer of %d bytes: %w", size, err)
	}
	m := &Memory{
		platform: p,
		label:    label,
		kind:     MemoryKindDevicePrivate,
		capacity: size,
		driver:   driver,
		role:     RoleCompute,
	}
	p.track(m)
	return m, nil
}

// WrapGraphicsBuffer creates an interop memory object over a graphics buffer. The buffer stays
// owned by the graphics side until acquired.
//
// Parameters:
//   - buf: the graphics buffer to wrap
//
// Returns:
//   - *Memory: the interop object
//   - error: ErrNotSharable, ErrAlreadyWrapped, or the driver error
func (p *Platform) WrapGraphicsBuffer(buf GraphicsBuffer) (*Memory, error) {
	if !p.sharable {
		return nil, ErrNotSharable
	}
	ctx, err := p.Context()
	if err != nil {
		return nil, err
	}
	m := &Memory{
		platform:       p,
		label:          buf.Label(),
		kind:           MemoryKindInterop,
		capacity:       SizeUnknown,
		graphicsBuffer: buf,
		role:           RoleGraphics,
	}
	if err := p.registry.claimWrap(buf, m); err != nil {
		return nil, fmt.Errorf("%w: %s", err, buf.Label())
	}
	m.driver, err = ctx.driver.wrapBuffer(buf)
	if err != nil {
		p.registry.dropWrap(buf)
		return nil, fmt.Errorf("compute: wrap %s: %w", buf.Label(), err)
	}
	p.track(m)
	return m, nil
}

// WrapGraphicsTexture creates an interop memory object over a graphics texture.
//
// Parameters:
//   - tex: the graphics texture to wrap
//
// Returns:
//   - *Memory: the interop object
//   - error: ErrNotSharable, ErrAlreadyWrapped, or the driver error
func (p *Platform) WrapGraphicsTexture(tex GraphicsTexture) (*Memory, error) {
	if !p.sharable {
		return nil, ErrNotSharable
	}
	ctx, err := p.Context()
	if err != nil {
		return nil, err
	}
	m := &Memory{
		platform:        p,
		label:           tex.Label(),
		kind:            MemoryKindInterop,
		capacity:        SizeUnknown,
		graphicsTexture: tex,
		role:            RoleGraphics,
	}
	if err := p.registry.claimWrap(tex, m); err != nil {
		return nil, fmt.Errorf("%w: %s", err, tex.Label())
	}
	m.driver, err = ctx.driver.wrapTexture(tex)
	if err != nil {
		p.registry.dropWrap(tex)
		return nil, fmt.Errorf("compute: wrap %s: %w", tex.Label(), err)
	}
	p.track(m)
	return m, nil
}

func (p *Platform) track(m *Memory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memories = append(p.memories, m)
}

// Label returns the diagnostic label of the object.
func (m *Memory) Label() string { return m.label }

// Kind returns whether the object is device-private or interop.
func (m *Memory) Kind() MemoryKind { return m.kind }

// Size returns the capacity of a device-private object, or SizeUnknown for interop objects.
func (m *Memory) Size() uint64 { return m.capacity }

// GraphicsBuffer returns the wrapped graphics buffer, or nil.
func (m *Memory) GraphicsBuffer() GraphicsBuffer { return m.graphicsBuffer }

// GraphicsTexture returns the wrapped graphics texture, or nil.
func (m *Memory) GraphicsTexture() GraphicsTexture { return m.graphicsTexture }

// Role returns the side currently owning the object. Device-private objects are always compute-owned.
func (m *Memory) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// Owner returns the queue that acquired the object, or nil.
func (m *Memory) Owner() *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Acquire hands an interop object to the compute side. Pending graphics work is completed first
// so it cannot race with kernel reads or writes.
//
// Parameters:
//   - q: the queue taking ownership
//
// Returns:
//   - error: ErrNotInterop, ErrAlreadyAcquired, ErrForeignDevice, or the graphics flush error
func (m *Memory) Acquire(q *Queue) error {
	if m.kind != MemoryKindInterop {
		return ErrNotInterop
	}
	if err := q.checkPlatform(m.platform); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return ErrReleased
	}
	if m.role == RoleCompute {
		return fmt.Errorf("%w: %s", ErrAlreadyAcquired, m.label)
	}
	if err := m.platform.registry.gfx.Flush(); err != nil {
		return fmt.Errorf("compute: graphics flush before acquiring %s: %w", m.label, err)
	}
	m.role = RoleCompute
	m.owner = q
	return nil
}

// Release hands an interop object back to the graphics side and flushes q so subsequent
// graphics commands observe the compute writes. Ownership returns to graphics even when the
// flush fails; the flush error is still returned.
//
// Parameters:
//   - q: the queue that acquired the object
//
// Returns:
//   - error: ErrNotInterop, ErrNotAcquired, ErrWrongQueue, or the queue flush error
func (m *Memory) Release(q *Queue) error {
	if m.kind != MemoryKindInterop {
		return ErrNotInterop
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != RoleCompute {
		return fmt.Errorf("%w: %s", ErrNotAcquired, m.label)
	}
	if m.owner != q {
		return fmt.Errorf("%w: %s", ErrWrongQueue, m.label)
	}
	m.role = RoleGraphics
	m.owner = nil
	return q.Flush()
}

// Write copies data into the object through q. Device-private objects clamp the transfer to
// their capacity and report the number of bytes written; a request larger than the capacity
// is truncated, not rejected. Interop objects must be acquired by q, and out-of-range writes
// surface the driver error.
//
// Parameters:
//   - q: the queue to transfer on
//   - data: the bytes to write at offset 0
//
// Returns:
//   - int: the number of bytes written
//   - error: ErrNotAcquired for an interop object not owned by q, or the driver error
func (m *Memory) Write(q *Queue, data []byte) (int, error) {
	n, err := m.transferLen(q, len(data))
	if err != nil {
		return 0, err
	}
	if err := q.driver.write(m.driver, data[:n]); err != nil {
		return 0, fmt.Errorf("compute: write %s: %w", m.label, err)
	}
	return n, nil
}

// Read copies the object's contents into dst through q, with the same clamping and
// ownership rules as Write. The call blocks until the data is available.
//
// Parameters:
//   - q: the queue to transfer on
//   - dst: the destination, filled from offset 0
//
// Returns:
//   - int: the number of bytes read
//   - error: ErrNotAcquired for an interop object not owned by q, or the driver error
func (m *Memory) Read(q *Queue, dst []byte) (int, error) {
	n, err := m.transferLen(q, len(dst))
	if err != nil {
		return 0, err
	}
	if err := q.driver.read(m.driver, dst[:n]); err != nil {
		return 0, fmt.Errorf("compute: read %s: %w", m.label, err)
	}
	return n, nil
}

// transferLen validates a transfer of l bytes and returns the length actually transferred.
func (m *Memory) transferLen(q *Queue, l int) (int, error) {
	if err := q.checkPlatform(m.platform); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return 0, ErrReleased
	}
	if m.kind == MemoryKindInterop {
		if m.role != RoleCompute || m.owner != q {
			return 0, fmt.Errorf("%w: %s", ErrNotAcquired, m.label)
		}
		return l, nil
	}
	return int(min(uint64(l), m.capacity)), nil
}

// usableBy reports whether a kernel running on q may access the object.
func (m *Memory) usableBy(q *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return ErrReleased
	}
	if m.kind == MemoryKindInterop && (m.role != RoleCompute || m.owner != q) {
		return fmt.Errorf("%w: %s", ErrNotAcquired, m.label)
	}
	return nil
}

// Destroy releases the object. Interop wrappers are unregistered so the graphics resource can be
// wrapped again; the graphics resource itself stays owned by the graphics side. Device-private
// storage is freed. Destroying twice is a no-op.
func (m *Memory) Destroy() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	if m.kind == MemoryKindInterop {
		m.role = RoleGraphics
		m.owner = nil
	}
	m.mu.Unlock()

	if m.driver != nil {
		m.driver.release()
	}
	switch {
	case m.graphicsBuffer != nil:
		m.platform.registry.dropWrap(m.graphicsBuffer)
	case m.graphicsTexture != nil:
		m.platform.registry.dropWrap(m.graphicsTexture)
	}
	m.platform.forgetMemory(m)
	m.platform.registry.released(ObjectMemory, m.label)
}
