package compute

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"honnef.co/go/safeish"
)

// Binding is one typed kernel argument: an argument index plus what is bound there.
// Bindings are applied in order by Kernel.SetArgs.
type Binding interface {
	// Index returns the @binding index in group 0 the argument is bound to.
	Index() uint32

	check(decl shader.Binding) error
	resolve(q *Queue) (resolvedArg, error)
}

type memoryBinding struct {
	index uint32
	mem   *Memory
}

// MemoryArg binds a memory object's device handle to an argument index.
//
// Parameters:
//   - index: the @binding index
//   - m: the memory object
//
// Returns:
//   - Binding: the argument descriptor
func MemoryArg(index uint32, m *Memory) Binding {
	return memoryBinding{index: index, mem: m}
}

func (b memoryBinding) Index() uint32 { return b.index }

func (b memoryBinding) check(decl shader.Binding) error {
	if b.mem == nil {
		return fmt.Errorf("%w: nil memory at binding %d", ErrIncompatibleResource, b.index)
	}
	isTexture := b.mem.driver.isTexture()
	switch {
	case decl.IsStorage() && !isTexture:
		return nil
	case isTexture && decl.Layout.StorageTexture.Format != wgpu.TextureFormatUndefined:
		return nil
	}
	return fmt.Errorf("%w: %s cannot bind to %s %q at binding %d",
		ErrIncompatibleResource, b.mem.label, decl.TypeName, decl.Name, b.index)
}

func (b memoryBinding) resolve(q *Queue) (resolvedArg, error) {
	if err := b.mem.usableBy(q); err != nil {
		return resolvedArg{}, err
	}
	return resolvedArg{buf: b.mem.driver}, nil
}

type valueBinding struct {
	index uint32
	data  []byte
}

// ValueArg binds a fixed-size value, such as a scalar, a struct or a fixed-length array, to an
// argument index. The value's in-memory bytes are copied when the descriptor is created.
//
// Parameters:
//   - index: the @binding index
//   - v: the value
//
// Returns:
//   - Binding: the argument descriptor
func ValueArg[T any](index uint32, v T) Binding {
	raw := safeish.AsBytes(&v)
	data := make([]byte, len(raw))
	copy(data, raw)
	return valueBinding{index: index, data: data}
}

func (b valueBinding) Index() uint32 { return b.index }

func (b valueBinding) check(decl shader.Binding) error {
	if !decl.IsUniform() && !decl.IsStorage() {
		return fmt.Errorf("%w: value cannot bind to %s %q at binding %d",
			ErrIncompatibleResource, decl.TypeName, decl.Name, b.index)
	}
	return nil
}

func (b valueBinding) resolve(*Queue) (resolvedArg, error) {
	return resolvedArg{value: b.data}, nil
}

// Kernel is a handle to one @compute entry point of a built program. It keeps only its bound
// arguments between runs.
type Kernel struct {
	program *Program
	entry   shader.EntryPoint
	driver  kernelDriver

	mu       sync.Mutex
	args     map[uint32]Binding
	released bool
}

// Name returns the entry point name.
func (k *Kernel) Name() string { return k.entry.Name }

// WorkgroupSize returns the entry point's @workgroup_size.
func (k *Kernel) WorkgroupSize() [3]uint32 { return k.entry.WorkgroupSize }

// Program returns the program the kernel was resolved from.
func (k *Kernel) Program() *Program { return k.program }

// SetArg binds one argument, replacing any earlier binding at the same index.
//
// Parameters:
//   - b: the argument descriptor
//
// Returns:
//   - error: ErrIncompatibleResource if the program declares no compatible resource at the index
func (k *Kernel) SetArg(b Binding) error {
	decl, ok := k.program.shader.Binding(0, b.Index())
	if !ok {
		return fmt.Errorf("%w: %s declares no binding %d", ErrIncompatibleResource, k.program.path, b.Index())
	}
	if err := b.check(decl); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return ErrReleased
	}
	k.args[b.Index()] = b
	return nil
}

// SetArgs binds an ordered list of arguments, stopping at the first failure.
//
// Parameters:
//   - bindings: the argument descriptors, applied in order
//
// Returns:
//   - error: the first binding error
func (k *Kernel) SetArgs(bindings ...Binding) error {
	for _, b := range bindings {
		if err := k.SetArg(b); err != nil {
			return fmt.Errorf("compute: %s arg %d: %w", k.entry.Name, b.Index(), err)
		}
	}
	return nil
}

// Run enqueues the kernel over a 2D index space and blocks until the device reports completion.
// The index space is rounded up to whole workgroups.
//
// Parameters:
//   - q: the queue to run on
//   - global: the index space as [width, height]
//
// Returns:
//   - error: ErrUnboundArgument if a binding the kernel uses is unset, ErrNotAcquired if an
//     interop argument is not owned by q, or the wrapped driver error
func (k *Kernel) Run(q *Queue, global [2]uint32) error {
	if err := q.checkPlatform(k.program.platform); err != nil {
		return err
	}

	k.mu.Lock()
	if k.released {
		k.mu.Unlock()
		return ErrReleased
	}
	args := make(map[uint32]resolvedArg, len(k.entry.Bindings))
	for _, idx := range k.entry.Bindings {
		b, ok := k.args[idx]
		if !ok {
			k.mu.Unlock()
			return fmt.Errorf("%w: %s binding %d", ErrUnboundArgument, k.entry.Name, idx)
		}
		arg, err := b.resolve(q)
		if err != nil {
			k.mu.Unlock()
			return fmt.Errorf("compute: %s binding %d: %w", k.entry.Name, idx, err)
		}
		args[idx] = arg
	}
	k.mu.Unlock()

	start := time.Now()
	if err := k.driver.run(q.driver, args, global); err != nil {
		return fmt.Errorf("compute: run %s: %w", k.entry.Name, err)
	}
	k.program.platform.registry.logger.Debug("kernel finished",
		"kernel", k.entry.Name, "width", global[0], "height", global[1], "elapsed", time.Since(start))
	return nil
}

// Release releases the kernel handle. Releasing twice is a no-op.
func (k *Kernel) Release() {
	k.mu.Lock()
	if k.released {
		k.mu.Unlock()
		return
	}
	k.released = true
	k.args = nil
	k.mu.Unlock()

	k.driver.release()
	k.program.forgetKernel(k)
	k.program.platform.registry.released(ObjectKernel, k.entry.Name)
}
