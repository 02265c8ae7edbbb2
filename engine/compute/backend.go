package compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Backend selects the driver a Registry discovers platforms with.
type Backend int

const (
	// BackendWGPU executes kernels on WebGPU adapters and shares the renderer's device.
	BackendWGPU Backend = iota

	// BackendSoftware executes kernels on the CPU against host memory graphics resources.
	BackendSoftware
)

func (b Backend) String() string {
	switch b {
	case BackendWGPU:
		return "wgpu"
	case BackendSoftware:
		return "software"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// GraphicsContext is the active graphics context compute discovery depends on.
type GraphicsContext interface {
	// Flush blocks until every submitted graphics command has completed.
	//
	// Returns:
	//   - error: an error if the graphics device could not be drained
	Flush() error
}

// WGPUGraphicsContext is a graphics context backed by a WebGPU device. The WebGPU backend
// adopts its device and queue for platforms that can share it.
type WGPUGraphicsContext interface {
	GraphicsContext

	// Instance returns the WebGPU instance used to enumerate adapters.
	Instance() *wgpu.Instance

	// Adapter returns the adapter the graphics device was requested from.
	Adapter() *wgpu.Adapter

	// Device returns the graphics device.
	Device() *wgpu.Device

	// Queue returns the graphics device queue.
	Queue() *wgpu.Queue

	// Surface returns the presentation surface.
	Surface() *wgpu.Surface
}

// GraphicsBuffer is a graphics-side buffer that can be wrapped as interop memory.
type GraphicsBuffer = common.GraphicsBuffer

// GraphicsTexture is a graphics-side 2D texture that can be wrapped as interop memory.
type GraphicsTexture = common.GraphicsTexture

// platformDriver is the backend half of a Platform.
type platformDriver interface {
	newContext(dev *Device) (contextDriver, error)
	release()
}

// contextDriver owns the backend device a Context is bound to.
type contextDriver interface {
	createBuffer(label string, size uint64) (bufferDriver, error)
	wrapBuffer(buf GraphicsBuffer) (bufferDriver, error)
	wrapTexture(tex GraphicsTexture) (bufferDriver, error)
	newQueue(label string) (queueDriver, error)
	buildProgram(path, source string, sh shader.Shader) (programDriver, error)
	release()
}

// bufferDriver is a backend allocation a Memory object refers to.
type bufferDriver interface {
	size() uint64
	native() any
	isTexture() bool
	release()
}

// queueDriver moves data and drains work on one backend queue.
type queueDriver interface {
	write(buf bufferDriver, data []byte) error
	read(buf bufferDriver, dst []byte) error
	flush() error
	finish() error
	release()
}

// programDriver resolves entry points of a built module.
type programDriver interface {
	kernel(ep shader.EntryPoint) (kernelDriver, error)
	release()
}

// kernelDriver executes one entry point with resolved arguments.
type kernelDriver interface {
	run(q queueDriver, args map[uint32]resolvedArg, global [2]uint32) error
	release()
}

// resolvedArg is one argument ready for a backend: either a buffer or a value payload.
type resolvedArg struct {
	buf   bufferDriver
	value []byte
}
