package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// PixelBufferUsage is the usage of pixel-transfer buffers: compute kernels write them as storage
// and textures copy from them.
const PixelBufferUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Buffer is a GPU buffer owned by the renderer. It implements common.GraphicsBuffer so compute
// memory can wrap it.
type Buffer struct {
	backend RendererBackend
	label   string
	buf     *wgpu.Buffer
	size    uint64
	usage   wgpu.BufferUsage
}

var _ common.GraphicsBuffer = &Buffer{}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() wgpu.BufferUsage { return b.usage }

// Native returns the underlying *wgpu.Buffer.
func (b *Buffer) Native() any { return b.buf }

// Handle returns the underlying buffer, nil after Release.
func (b *Buffer) Handle() *wgpu.Buffer { return b.buf }

// Write copies data into the buffer at offset through the queue.
//
// Parameters:
//   - offset: the byte offset, a multiple of 4
//   - data: the bytes to write, a multiple of 4 in length
//
// Returns:
//   - error: an error if the buffer was released, the write is misaligned or out of range
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.buf == nil {
		return fmt.Errorf("buffer %q: released", b.label)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("buffer %q: write at %d of %d bytes is not 4-byte aligned", b.label, offset, len(data))
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("buffer %q: write of %d bytes at %d exceeds %d bytes", b.label, len(data), offset, b.size)
	}
	b.backend.WriteBuffer(b.buf, offset, data)
	return nil
}

// Release releases the GPU buffer. It is safe to call more than once.
func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}
