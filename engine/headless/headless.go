// Package headless provides a graphics context whose buffers and textures live in host memory.
// The compute software backend shares them the way the WebGPU backend shares renderer resources.
package headless

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/common"
)

// Context is a host-memory graphics context. Flush has nothing to drain and only counts calls.
type Context struct {
	logger *slog.Logger

	mu      sync.Mutex
	flushes int
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger of the context and the resources it creates. A nil logger is ignored.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewContext creates a headless graphics context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{logger: common.NopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flush records a flush. Host memory writes are visible immediately.
func (c *Context) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

// Flushes returns how many times Flush was called.
func (c *Context) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// NewBuffer allocates a zeroed host buffer.
//
// Parameters:
//   - label: a debug label
//   - size: the size in bytes
//
// Returns:
//   - *Buffer: the buffer
func (c *Context) NewBuffer(label string, size uint64) *Buffer {
	c.logger.Debug("buffer created", "label", label, "size", size)
	return &Buffer{label: label, data: make([]byte, size)}
}

// NewTexture creates an empty texture. It is allocated by its first upload.
func (c *Context) NewTexture(label string) *Texture {
	return &Texture{label: label, logger: c.logger}
}

// Buffer is a host-memory graphics buffer.
type Buffer struct {
	label string
	data  []byte
}

var _ common.GraphicsBuffer = &Buffer{}

func (b *Buffer) Label() string { return b.label }

func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

// Native returns the backing []byte.
func (b *Buffer) Native() any { return b.data }

// Bytes returns the backing storage.
func (b *Buffer) Bytes() []byte { return b.data }
