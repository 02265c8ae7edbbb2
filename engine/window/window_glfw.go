package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrClosed is returned by Close on a window that is already closed.
var ErrClosed = errors.New("window: closed")

// nativeWindow is the GLFW handle and the quit flag raised by Escape.
type nativeWindow struct {
	handle *glfw.Window
	quit   bool
}

// open creates the GLFW window on the calling thread, which stays locked to it for the event
// loop, and installs the input and resize handlers. No client API is requested since WebGPU
// creates its own surface.
func (w *engineWindow) open() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("window: init glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("window: create %dx%d: %w", w.width, w.height, err)
	}
	handle.SetSizeLimits(minSize, minSize, maxSize, maxSize)
	w.native = &nativeWindow{handle: handle}

	handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if w.keyEvent(uint32(key), action != glfw.Release) {
			w.native.quit = true
		}
	})
	handle.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			x, y := win.GetCursorPos()
			w.pointerEvent(action == glfw.Press, int32(x), int32(y))
		}
	})
	handle.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		w.moveEvent(x, y)
	})
	// framebuffer pixels, not screen coordinates; they differ on high-DPI displays
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resizeEvent(width, height)
	})

	w.width, w.height = handle.GetFramebufferSize()
	return nil
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.native == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.native.handle)
}

func (w *engineWindow) IsRunning() bool {
	return w.native != nil && !w.native.quit && !w.native.handle.ShouldClose()
}

func (w *engineWindow) Close() error {
	if w.native == nil {
		return ErrClosed
	}
	w.native.handle.Destroy()
	w.native = nil
	glfw.Terminate()
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		glfw.PollEvents()
		if !w.IsRunning() {
			return
		}
		if w.on.update != nil {
			w.on.update()
		}
		runtime.Gosched()
	}
}
