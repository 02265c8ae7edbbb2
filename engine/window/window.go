package window

import (
	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/camera"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// DefaultWidth and DefaultHeight are the initial framebuffer size when WithSize is not given.
	DefaultWidth  = 1280
	DefaultHeight = 720

	// minSize keeps at least one viewport granule visible; maxSize matches the largest viewport.
	minSize = camera.Granularity
	maxSize = camera.MaxDimension
)

// Window is the surface the frame loop presents to and the source of its input: Enter and
// pointer drags drive the view, resizes reshape it and Escape or the close button ends it.
type Window interface {
	// SetUpdateCallback sets the function called once per event loop iteration.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called with the new framebuffer size in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the function called with the key code of every press and repeat.
	// Escape never reaches it.
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetPointerDownCallback sets the function called when the left button goes down.
	SetPointerDownCallback(callback func(x, y int32))

	// SetPointerUpCallback sets the function called when the left button comes up.
	SetPointerUpCallback(callback func(x, y int32))

	// SetMouseMoveCallback sets the function called with every cursor position.
	SetMouseMoveCallback(callback func(x, y int32))

	// SurfaceDescriptor describes the native surface for WebGPU.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor, nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is open and no close was requested.
	IsRunning() bool

	// Close destroys the window.
	//
	// Returns:
	//   - error: ErrClosed if the window was already closed
	Close() error

	// ProcessMessages polls events and calls the update callback until the window stops running.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// callbacks holds the handlers installed by the frame loop. Nil handlers are skipped.
type callbacks struct {
	update      func()
	resize      func(width, height int)
	keyDown     func(keyCode uint32)
	pointerDown func(x, y int32)
	pointerUp   func(x, y int32)
	move        func(x, y int32)
}

type engineWindow struct {
	title         string
	width, height int
	native        *nativeWindow
	on            callbacks
}

var _ Window = &engineWindow{}

// NewWindow opens a window sized within [64, 1920] pixels per side.
//
// Parameters:
//   - options: functional options applied over the defaults
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{title: "advected", width: DefaultWidth, height: DefaultHeight}
	for _, opt := range options {
		opt(w)
	}
	w.width = min(max(w.width, minSize), maxSize)
	w.height = min(max(w.height, minSize), maxSize)
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func())                  { w.on.update = callback }
func (w *engineWindow) SetResizeCallback(callback func(width, height int)) { w.on.resize = callback }
func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32))   { w.on.keyDown = callback }
func (w *engineWindow) SetPointerDownCallback(callback func(x, y int32))   { w.on.pointerDown = callback }
func (w *engineWindow) SetPointerUpCallback(callback func(x, y int32))     { w.on.pointerUp = callback }
func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32))     { w.on.move = callback }

func (w *engineWindow) Width() int  { return w.width }
func (w *engineWindow) Height() int { return w.height }

// keyEvent routes a key press. Escape is swallowed and reported as a quit request; releases are ignored.
//
// Parameters:
//   - keyCode: the GLFW key code
//   - pressed: true for press and repeat
//
// Returns:
//   - bool: true if the window should close
func (w *engineWindow) keyEvent(keyCode uint32, pressed bool) bool {
	if !pressed {
		return false
	}
	if keyCode == common.KeyEsc {
		return true
	}
	if w.on.keyDown != nil {
		w.on.keyDown(keyCode)
	}
	return false
}

// pointerEvent routes a left button transition.
func (w *engineWindow) pointerEvent(pressed bool, x, y int32) {
	cb := w.on.pointerUp
	if pressed {
		cb = w.on.pointerDown
	}
	if cb != nil {
		cb(x, y)
	}
}

// moveEvent routes a cursor position.
func (w *engineWindow) moveEvent(x, y float64) {
	if w.on.move != nil {
		w.on.move(int32(x), int32(y))
	}
}

// resizeEvent records the framebuffer size and forwards it. A minimized window reports 0x0 and
// is not forwarded, so the last usable size stays in effect.
func (w *engineWindow) resizeEvent(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	if w.on.resize != nil {
		w.on.resize(width, height)
	}
}
