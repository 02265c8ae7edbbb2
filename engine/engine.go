package engine

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/camera"
	"github.com/Carmen-Shannon/oxy-interop/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-interop/engine/profiler"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer"
	"github.com/Carmen-Shannon/oxy-interop/engine/window"
)

// Dispatcher runs the compute pass of a frame. *dispatch.Orchestrator satisfies it.
type Dispatcher interface {
	Frame() error
	AdvanceMode() dispatch.Mode
	SetViewport(width, height uint32)
	LastFrame() dispatch.FrameStats
}

// FrameRenderer is the part of renderer.Renderer the frame loop drives.
type FrameRenderer interface {
	BeginFrame() error
	EndFrame()
	Present()
	Resize(width, height int)
	SetViewport(x, y, width, height int)
}

// Drawer draws the frame's texture. *renderer.VertexArray satisfies it.
type Drawer interface {
	Draw(count uint32) error
}

// engine implements the Engine interface.
// Runs the frame loop on the thread that owns the window.
type engine struct {
	window     window.Window
	renderer   FrameRenderer
	dispatcher Dispatcher
	drawer     Drawer
	camera     camera.Camera

	profiler         *profiler.Profiler
	profilingEnabled bool

	frameCallback    func(frame uint64)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = run until the window closes

	frames      uint64
	emptyLogged bool
	quit        atomic.Bool
	quitOnce    sync.Once
}

// Engine is the interactive shell around the compute pass.
// Each frame it runs the dispatcher, draws the refreshed texture over the viewport and presents.
// Window input is wired at construction: Enter advances the mode, the left button drags,
// resizes flow through the camera into the renderer and dispatcher viewports.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Camera returns the camera that derives the viewport from window sizes.
	Camera() camera.Camera

	// Profiler returns the profiler fed by every completed frame.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SetFrameCallback registers a function called after every presented frame.
	//
	// Parameters:
	//   - callback: function receiving the number of frames run so far
	SetFrameCallback(callback func(frame uint64))

	// Frames returns the number of frames run so far.
	Frames() uint64

	// Run runs the frame loop on the calling thread. It blocks until the window closes, Quit is
	// called or the frame limit is reached.
	Run()

	// Quit stops the frame loop before its next frame and closes the window.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine for a window, a renderer, a dispatcher and the drawer of its texture.
// The camera is sized from the window immediately so the first frame uses a masked viewport.
//
// Parameters:
//   - w: the window to run in
//   - r: the renderer presenting to the window
//   - d: the compute pass run each frame
//   - drawer: draws the texture the compute pass refreshes
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(w window.Window, r FrameRenderer, d Dispatcher, drawer Drawer, options ...EngineBuilderOption) Engine {
	e := &engine{
		window:     w,
		renderer:   r,
		dispatcher: d,
		drawer:     drawer,
		camera:     camera.NewCamera(),
		profiler:   profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}

	w.SetResizeCallback(e.resize)
	w.SetKeyDownCallback(e.keyDown)
	w.SetPointerDownCallback(e.camera.BeginDrag)
	w.SetPointerUpCallback(func(x, y int32) {
		e.camera.Drag(x, y)
		e.camera.EndDrag()
	})
	w.SetMouseMoveCallback(e.camera.Drag)
	e.resize(w.Width(), w.Height())

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Frames() uint64 {
	return e.frames
}

func (e *engine) Run() {
	e.window.SetUpdateCallback(func() {
		if e.quit.Load() {
			e.close()
			return
		}
		e.frame()
		if e.maxFrames > 0 && e.frames >= e.maxFrames {
			e.Quit()
		}
	})
	e.window.ProcessMessages()
	e.close()
}

// Quit stops the frame loop. The window is closed on the loop's thread.
// Safe to call multiple times; subsequent calls are no-ops.
func (e *engine) Quit() {
	e.quit.Store(true)
}

// close closes the window once.
func (e *engine) close() {
	e.quitOnce.Do(func() {
		e.quit.Store(true)
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] close window: %v", err)
		}
	})
}

// frame runs one iteration: compute pass, draw, present, profiler tick.
// A skipped compute frame still presents the previous texture contents. While the viewport is
// empty the compute pass and the draw are paused and the frame only clears.
func (e *engine) frame() {
	start := time.Now()

	w, h := e.camera.Size()
	empty := w == 0 || h == 0
	if empty {
		if !e.emptyLogged {
			log.Printf("[Engine] window smaller than %d pixels, compute pass paused", camera.Granularity)
			e.emptyLogged = true
		}
	} else {
		e.emptyLogged = false
		e.computePass()
	}

	if err := e.renderer.BeginFrame(); err == nil {
		if !empty {
			if err := e.drawer.Draw(renderer.QuadVertexCount); err != nil {
				log.Printf("[Engine] draw: %v", err)
			}
		}
		e.renderer.EndFrame()
		e.renderer.Present()
	}

	e.frames++
	if e.frameCallback != nil {
		e.frameCallback(e.frames)
	}
	if e.profilingEnabled {
		e.profiler.Tick()
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// computePass runs the dispatcher and records the timing of completed frames.
func (e *engine) computePass() {
	if err := e.dispatcher.Frame(); err != nil {
		if errors.Is(err, dispatch.ErrFrameSkipped) {
			log.Printf("[Engine] %v", err)
		} else {
			log.Printf("[Engine] compute pass failed: %v", err)
		}
		return
	}
	stats := e.dispatcher.LastFrame()
	e.profiler.RecordDispatch(stats.Mode.String(), stats.Elapsed)
}

// resize reconfigures the surface and feeds the masked viewport to the renderer and dispatcher.
func (e *engine) resize(width, height int) {
	e.renderer.Resize(width, height)
	e.camera.Resize(width, height)
	w, h := e.camera.Size()
	x, y := e.camera.Offset()
	e.renderer.SetViewport(int(x), int(y), int(w), int(h))
	e.dispatcher.SetViewport(w, h)
}

func (e *engine) keyDown(keyCode uint32) {
	switch keyCode {
	case common.KeyEnter, common.KeyKPEnter:
		mode := e.dispatcher.AdvanceMode()
		log.Printf("[Engine] mode %s", mode)
	case common.KeyP:
		e.profilingEnabled = !e.profilingEnabled
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetFrameCallback registers the function called after every frame.
func (e *engine) SetFrameCallback(callback func(frame uint64)) {
	e.frameCallback = callback
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
