package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-interop/engine/camera"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerInterval sets how often profiling statistics are logged.
//
// Parameters:
//   - interval: the logging interval
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfilerInterval(interval time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profiler.SetUpdateInterval(interval)
	}
}

// WithCamera sets the camera that derives viewports from window sizes, for example one with a
// smaller dimension clamp.
//
// Parameters:
//   - c: the camera to use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		if c != nil {
			e.camera = c
		}
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}

// WithMaxFrames stops the loop after a number of frames.
//
// Parameters:
//   - n: the frame count (0 = run until the window closes)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}
