package dispatch

import "log/slog"

// OrchestratorOption configures an Orchestrator at construction.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger frame timing and skipped frames are reported to. A nil logger is ignored.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMode sets the initial mode.
func WithMode(m Mode) OrchestratorOption {
	return func(o *Orchestrator) {
		o.mode = m.normalize()
	}
}

// WithViewport sets the initial window size used as the index space of window-sized modes.
func WithViewport(width, height uint32) OrchestratorOption {
	return func(o *Orchestrator) {
		o.viewport = [2]uint32{width, height}
	}
}

// WithFrameHook registers a callback invoked with the statistics of every completed frame.
func WithFrameHook(hook func(FrameStats)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.frameHook = hook
	}
}
