// Package dispatch drives the per-frame compute pass: it hands a shared target to the compute
// queue, runs the kernels of the active mode over it, hands it back to graphics and refreshes the
// texture the renderer samples from it.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
)

// State is the position of the orchestrator within a frame.
type State int

const (
	// StateIdle means the target is owned by graphics.
	StateIdle State = iota
	// StateAcquired means the target is owned by the compute queue.
	StateAcquired
	// StateDispatched means the kernels of the mode completed.
	StateDispatched
	// StateReleased means the target was handed back to graphics.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquired:
		return "acquire"
	case StateDispatched:
		return "dispatch"
	case StateReleased:
		return "release"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrFrameSkipped matches every *FrameError. The target keeps its previous contents.
var ErrFrameSkipped = errors.New("dispatch: frame skipped")

// FrameError reports an ownership transfer that failed. The frame was skipped.
type FrameError struct {
	// Stage is the transition that failed, StateAcquired or StateReleased.
	Stage State
	// Mode is the mode of the skipped frame.
	Mode Mode
	// Err is the cause.
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("dispatch: mode %d: %s failed, frame skipped: %v", int(e.Mode), e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFrameSkipped.
func (e *FrameError) Is(target error) bool { return target == ErrFrameSkipped }

// Texture is the graphics texture a frame's target is uploaded into.
type Texture interface {
	// SetDataFromBuffer replaces the texture contents with a GPU-side copy of src.
	SetDataFromBuffer(format common.PixelFormat, width, height uint32, src common.GraphicsBuffer) error
}

// Target is an interop memory object together with its capacity in pixels.
type Target struct {
	Memory *compute.Memory
	Width  uint32
	Height uint32
}

// Targets holds the shared target of each TargetKind.
type Targets struct {
	Window Target
	Native Target
}

func (t Targets) of(kind TargetKind) Target {
	if kind == TargetNative {
		return t.Native
	}
	return t.Window
}

// FrameStats describes one completed frame.
type FrameStats struct {
	Mode    Mode
	Width   uint32
	Height  uint32
	Elapsed time.Duration
}

// Orchestrator runs the compute pass of every frame. It is not safe for use from more than one
// goroutine at a time.
type Orchestrator struct {
	queue   *compute.Queue
	program *compute.Program
	targets Targets
	scratch *compute.Memory
	texture Texture
	kernels map[string]*compute.Kernel

	logger    *slog.Logger
	frameHook func(FrameStats)

	mu       sync.Mutex
	mode     Mode
	state    State
	viewport [2]uint32
	last     FrameStats

	emptyLogged bool
}

// New resolves every kernel the mode table names from program and returns an orchestrator that
// reuses those handles for every frame.
//
// Parameters:
//   - queue: the compute queue targets are acquired on
//   - program: the built kernel program
//   - targets: the shared targets, both interop memory objects
//   - scratch: the device-private base-noise buffer used by ModeLayered
//   - texture: the texture refreshed from the target after every frame
//   - opts: orchestrator options
//
// Returns:
//   - *Orchestrator: the orchestrator, starting in StateIdle
//   - error: an error if an argument is missing or a kernel cannot be resolved
func New(queue *compute.Queue, program *compute.Program, targets Targets, scratch *compute.Memory, texture Texture, opts ...OrchestratorOption) (*Orchestrator, error) {
	switch {
	case queue == nil:
		return nil, errors.New("dispatch: nil queue")
	case program == nil:
		return nil, errors.New("dispatch: nil program")
	case targets.Window.Memory == nil || targets.Native.Memory == nil:
		return nil, errors.New("dispatch: missing target")
	case scratch == nil:
		return nil, errors.New("dispatch: nil scratch buffer")
	case texture == nil:
		return nil, errors.New("dispatch: nil texture")
	}

	o := &Orchestrator{
		queue:    queue,
		program:  program,
		targets:  targets,
		scratch:  scratch,
		texture:  texture,
		kernels:  make(map[string]*compute.Kernel),
		logger:   common.NopLogger(),
		viewport: [2]uint32{targets.Window.Width, targets.Window.Height},
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, name := range kernels() {
		k, err := program.ResolveKernel(name)
		if err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
		o.kernels[name] = k
	}
	return o, nil
}

// Mode returns the active mode.
func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// AdvanceMode switches to the next mode, wrapping after the last one.
//
// Returns:
//   - Mode: the new mode
func (o *Orchestrator) AdvanceMode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = o.mode.Next()
	o.logger.Info("mode changed", "mode", int(o.mode), "name", o.mode.Spec().Name)
	return o.mode
}

// State returns the current frame state. Between frames it is StateIdle.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetViewport sets the window size used as the index space of window-sized modes.
func (o *Orchestrator) SetViewport(width, height uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.viewport = [2]uint32{width, height}
}

// LastFrame returns the statistics of the last completed frame.
func (o *Orchestrator) LastFrame() FrameStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// indexSpace returns the index space of a mode. Window-sized spaces are clamped to the target's capacity.
func (o *Orchestrator) indexSpace(spec ModeSpec, target Target) (uint32, uint32) {
	if spec.Target == TargetNative {
		return target.Width, target.Height
	}
	return min(o.viewport[0], target.Width), min(o.viewport[1], target.Height)
}

// Frame runs one frame: acquire the mode's target, run its kernels, release the target and refresh
// the texture from it. It blocks until the kernels complete. A frame whose index space is empty
// touches nothing and returns nil; the pause is logged once until the index space is non-empty again.
//
// Returns:
//   - error: a *FrameError if the target could not be acquired or released, or the dispatch or
//     upload error
func (o *Orchestrator) Frame() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	mode := o.mode
	spec := mode.Spec()
	target := o.targets.of(spec.Target)
	width, height := o.indexSpace(spec, target)
	log := o.logger.With("mode", int(mode))

	o.state = StateIdle
	if width == 0 || height == 0 {
		if !o.emptyLogged {
			log.Info("empty index space, dispatch paused", "width", width, "height", height)
			o.emptyLogged = true
		}
		return nil
	}
	o.emptyLogged = false

	if err := target.Memory.Acquire(o.queue); err != nil {
		return o.skip(log, StateAcquired, mode, err)
	}
	o.state = StateAcquired

	dispatchErr := o.dispatch(spec, target.Memory, width, height)
	if dispatchErr == nil {
		o.state = StateDispatched
	}

	if err := target.Memory.Release(o.queue); err != nil {
		o.state = StateIdle
		return o.skip(log, StateReleased, mode, errors.Join(err, dispatchErr))
	}
	o.state = StateReleased
	if dispatchErr != nil {
		o.state = StateIdle
		log.Error("dispatch failed", "stage", StateDispatched.String(), "err", dispatchErr)
		return fmt.Errorf("dispatch: mode %d: %w", int(mode), dispatchErr)
	}

	if src := target.Memory.GraphicsBuffer(); src != nil {
		if err := o.texture.SetDataFromBuffer(common.PixelFormatRGBA32F, width, height, src); err != nil {
			o.state = StateIdle
			return fmt.Errorf("dispatch: mode %d: texture upload: %w", int(mode), err)
		}
	}
	o.state = StateIdle

	elapsed := time.Since(start)
	o.last = FrameStats{Mode: mode, Width: width, Height: height, Elapsed: elapsed}
	log.Info(fmt.Sprintf("mode %d : running time", int(mode)), "elapsed", elapsed)
	if o.frameHook != nil {
		o.frameHook(o.last)
	}
	return nil
}

// dispatch rebinds the arguments of the mode and runs its prelude and main kernel.
func (o *Orchestrator) dispatch(spec ModeSpec, pixels *compute.Memory, width, height uint32) error {
	global := [2]uint32{width, height}
	if spec.Prelude != "" {
		if need := noise.ScratchSize(width, height); o.scratch.Size() < need {
			return fmt.Errorf("scratch buffer holds %d bytes, %dx%d needs %d", o.scratch.Size(), width, height, need)
		}
		k := o.kernels[spec.Prelude]
		if err := k.SetArgs(spec.preludeArgs(o.scratch)...); err != nil {
			return err
		}
		if err := k.Run(o.queue, global); err != nil {
			return err
		}
	}
	k := o.kernels[spec.Kernel]
	if err := k.SetArgs(spec.kernelArgs(pixels, o.scratch)...); err != nil {
		return err
	}
	return k.Run(o.queue, global)
}

// skip logs a failed ownership transfer and returns it as a *FrameError.
func (o *Orchestrator) skip(log *slog.Logger, stage State, mode Mode, err error) error {
	o.state = StateIdle
	log.Warn("frame skipped", "stage", stage.String(), "err", err)
	return &FrameError{Stage: stage, Mode: mode, Err: err}
}
