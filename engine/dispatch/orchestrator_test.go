package dispatch

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/headless"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
)

type rig struct {
	gfx      *headless.Context
	platform *compute.Platform
	queue    *compute.Queue
	program  *compute.Program
	window   *headless.Buffer
	native   *headless.Buffer
	targets  Targets
	scratch  *compute.Memory
	texture  *headless.Texture
}

// newRig wires a software registry to headless targets: a window target of winW x winH pixels
// and a native target of dim x dim pixels.
func newRig(t *testing.T, dim, winW, winH uint32) *rig {
	t.Helper()
	return newRigWithKernels(t, noise.SoftwareKernels(), dim, winW, winH)
}

// newRigWithKernels is newRig with replacement CPU kernels.
func newRigWithKernels(t *testing.T, kernels map[string]compute.SoftwareKernel, dim, winW, winH uint32) *rig {
	t.Helper()
	gfx := headless.NewContext()
	registry, err := compute.NewRegistry(gfx,
		compute.WithBackend(compute.BackendSoftware),
		compute.WithSoftwareKernels(kernels),
		compute.WithWorkers(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	platforms, err := registry.DiscoverSharableContexts()
	require.NoError(t, err)
	p := platforms[0]
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	prog, err := p.LoadProgramSource(noise.SourceName, noise.Source)
	require.NoError(t, err)

	r := &rig{
		gfx:      gfx,
		platform: p,
		queue:    q,
		program:  prog,
		window:   gfx.NewBuffer("window pixels", noise.BufferSize(winW, winH)),
		native:   gfx.NewBuffer("native pixels", noise.BufferSize(dim, dim)),
		texture:  gfx.NewTexture("screen"),
	}
	windowMem, err := p.WrapGraphicsBuffer(r.window)
	require.NoError(t, err)
	nativeMem, err := p.WrapGraphicsBuffer(r.native)
	require.NoError(t, err)
	r.targets = Targets{
		Window: Target{Memory: windowMem, Width: winW, Height: winH},
		Native: Target{Memory: nativeMem, Width: dim, Height: dim},
	}
	r.scratch, err = p.CreateBuffer(noise.ScratchSize(winW, winH))
	require.NoError(t, err)
	return r
}

func (r *rig) orchestrator(t *testing.T, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	o, err := New(r.queue, r.program, r.targets, r.scratch, r.texture, opts...)
	require.NoError(t, err)
	return o
}

func TestFrame_FlatFillsWindowSizedTexture(t *testing.T) {
	r := newRig(t, 256, 128, 128)
	o := r.orchestrator(t, WithViewport(100, 60))

	require.NoError(t, o.Frame())

	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 1, r.gfx.Flushes())
	assert.Equal(t, compute.RoleGraphics, r.targets.Window.Memory.Role())

	// the upload reflects the window, not the 256x256 grid
	assert.Equal(t, uint32(100), r.texture.Width())
	assert.Equal(t, uint32(60), r.texture.Height())
	assert.Equal(t, common.PixelFormatRGBA32F, r.texture.Format())
	texels := safeish.SliceCast[[]float32](r.texture.Native().([]byte))
	require.Len(t, texels, 100*60*4)
	for i := 0; i < len(texels); i += 4 {
		require.Equal(t, noise.FlatColor[:], texels[i:i+4], "texel %d", i/4)
	}
	assert.Equal(t, make([]byte, len(r.native.Bytes())), r.native.Bytes())

	last := o.LastFrame()
	assert.Equal(t, ModeFlat, last.Mode)
	assert.Equal(t, uint32(100), last.Width)
	assert.Equal(t, uint32(60), last.Height)
}

func TestFrame_StepUsesNativeResolution(t *testing.T) {
	r := newRig(t, 32, 64, 64)
	o := r.orchestrator(t, WithMode(ModeStep), WithViewport(64, 48))

	require.NoError(t, o.Frame())
	assert.Equal(t, uint32(32), r.texture.Width())
	assert.Equal(t, uint32(32), r.texture.Height())
	assert.Equal(t, make([]byte, len(r.window.Bytes())), r.window.Bytes())
}

func TestFrame_ViewportClampedToTarget(t *testing.T) {
	r := newRig(t, 16, 64, 64)
	o := r.orchestrator(t)
	o.SetViewport(4000, 10)

	require.NoError(t, o.Frame())
	assert.Equal(t, uint32(64), r.texture.Width())
	assert.Equal(t, uint32(10), r.texture.Height())
}

func TestFrame_ReusesKernelHandles(t *testing.T) {
	r := newRig(t, 32, 64, 64)
	var frames []FrameStats
	o := r.orchestrator(t, WithFrameHook(func(s FrameStats) { frames = append(frames, s) }))
	require.Equal(t, 5, r.program.KernelCount())

	for range 2 * ModeCount {
		require.NoError(t, o.Frame())
		require.NoError(t, o.Frame())
		o.AdvanceMode()
	}

	assert.Equal(t, 5, r.program.KernelCount())
	assert.Equal(t, 4*ModeCount, r.texture.Uploads())
	require.Len(t, frames, 4*ModeCount)
	assert.Equal(t, ModeFlat, frames[0].Mode)
	assert.Equal(t, ModeStep, frames[2].Mode)
	assert.Equal(t, ModeFlat, o.Mode())
}

func TestFrame_AcquireFailureSkipsFrame(t *testing.T) {
	r := newRig(t, 32, 64, 64)
	o := r.orchestrator(t)

	other, err := r.platform.CreateQueue(nil)
	require.NoError(t, err)
	require.NoError(t, r.targets.Window.Memory.Acquire(other))

	err = o.Frame()
	require.ErrorIs(t, err, ErrFrameSkipped)
	assert.ErrorIs(t, err, compute.ErrAlreadyAcquired)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StateAcquired, fe.Stage)
	assert.Equal(t, ModeFlat, fe.Mode)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 0, r.texture.Uploads())

	// the next frame goes through once the target is back
	require.NoError(t, r.targets.Window.Memory.Release(other))
	require.NoError(t, o.Frame())
	assert.Equal(t, 1, r.texture.Uploads())
}

func TestFrame_DispatchFailureStillReleases(t *testing.T) {
	r := newRig(t, 32, 64, 64)
	small, err := r.platform.CreateBuffer(16)
	require.NoError(t, err)
	r.scratch = small
	o := r.orchestrator(t, WithMode(ModeLayered))

	err = o.Frame()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFrameSkipped))
	assert.Equal(t, compute.RoleGraphics, r.targets.Window.Memory.Role())
	assert.Nil(t, r.targets.Window.Memory.Owner())
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 0, r.texture.Uploads())
}

func TestFrame_ReleaseFailureSkipsFrame(t *testing.T) {
	// genColorful hands the target to another queue mid-dispatch, so the frame's release fails
	var (
		handOff sync.Once
		steal   func()
	)
	kernels := noise.SoftwareKernels()
	colorful := kernels[noise.KernelColorful]
	kernels[noise.KernelColorful] = func(row uint32, grid compute.Grid, args map[uint32][]byte) {
		handOff.Do(steal)
		colorful(row, grid, args)
	}
	r := newRigWithKernels(t, kernels, 32, 64, 64)
	other, err := r.platform.CreateQueue(nil)
	require.NoError(t, err)
	target := r.targets.Window.Memory
	steal = func() {
		_ = target.Release(r.queue)
		_ = target.Acquire(other)
	}
	o := r.orchestrator(t)

	err = o.Frame()
	require.ErrorIs(t, err, ErrFrameSkipped)
	assert.ErrorIs(t, err, compute.ErrWrongQueue)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StateReleased, fe.Stage)
	assert.Equal(t, ModeFlat, fe.Mode)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 0, r.texture.Uploads(), "a skipped frame keeps the previous texture")
	assert.Equal(t, FrameStats{}, o.LastFrame())

	require.NoError(t, target.Release(other))
	require.NoError(t, o.Frame())
	assert.Equal(t, 1, r.texture.Uploads())
}

func TestFrame_EmptyIndexSpaceLogsOnce(t *testing.T) {
	r := newRig(t, 16, 64, 64)
	var out bytes.Buffer
	o := r.orchestrator(t, WithViewport(0, 10), WithLogger(slog.New(slog.NewTextHandler(&out, nil))))

	for range 3 {
		require.NoError(t, o.Frame())
	}
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 0, r.texture.Uploads())
	assert.Equal(t, 0, r.gfx.Flushes())
	assert.Equal(t, compute.RoleGraphics, r.targets.Window.Memory.Role())
	assert.Equal(t, 1, strings.Count(out.String(), "empty index space"))

	o.SetViewport(32, 10)
	require.NoError(t, o.Frame())
	assert.Equal(t, 1, r.texture.Uploads())

	o.SetViewport(10, 0)
	require.NoError(t, o.Frame())
	assert.Equal(t, 2, strings.Count(out.String(), "empty index space"), "a new pause is reported again")
}

func TestFrame_LayeredWritesWindowTarget(t *testing.T) {
	r := newRig(t, 32, 64, 64)
	o := r.orchestrator(t, WithMode(ModeLayered))

	require.NoError(t, o.Frame())
	texels := safeish.SliceCast[[]float32](r.texture.Native().([]byte))
	require.Len(t, texels, 64*64*4)
	for i := 0; i < len(texels); i += 4 {
		require.Equal(t, float32(1), texels[i+3])
		require.GreaterOrEqual(t, texels[i], float32(0))
		require.LessOrEqual(t, texels[i], float32(1))
	}
}

func TestNew_MissingKernel(t *testing.T) {
	r := newRig(t, 16, 16, 16)
	const partial = `
@group(0) @binding(0) var<storage, read_write> pixels: array<vec4<f32>>;

@compute @workgroup_size(16, 16)
fn genColorful(@builtin(global_invocation_id) id: vec3<u32>) {
	pixels[id.x] = vec4<f32>(1.0);
}
`
	prog, err := r.platform.LoadProgramSource("partial.wgsl", partial)
	require.NoError(t, err)

	_, err = New(r.queue, prog, r.targets, r.scratch, r.texture)
	assert.ErrorIs(t, err, compute.ErrKernelNotFound)

	_, err = New(r.queue, r.program, Targets{}, r.scratch, r.texture)
	assert.Error(t, err)
}
