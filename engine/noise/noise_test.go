package noise

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
)

type nopGraphics struct{}

func (nopGraphics) Flush() error { return nil }

func TestSource_EntryPoints(t *testing.T) {
	sh, err := shader.NewShader(SourceName, Source)
	require.NoError(t, err)

	want := map[string][]uint32{
		KernelColorful:   {BindingPixels},
		KernelStepNoise:  {BindingPixels, BindingOctave},
		KernelNoiseBase:  {BindingBase},
		KernelNoiseMulti: {BindingPixels, BindingBase, BindingOctaves},
		KernelMultiNoise: {BindingPixels, BindingParams},
	}
	eps := sh.EntryPointsOf(shader.ShaderTypeCompute)
	require.Len(t, eps, len(want))
	for _, ep := range eps {
		bindings, ok := want[ep.Name]
		require.True(t, ok, ep.Name)
		assert.ElementsMatch(t, bindings, ep.Bindings, ep.Name)
		assert.Equal(t, [3]uint32{WorkgroupSize, WorkgroupSize, 1}, ep.WorkgroupSize, ep.Name)
	}

	params, ok := sh.Binding(0, BindingParams)
	require.True(t, ok)
	assert.True(t, params.IsUniform())
	pixels, ok := sh.Binding(0, BindingPixels)
	require.True(t, ok)
	assert.True(t, pixels.IsStorage())
}

func TestSoftwareKernels_CoverSource(t *testing.T) {
	sh, err := shader.NewShader(SourceName, Source)
	require.NoError(t, err)

	kernels := SoftwareKernels()
	for _, ep := range sh.EntryPointsOf(shader.ShaderTypeCompute) {
		assert.Contains(t, kernels, ep.Name)
	}
	assert.Len(t, kernels, 5)
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(16*16*16), BufferSize(1, 1))
	assert.Equal(t, uint64(256*256*16), BufferSize(256, 256))
	assert.Equal(t, uint64(32*16*16), BufferSize(17, 3))
	assert.Equal(t, uint64(32*16*4), ScratchSize(17, 3))
}

func TestCurves(t *testing.T) {
	for _, curve := range []func(float32) float32{cubic, quintic} {
		assert.Equal(t, float32(0), curve(0))
		assert.Equal(t, float32(1), curve(1))
		assert.InDelta(t, 0.5, curve(0.5), 1e-6)
	}
	assert.Equal(t, hash(3, 7), hash(3, 7))
	assert.NotEqual(t, hash(3, 7), hash(7, 3))
}

func TestValueNoise_MatchesLatticeAtIntegers(t *testing.T) {
	for _, p := range [][2]uint32{{0, 0}, {5, 9}, {100, 3}} {
		v := valueNoise(float32(p[0]), float32(p[1]), 0)
		assert.Equal(t, lattice(p[0], p[1]), v)
	}
}

type softwareRig struct {
	platform *compute.Platform
	queue    *compute.Queue
	program  *compute.Program
}

// newSoftwareRig loads Source on a software registry.
func newSoftwareRig(t *testing.T) softwareRig {
	t.Helper()
	r, err := compute.NewRegistry(nopGraphics{},
		compute.WithBackend(compute.BackendSoftware),
		compute.WithSoftwareKernels(SoftwareKernels()),
		compute.WithWorkers(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	platforms, err := r.DiscoverSharableContexts()
	require.NoError(t, err)
	q, err := platforms[0].CreateQueue(nil)
	require.NoError(t, err)
	prog, err := platforms[0].LoadProgramSource(SourceName, Source)
	require.NoError(t, err)
	return softwareRig{platform: platforms[0], queue: q, program: prog}
}

func (r softwareRig) run(t *testing.T, name string, global [2]uint32, args ...compute.Binding) {
	t.Helper()
	k, err := r.program.ResolveKernel(name)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(args...))
	require.NoError(t, k.Run(r.queue, global))
}

func (r softwareRig) read(t *testing.T, m *compute.Memory) []float32 {
	t.Helper()
	out := make([]byte, m.Size())
	_, err := m.Read(r.queue, out)
	require.NoError(t, err)
	return safeish.SliceCast[[]float32](out)
}

func TestGenColorful_FillsEveryPixel(t *testing.T) {
	rig := newSoftwareRig(t)
	m, err := rig.platform.CreateBuffer(BufferSize(20, 20))
	require.NoError(t, err)

	rig.run(t, KernelColorful, [2]uint32{20, 20}, compute.MemoryArg(BindingPixels, m))

	values := rig.read(t, m)
	require.Len(t, values, 32*32*4)
	for i := 0; i < len(values); i += 4 {
		require.Equal(t, FlatColor[:], values[i:i+4], "pixel %d", i/4)
	}
}

func TestGenNoiseMulti_CornerMatchesBase(t *testing.T) {
	rig := newSoftwareRig(t)
	pixels, err := rig.platform.CreateBuffer(BufferSize(64, 64))
	require.NoError(t, err)
	scratch, err := rig.platform.CreateBuffer(ScratchSize(64, 64))
	require.NoError(t, err)

	rig.run(t, KernelNoiseBase, [2]uint32{64, 64}, compute.MemoryArg(BindingBase, scratch))
	rig.run(t, KernelNoiseMulti, [2]uint32{64, 64},
		compute.ValueArg(BindingOctaves, int32(6)),
		compute.MemoryArg(BindingBase, scratch),
		compute.MemoryArg(BindingPixels, pixels),
	)

	base := rig.read(t, scratch)
	assert.Equal(t, lattice(5, 2), base[2*64+5])

	// every octave's lattice span starts at the origin
	values := rig.read(t, pixels)
	assert.InDelta(t, base[0], values[0], 1e-6)
}

func TestGenMultiNoise_VariantChangesOutput(t *testing.T) {
	rig := newSoftwareRig(t)
	cubicOut, err := rig.platform.CreateBuffer(BufferSize(32, 32))
	require.NoError(t, err)
	quinticOut, err := rig.platform.CreateBuffer(BufferSize(32, 32))
	require.NoError(t, err)

	rig.run(t, KernelMultiNoise, [2]uint32{32, 32},
		compute.ValueArg(BindingParams, [2]int32{6, 0}), compute.MemoryArg(BindingPixels, cubicOut))
	rig.run(t, KernelMultiNoise, [2]uint32{32, 32},
		compute.ValueArg(BindingParams, [2]int32{6, VariantQuintic}), compute.MemoryArg(BindingPixels, quinticOut))

	assert.NotEqual(t, rig.read(t, cubicOut), rig.read(t, quinticOut))
}

func TestSoftwareKernels_OutputRange(t *testing.T) {
	const w, h = 40, 24
	grid := compute.Grid{Width: w, Height: h, Pitch: pad(w), Rows: pad(h)}
	pixels := make([]byte, BufferSize(w, h))
	args := map[uint32][]byte{
		BindingPixels:  pixels,
		BindingOctave:  int32Bytes(1),
		BindingBase:    make([]byte, ScratchSize(w, h)),
		BindingOctaves: int32Bytes(6),
		BindingParams:  int32Bytes(6, VariantQuintic),
	}
	kernels := SoftwareKernels()
	for row := range grid.Rows {
		kernels[KernelNoiseBase](row, grid, args)
	}

	for _, name := range []string{KernelStepNoise, KernelNoiseMulti, KernelMultiNoise} {
		for row := range grid.Rows {
			kernels[name](row, grid, args)
		}
		values := safeish.SliceCast[[]float32](pixels)
		for i := 0; i < len(values); i += 4 {
			require.GreaterOrEqual(t, values[i], float32(0), name)
			require.LessOrEqual(t, values[i], float32(1), name)
			require.Equal(t, values[i], values[i+2], name)
			require.Equal(t, float32(1), values[i+3], name)
		}
	}
}

func int32Bytes(vs ...int32) []byte {
	out := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		out = append(out, safeish.AsBytes(&v)...)
	}
	return out
}

func TestBaseAt_ClampsAndHandlesEmpty(t *testing.T) {
	assert.Zero(t, baseAt(nil, 3, 3, 16, 16))
	assert.Zero(t, baseAt([]float32{1}, 0, 0, 0, 1))
	assert.NotPanics(t, func() { layered(nil, 5, 5, 6, 16, 16) })

	base := []float32{0.1, 0.2, 0.3, 0.4}
	assert.Equal(t, float32(0.4), baseAt(base, 9, 9, 2, 2), "out-of-range coordinates clamp to the last texel")
	assert.Equal(t, float32(0.3), baseAt(base[:3], 9, 9, 2, 2), "a short buffer clamps to its end")
}
