package compute

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
)

func loadTestProgram(t *testing.T, p *Platform) *Program {
	t.Helper()
	prog, err := p.LoadProgramSource("test.wgsl", testSource)
	require.NoError(t, err)
	return prog
}

func TestLoadProgram_MissingFile(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)

	_, err := p.LoadProgram(filepath.Join(t.TempDir(), "missing.wgsl"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoadProgram_FromFile(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	path := filepath.Join(t.TempDir(), "kernels.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(testSource), 0o644))

	prog, err := p.LoadProgram(path)
	require.NoError(t, err)
	assert.Equal(t, path, prog.Path())
	assert.Equal(t, []string{"fillValue", "countRows", "explode"}, prog.EntryPoints())
}

func TestLoadProgram_MissingSoftwareKernel(t *testing.T) {
	r, err := NewRegistry(&fakeGraphics{}, WithBackend(BackendSoftware))
	require.NoError(t, err)
	defer r.Close()
	p := sharedPlatform(t, r)

	_, err = p.LoadProgramSource("test.wgsl", testSource)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "test.wgsl", be.Path)
	assert.Contains(t, be.Log, `"fillValue"`)
	assert.Contains(t, be.Log, `"explode"`)
	assert.Equal(t, "BUILD_PROGRAM_FAILURE", ErrorName(err))
}

func TestLoadProgram_ValidationRejectsBrokenSource(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{}, WithValidation(true))
	p := sharedPlatform(t, r)

	_, err := p.LoadProgramSource("broken.wgsl", "@compute @workgroup_size(1) fn main( {")
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.NotEmpty(t, be.Log)
}

func TestLoadProgram_NoComputeEntryPoints(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)

	_, err := p.LoadProgramSource("plain.wgsl", "fn helper() -> f32 { return 1.0; }")
	var be *BuildError
	assert.ErrorAs(t, err, &be)
}

func TestProgram_ResolveKernel(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	prog := loadTestProgram(t, p)

	_, err := prog.ResolveKernel("missing")
	assert.ErrorIs(t, err, ErrKernelNotFound)
	assert.Equal(t, 0, prog.KernelCount())

	k, err := prog.ResolveKernel("fillValue")
	require.NoError(t, err)
	assert.Equal(t, "fillValue", k.Name())
	assert.Equal(t, [3]uint32{16, 16, 1}, k.WorkgroupSize())
	assert.Same(t, prog, k.Program())
	assert.Equal(t, 1, prog.KernelCount())

	k.Release()
	assert.Equal(t, 0, prog.KernelCount())
}

func TestKernel_SetArgChecksDeclaration(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	k, err := loadTestProgram(t, p).ResolveKernel("fillValue")
	require.NoError(t, err)
	m, err := p.CreateBuffer(64)
	require.NoError(t, err)

	assert.ErrorIs(t, k.SetArg(MemoryArg(7, m)), ErrIncompatibleResource)
	assert.ErrorIs(t, k.SetArg(MemoryArg(1, m)), ErrIncompatibleResource)
	assert.ErrorIs(t, k.SetArg(MemoryArg(0, nil)), ErrIncompatibleResource)
	assert.NoError(t, k.SetArg(MemoryArg(0, m)))
	assert.NoError(t, k.SetArg(ValueArg(1, float32(0.5))))
}

func TestKernel_RunRequiresEveryBinding(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("fillValue")
	require.NoError(t, err)
	m, err := p.CreateBuffer(64)
	require.NoError(t, err)

	require.NoError(t, k.SetArg(MemoryArg(0, m)))
	assert.ErrorIs(t, k.Run(q, [2]uint32{4, 4}), ErrUnboundArgument)
}

func TestKernel_RunFillsPaddedGrid(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("fillValue")
	require.NoError(t, err)

	// 20x3 pads to a 32-wide pitch and 16 rows
	const size = 32 * 16 * 4
	m, err := p.CreateBuffer(size)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(MemoryArg(0, m), ValueArg(1, float32(0.5))))
	require.NoError(t, k.Run(q, [2]uint32{20, 3}))
	require.NoError(t, q.Finish())

	out := make([]byte, size)
	n, err := m.Read(q, out)
	require.NoError(t, err)
	assert.Equal(t, size, n)
	for i, v := range safeish.SliceCast[[]float32](out) {
		require.Equal(t, float32(0.5), v, "pixel %d", i)
	}
}

func TestKernel_RunCoversEveryRow(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("countRows")
	require.NoError(t, err)

	m, err := p.CreateBuffer(16 * 4)
	require.NoError(t, err)
	require.NoError(t, k.SetArg(MemoryArg(2, m)))
	require.NoError(t, k.Run(q, [2]uint32{1, 9}))

	out := make([]byte, 16*4)
	_, err = m.Read(q, out)
	require.NoError(t, err)
	for row, v := range safeish.SliceCast[[]uint32](out) {
		assert.Equal(t, uint32(1), v, "row %d", row)
	}
}

func TestKernel_RunInteropRequiresAcquire(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("fillValue")
	require.NoError(t, err)

	buf := &fakeBuffer{label: "pixels", data: make([]byte, 16*16*4)}
	m, err := p.WrapGraphicsBuffer(buf)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(MemoryArg(0, m), ValueArg(1, float32(1))))

	assert.ErrorIs(t, k.Run(q, [2]uint32{16, 16}), ErrNotAcquired)

	require.NoError(t, m.Acquire(q))
	require.NoError(t, k.Run(q, [2]uint32{16, 16}))
	require.NoError(t, m.Release(q))
	assert.Equal(t, f32Bytes(1), buf.data[:4])
	assert.Equal(t, f32Bytes(1), buf.data[len(buf.data)-4:])
}

func TestKernel_RunRecoversPanics(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("explode")
	require.NoError(t, err)
	m, err := p.CreateBuffer(4)
	require.NoError(t, err)
	require.NoError(t, k.SetArg(MemoryArg(0, m)))

	err = k.Run(q, [2]uint32{1, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestKernel_ReleasedKernelRejectsUse(t *testing.T) {
	r := newTestRegistry(t, &fakeGraphics{})
	p := sharedPlatform(t, r)
	q, err := p.CreateQueue(nil)
	require.NoError(t, err)
	k, err := loadTestProgram(t, p).ResolveKernel("explode")
	require.NoError(t, err)

	k.Release()
	k.Release()
	assert.ErrorIs(t, k.Run(q, [2]uint32{1, 1}), ErrReleased)
}
