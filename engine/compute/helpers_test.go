package compute

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
)

type fakeGraphics struct {
	flushes int
	err     error
}

func (g *fakeGraphics) Flush() error {
	g.flushes++
	return g.err
}

type fakeBuffer struct {
	label string
	data  []byte
}

func (b *fakeBuffer) Label() string { return b.label }
func (b *fakeBuffer) Size() uint64  { return uint64(len(b.data)) }
func (b *fakeBuffer) Native() any   { return b.data }

type fakeTexture struct {
	label         string
	width, height uint32
	data          []byte
}

func (t *fakeTexture) Label() string  { return t.label }
func (t *fakeTexture) Width() uint32  { return t.width }
func (t *fakeTexture) Height() uint32 { return t.height }
func (t *fakeTexture) Native() any    { return t.data }

const testSource = `
@group(0) @binding(0) var<storage, read_write> dst: array<f32>;
@group(0) @binding(1) var<uniform> fill: f32;
@group(0) @binding(2) var<storage, read_write> rows: array<u32>;

@compute @workgroup_size(16, 16)
fn fillValue(@builtin(global_invocation_id) id: vec3<u32>, @builtin(num_workgroups) n: vec3<u32>) {
	let pitch = n.x * 16u;
	dst[id.y * pitch + id.x] = fill;
}

@compute @workgroup_size(16, 16)
fn countRows(@builtin(global_invocation_id) id: vec3<u32>) {
	if (id.x == 0u) {
		rows[id.y] = 1u;
	}
}

@compute @workgroup_size(1)
fn explode() {
	dst[0] = 1.0;
}
`

var testKernels = map[string]SoftwareKernel{
	"fillValue": func(row uint32, grid Grid, args map[uint32][]byte) {
		dst := safeish.SliceCast[[]float32](args[0])
		v := math.Float32frombits(binary.LittleEndian.Uint32(args[1]))
		for x := range grid.Pitch {
			dst[row*grid.Pitch+x] = v
		}
	},
	"countRows": func(row uint32, _ Grid, args map[uint32][]byte) {
		safeish.SliceCast[[]uint32](args[2])[row] = 1
	},
	"explode": func(uint32, Grid, map[uint32][]byte) {
		panic("boom")
	},
}

// newTestRegistry builds a software registry with one sharable and one private platform.
func newTestRegistry(t *testing.T, gfx GraphicsContext, opts ...RegistryOption) *Registry {
	t.Helper()
	base := []RegistryOption{
		WithBackend(BackendSoftware),
		WithWorkers(2),
		WithSoftwareKernels(testKernels),
		WithSoftwarePlatforms(
			SoftwarePlatform{Name: "private", Version: "0.1", Devices: []DeviceInfo{{Name: "cpu0", Vendor: "test", Profile: "EMBEDDED_PROFILE"}}},
			SoftwarePlatform{Name: "shared", Version: "1.0", Sharable: true, Devices: []DeviceInfo{
				{Name: "cpu1", Vendor: "test", Profile: "FULL_PROFILE"},
				{Name: "cpu2", Vendor: "test", Profile: "FULL_PROFILE"},
			}},
		),
	}
	r, err := NewRegistry(gfx, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// sharedPlatform returns the first sharable platform of r.
func sharedPlatform(t *testing.T, r *Registry) *Platform {
	t.Helper()
	platforms, err := r.DiscoverSharableContexts()
	require.NoError(t, err)
	return platforms[0]
}

func f32Bytes(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}
