package noise

import (
	"math"

	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"honnef.co/go/safeish"
)

// SoftwareKernels returns CPU implementations of every kernel in Source, keyed by entry point name,
// for use with compute.WithSoftwareKernels.
//
// Returns:
//   - map[string]compute.SoftwareKernel: the kernel implementations
func SoftwareKernels() map[string]compute.SoftwareKernel {
	return map[string]compute.SoftwareKernel{
		KernelColorful:   genColorful,
		KernelStepNoise:  genStepNoise,
		KernelNoiseBase:  genNoiseBase,
		KernelNoiseMulti: genNoiseMulti,
		KernelMultiNoise: genMultiNoise,
	}
}

// pixelRow returns the RGBA components of one row of the output buffer, cut short where the buffer
// ends.
func pixelRow(args map[uint32][]byte, grid compute.Grid, row uint32) []float32 {
	pixels := safeish.SliceCast[[]float32](args[BindingPixels])
	start := uint64(row) * uint64(grid.Pitch) * 4
	end := min(start+uint64(grid.Pitch)*4, uint64(len(pixels)))
	if start >= end {
		return nil
	}
	return pixels[start:end]
}

func uniformInts(args map[uint32][]byte, index uint32) []int32 {
	return safeish.SliceCast[[]int32](args[index])
}

func putGray(px []float32, v float32) {
	px[0], px[1], px[2], px[3] = v, v, v, 1
}

func genColorful(row uint32, grid compute.Grid, args map[uint32][]byte) {
	out := pixelRow(args, grid, row)
	for x := 0; x+4 <= len(out); x += 4 {
		copy(out[x:x+4], FlatColor[:])
	}
}

func genStepNoise(row uint32, grid compute.Grid, args map[uint32][]byte) {
	out := pixelRow(args, grid, row)
	octave := min(max(uniformInts(args, BindingOctave)[0], 0), MaxOctaves)
	freq := float32(math.Exp2(float64(octave))) / cell
	for x := 0; x+4 <= len(out); x += 4 {
		putGray(out[x:x+4], valueNoise(float32(x/4)*freq, float32(row)*freq, 0))
	}
}

func genNoiseBase(row uint32, grid compute.Grid, args map[uint32][]byte) {
	base := safeish.SliceCast[[]float32](args[BindingBase])
	start := uint64(row) * uint64(grid.Pitch)
	for x := range grid.Pitch {
		i := start + uint64(x)
		if i >= uint64(len(base)) {
			return
		}
		base[i] = lattice(x, row)
	}
}

func genNoiseMulti(row uint32, grid compute.Grid, args map[uint32][]byte) {
	out := pixelRow(args, grid, row)
	base := safeish.SliceCast[[]float32](args[BindingBase])
	octaves := uniformInts(args, BindingOctaves)[0]
	for x := 0; x+4 <= len(out); x += 4 {
		putGray(out[x:x+4], layered(base, uint32(x/4), row, octaves, grid.Pitch, grid.Rows))
	}
}

func genMultiNoise(row uint32, grid compute.Grid, args map[uint32][]byte) {
	out := pixelRow(args, grid, row)
	params := uniformInts(args, BindingParams)
	for x := 0; x+4 <= len(out); x += 4 {
		putGray(out[x:x+4], fbm(float32(x/4), float32(row), params[0], params[1]))
	}
}
