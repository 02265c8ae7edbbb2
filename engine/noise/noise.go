// Package noise holds the procedural texture kernels: the WGSL source run by the WebGPU backend and
// matching CPU implementations for the software backend.
package noise

import (
	_ "embed"
)

// Source is the WGSL module that declares every texture kernel.
//
//go:embed kernels.wgsl
var Source string

// SourceName is the path reported for the embedded source in logs and build errors.
const SourceName = "kernels.wgsl"

// Kernel entry point names.
const (
	KernelColorful   = "genColorful"
	KernelStepNoise  = "genStepNoise"
	KernelNoiseBase  = "genNoiseBase"
	KernelNoiseMulti = "genNoiseMulti"
	KernelMultiNoise = "genMultiNoise"
)

// Binding indices in @group(0), shared by every kernel.
const (
	// BindingPixels is the RGBA f32 output buffer.
	BindingPixels uint32 = iota
	// BindingOctave is the i32 octave of genStepNoise.
	BindingOctave
	// BindingBase is the device-private f32 scratch buffer of the layered kernels.
	BindingBase
	// BindingOctaves is the i32 octave count of genNoiseMulti.
	BindingOctaves
	// BindingParams is the vec2<i32>{octaves, variant} of genMultiNoise.
	BindingParams
)

// WorkgroupSize is the workgroup edge length of every kernel. A row of the pixel buffer holds the
// index-space width rounded up to this value.
const WorkgroupSize = 16

// MaxOctaves is the upper bound the kernels clamp octave counts to.
const MaxOctaves = 8

// VariantQuintic selects the quintic blending curve in genMultiNoise. Any other value selects the
// cubic curve.
const VariantQuintic = 1

// FlatColor is the constant RGBA value genColorful writes to every pixel.
var FlatColor = [4]float32{0.25, 0.5, 0.75, 1.0}

// PixelSize is the byte size of one RGBA f32 pixel.
const PixelSize = 16

// BufferSize returns the byte size of a pixel buffer that can hold a width x height index space,
// including the workgroup padding the kernels write.
//
// Parameters:
//   - width: the index-space width
//   - height: the index-space height
//
// Returns:
//   - uint64: the buffer size in bytes
func BufferSize(width, height uint32) uint64 {
	return uint64(pad(width)) * uint64(pad(height)) * PixelSize
}

// ScratchSize returns the byte size of the f32 base buffer for a width x height index space.
func ScratchSize(width, height uint32) uint64 {
	return uint64(pad(width)) * uint64(pad(height)) * 4
}

func pad(v uint32) uint32 {
	return (v + WorkgroupSize - 1) / WorkgroupSize * WorkgroupSize
}
