// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "github.com/cogentcore/webgpu/wgpu"

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero fields fall back to the owning texture's defaults.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
}

// GraphicsBuffer is a buffer owned by a graphics context. Native returns *wgpu.Buffer for WebGPU
// resources and []byte for host memory resources.
type GraphicsBuffer interface {
	Label() string
	Size() uint64
	Native() any
}

// GraphicsTexture is a 2D texture owned by a graphics context. Native returns *wgpu.TextureView for
// WebGPU resources and []byte for host memory resources.
type GraphicsTexture interface {
	Label() string
	Width() uint32
	Height() uint32
	Native() any
}
