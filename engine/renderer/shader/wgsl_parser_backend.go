package shader

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// scalarBytes is the size of every scalar the reflection understands.
const scalarBytes = 4

var scalarTypes = map[string]bool{"f32": true, "i32": true, "u32": true, "bool": true}

// vecSuffixes maps the shorthand vector suffix (vec4f) to its component scalar.
var vecSuffixes = map[byte]string{'f': "f32", 'i': "i32", 'u': "u32"}

var vertexFormats = map[shape]wgpu.VertexFormat{
	{"f32", 1}: wgpu.VertexFormatFloat32,
	{"f32", 2}: wgpu.VertexFormatFloat32x2,
	{"f32", 3}: wgpu.VertexFormatFloat32x3,
	{"f32", 4}: wgpu.VertexFormatFloat32x4,
	{"i32", 1}: wgpu.VertexFormatSint32,
	{"i32", 2}: wgpu.VertexFormatSint32x2,
	{"i32", 3}: wgpu.VertexFormatSint32x3,
	{"i32", 4}: wgpu.VertexFormatSint32x4,
	{"u32", 1}: wgpu.VertexFormatUint32,
	{"u32", 2}: wgpu.VertexFormatUint32x2,
	{"u32", 3}: wgpu.VertexFormatUint32x3,
	{"u32", 4}: wgpu.VertexFormatUint32x4,
}

// textureDims maps the dimension suffix of a texture type (texture_2d, texture_storage_2d_array)
// to its view dimension.
var textureDims = map[string]wgpu.TextureViewDimension{
	"1d":       wgpu.TextureViewDimension1D,
	"2d":       wgpu.TextureViewDimension2D,
	"2d_array": wgpu.TextureViewDimension2DArray,
	"3d":       wgpu.TextureViewDimension3D,
	"cube":     wgpu.TextureViewDimensionCube,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// texelFormats lists the storage texel formats a kernel may write.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
}

// splitTypeParams splits "texture_2d<f32>" into "texture_2d" and "f32". A type without
// parameters returns an empty parameter string.
func splitTypeParams(typeName string) (string, string) {
	base, rest, ok := strings.Cut(typeName, "<")
	if !ok {
		return strings.TrimSpace(typeName), ""
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ">")
	return strings.TrimSpace(base), strings.TrimSpace(rest)
}

// shapeOf reduces a scalar, vecN<T> or vecNx type to its component scalar and count.
//
// Parameters:
//   - typeName: the WGSL type name
//
// Returns:
//   - shape: the component scalar and count, 1 for scalars
//   - bool: false if the type is not a scalar or vector
func shapeOf(typeName string) (shape, bool) {
	base, param := splitTypeParams(typeName)
	if scalarTypes[base] && param == "" {
		return shape{base, 1}, true
	}
	if len(base) < 4 || !strings.HasPrefix(base, "vec") {
		return shape{}, false
	}
	n := int(base[3] - '0')
	if n < 2 || n > 4 {
		return shape{}, false
	}
	scalar := param
	switch len(base) {
	case 4:
	case 5:
		scalar = vecSuffixes[base[4]]
	default:
		return shape{}, false
	}
	if !scalarTypes[scalar] {
		return shape{}, false
	}
	return shape{scalar, n}, true
}

// layoutOf resolves the size and alignment of a type from the scalar and vector rules, atomics,
// arrays and the struct layouts already known. A runtime-sized array resolves to one element,
// the smallest binding that can hold it.
//
// Parameters:
//   - typeName: the WGSL type name
//   - structs: the struct layouts resolved so far
//
// Returns:
//   - memLayout: the resolved layout
//   - bool: false if the type is unknown or its array count is not a literal
func layoutOf(typeName string, structs map[string]memLayout) (memLayout, bool) {
	typeName = strings.TrimSpace(typeName)
	if l, ok := structs[typeName]; ok {
		return l, true
	}
	if s, ok := shapeOf(typeName); ok {
		size := uint64(s.n) * scalarBytes
		align := size
		if s.n == 3 {
			align = 4 * scalarBytes
		}
		return memLayout{size, align}, true
	}

	base, param := splitTypeParams(typeName)
	switch base {
	case "atomic":
		return layoutOf(param, structs)
	case "array":
		args := splitTopLevel(param)
		elem, ok := layoutOf(args[0], structs)
		if !ok {
			return memLayout{}, false
		}
		stride := common.AlignUp(elem.size, elem.align)
		if len(args) == 1 {
			return memLayout{stride, elem.align}, true
		}
		count, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			return memLayout{}, false
		}
		return memLayout{count * stride, elem.align}, true
	}
	return memLayout{}, false
}

// structLayouts resolves every struct whose members can be laid out, repeating until no further
// struct resolves so that declaration order does not matter. Builtin members take no space.
//
// Parameters:
//   - decls: the struct declarations of the source
//
// Returns:
//   - map[string]memLayout: layouts keyed by struct name
func structLayouts(decls []structDecl) map[string]memLayout {
	known := make(map[string]memLayout, len(decls))
	pending := slices.Clone(decls)
	for len(pending) > 0 {
		before := len(pending)
		pending = slices.DeleteFunc(pending, func(d structDecl) bool {
			var offset, align uint64 = 0, 1
			for _, m := range d.members {
				if m.builtin {
					continue
				}
				l, ok := layoutOf(m.typeName, known)
				if !ok {
					return false
				}
				offset = common.AlignUp(offset, l.align) + l.size
				align = max(align, l.align)
			}
			known[d.name] = memLayout{common.AlignUp(offset, align), align}
			return true
		})
		if len(pending) == before {
			break
		}
	}
	return known
}

// resourceLayout classifies a declaration into a layout entry without visibility. Buffers are told
// apart by address space, handle types by their type name.
func resourceLayout(b Binding) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: b.Index}

	space, access, _ := strings.Cut(b.AddressSpace, ",")
	switch strings.TrimSpace(space) {
	case "uniform":
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		return e
	case "storage":
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.TrimSpace(access) == "read_write" {
			e.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return e
	}

	base, param := splitTypeParams(b.TypeName)
	switch {
	case base == "sampler":
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case base == "sampler_comparison":
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(base, "texture_storage_"):
		e.StorageTexture.ViewDimension = textureDims[strings.TrimPrefix(base, "texture_storage_")]
		format, mode, _ := strings.Cut(param, ",")
		e.StorageTexture.Format = texelFormats[strings.TrimSpace(format)]
		e.StorageTexture.Access = storageAccess[strings.TrimSpace(mode)]
	case strings.HasPrefix(base, "texture_"):
		dim := strings.TrimPrefix(base, "texture_")
		if rest, ok := strings.CutPrefix(dim, "multisampled_"); ok {
			e.Texture.Multisampled = true
			dim = rest
		}
		e.Texture.ViewDimension = textureDims[dim]
		e.Texture.SampleType = sampleTypes[param]
	}
	return e
}

// vertexLayout builds a vertex buffer layout from a struct whose members all carry @location.
// Attributes are packed in declaration order.
//
// Parameters:
//   - d: the struct declaration
//
// Returns:
//   - wgpu.VertexBufferLayout: the packed layout
//   - bool: false if a member is a builtin, has no location or has no vertex format
func vertexLayout(d structDecl) (wgpu.VertexBufferLayout, bool) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for _, m := range d.members {
		if m.builtin || m.location < 0 {
			return wgpu.VertexBufferLayout{}, false
		}
		s, ok := shapeOf(m.typeName)
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		format, ok := vertexFormats[s]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(m.location),
		})
		layout.ArrayStride += uint64(s.n) * scalarBytes
	}
	return layout, len(layout.Attributes) > 0
}

// stripComments drops line comments and nested block comments, keeping line breaks.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		rest := source[i:]
		switch {
		case strings.HasPrefix(rest, "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(rest, "*/"):
			depth--
			i++
		case depth > 0:
		case strings.HasPrefix(rest, "//"):
			nl := strings.IndexByte(rest, '\n')
			if nl < 0 {
				return sb.String()
			}
			i += nl - 1
		default:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitTopLevel splits s at commas outside angle brackets, so "a: array<f32, 4>, b: u32"
// yields two members.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
