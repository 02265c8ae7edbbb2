package shader

import "github.com/cogentcore/webgpu/wgpu"

// memLayout is the host-shareable size and alignment of a WGSL type.
type memLayout struct {
	size  uint64
	align uint64
}

// shape is a scalar or vector type reduced to its component scalar and count.
type shape struct {
	scalar string
	n      int
}

// structMember is one member of a struct declaration.
type structMember struct {
	name     string
	typeName string
	location int
	builtin  bool
}

// structDecl is a struct declaration found in the source.
type structDecl struct {
	name    string
	members []structMember
}

// fnDecl is a top-level fn declaration with its attribute run and body text.
type fnDecl struct {
	name       string
	attributes string
	body       string
}

// EntryPoint describes one shader entry point reflected from WGSL source.
type EntryPoint struct {
	// Name is the function name used as the pipeline entry point.
	Name string
	// Type is the pipeline stage the entry point belongs to.
	Type ShaderType
	// WorkgroupSize is the @workgroup_size of a compute entry point; [0, 0, 0] for other stages.
	WorkgroupSize [3]uint32
	// Bindings lists the @binding indices of group 0 that the entry point references,
	// directly or through the functions it calls, in ascending order.
	Bindings []uint32
}

// Binding describes one @group(N) @binding(M) resource declaration.
type Binding struct {
	// Group is the bind group index.
	Group uint32
	// Index is the binding index within the group.
	Index uint32
	// Name is the declared variable name.
	Name string
	// AddressSpace is the var<...> qualifier, e.g. "uniform" or "storage, read_write"; empty for handle types.
	AddressSpace string
	// TypeName is the declared WGSL type.
	TypeName string
	// Layout is the layout entry classified from the declaration, without stage visibility.
	Layout wgpu.BindGroupLayoutEntry
}

// IsUniform reports whether the binding is a uniform buffer.
func (b Binding) IsUniform() bool {
	return b.Layout.Buffer.Type == wgpu.BufferBindingTypeUniform
}

// IsStorage reports whether the binding is a read-only or read-write storage buffer.
func (b Binding) IsStorage() bool {
	return b.Layout.Buffer.Type == wgpu.BufferBindingTypeStorage ||
		b.Layout.Buffer.Type == wgpu.BufferBindingTypeReadOnlyStorage
}
