package bind_group_provider

import (
	"maps"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

type bindGroupProvider struct {
	label   string
	layout  *wgpu.BindGroupLayout
	group   *wgpu.BindGroup
	entries map[uint32]wgpu.BindGroupEntry
	stale   bool
}

// BindGroupProvider holds the texture view and sampler a textured draw binds, and the bind group
// built from them. Resources are borrowed: only the bind group is released. Replacing a resource
// with a different one marks the provider stale so the next draw rebuilds the group.
type BindGroupProvider interface {
	// Label returns the debug label.
	Label() string

	// BindGroup returns the last built bind group, or nil.
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the pipeline layout the group is built against.
	BindGroupLayout() *wgpu.BindGroupLayout

	// Entries returns one entry per bound resource, sorted by binding index.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: the entries for a BindGroupDescriptor
	Entries() []wgpu.BindGroupEntry

	// Stale reports whether the bind group must be (re)built before the next draw.
	Stale() bool

	// SetBindGroup stores a newly built bind group, releasing the previous one.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetTextureView binds a texture view.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler binds a sampler.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s *wgpu.Sampler)

	// Release releases the bind group. Borrowed resources are left untouched.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider, stale until its bind group is built.
//
// Parameters:
//   - label: the debug label
//   - options: options applied in order
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{label: label, entries: make(map[uint32]wgpu.BindGroupEntry), stale: true}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string                          { return p.label }
func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup             { return p.group }
func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout { return p.layout }
func (p *bindGroupProvider) Stale() bool                            { return p.stale || p.group == nil }

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	out := make([]wgpu.BindGroupEntry, 0, len(p.entries))
	for _, binding := range slices.Sorted(maps.Keys(p.entries)) {
		out = append(out, p.entries[binding])
	}
	return out
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.group != nil && p.group != bg {
		p.group.Release()
	}
	p.group = bg
	p.stale = false
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	old, ok := p.entries[uint32(binding)]
	if !ok || old.TextureView != tv {
		p.stale = true
	}
	p.entries[uint32(binding)] = wgpu.BindGroupEntry{Binding: uint32(binding), TextureView: tv}
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	old, ok := p.entries[uint32(binding)]
	if !ok || old.Sampler != s {
		p.stale = true
	}
	p.entries[uint32(binding)] = wgpu.BindGroupEntry{Binding: uint32(binding), Sampler: s}
}

func (p *bindGroupProvider) Release() {
	if p.group != nil {
		p.group.Release()
		p.group = nil
	}
	p.stale = true
}
