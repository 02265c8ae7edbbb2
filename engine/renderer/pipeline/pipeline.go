package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaxBindGroups is the number of bind groups a pipeline layout may declare (the WebGPU default limit).
const MaxBindGroups = 4

var (
	// ErrMissingVertexEntry is returned when the shader has no usable @vertex entry point.
	ErrMissingVertexEntry = errors.New("pipeline: shader has no vertex entry point")

	// ErrMissingFragmentEntry is returned when the shader has no usable @fragment entry point.
	ErrMissingFragmentEntry = errors.New("pipeline: shader has no fragment entry point")
)

// pipeline draws opaque triangle lists from one WGSL module carrying both stages.
type pipeline struct {
	pipelineKey   string
	shader        shader.Shader
	vertexEntry   string
	fragmentEntry string
	unfilterable  bool

	// set by the renderer on registration
	renderPipeline   *wgpu.RenderPipeline
	bindGroupLayouts []*wgpu.BindGroupLayout
}

// Pipeline is a render pipeline built from a single WGSL module. It draws opaque triangle lists
// without culling; once registered it holds the GPU pipeline and its bind group layouts.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the reflected module the pipeline is built from.
	//
	// Returns:
	//   - shader.Shader: the shader module
	Shader() shader.Shader

	// VertexEntryPoint returns the name of the @vertex function.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the name of the @fragment function.
	FragmentEntryPoint() string

	// Pipeline returns the underlying render pipeline, or nil before registration.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the render pipeline
	Pipeline() *wgpu.RenderPipeline

	// GroupCount returns one past the highest bind group index the shader declares.
	//
	// Returns:
	//   - int: the number of bind group layouts the pipeline layout needs
	GroupCount() int

	// BindGroupLayoutDescriptor builds the layout descriptor of a group from the shader's reflection,
	// with the vertex and fragment visibility merged. When the pipeline samples unfilterable textures,
	// float texture entries become unfilterable and filtering samplers become non-filtering.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayout returns the layout created for a group, or nil before registration.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// Unfilterable reports whether sampled textures are bound as unfilterable, e.g. 32-bit float formats.
	Unfilterable() bool

	// SetRenderPipeline stores the created GPU pipeline and the layouts it was created with.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline
	//   - layouts: the bind group layouts indexed by group
	SetRenderPipeline(p *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout)

	// Release releases the GPU pipeline and its bind group layouts.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline resolves the entry points of a pipeline. The first @vertex function is used, and
// the first @fragment function unless WithFragmentEntryPoint names another.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - sh: the reflected shader module carrying both stages
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
//   - error: ErrMissingVertexEntry or ErrMissingFragmentEntry if a stage cannot be resolved
func NewPipeline(pipelineKey string, sh shader.Shader, opts ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipeline{pipelineKey: pipelineKey, shader: sh}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.vertexEntry, err = resolveEntry(sh, shader.ShaderTypeVertex, p.vertexEntry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingVertexEntry, pipelineKey)
	}
	if p.fragmentEntry, err = resolveEntry(sh, shader.ShaderTypeFragment, p.fragmentEntry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingFragmentEntry, pipelineKey)
	}
	return p, nil
}

// resolveEntry returns the named entry point of a stage, or the stage's first entry point if name is empty.
func resolveEntry(sh shader.Shader, stage shader.ShaderType, name string) (string, error) {
	if name == "" {
		eps := sh.EntryPointsOf(stage)
		if len(eps) == 0 {
			return "", fmt.Errorf("no %s entry point", stage)
		}
		return eps[0].Name, nil
	}
	ep, ok := sh.EntryPoint(name)
	if !ok || ep.Type != stage {
		return "", fmt.Errorf("%q is not a %s entry point", name, stage)
	}
	return name, nil
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) VertexEntryPoint() string {
	return p.vertexEntry
}

func (p *pipeline) FragmentEntryPoint() string {
	return p.fragmentEntry
}

func (p *pipeline) Pipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) GroupCount() int {
	count := 0
	for g := 0; g < MaxBindGroups; g++ {
		if len(p.shader.Bindings(g)) > 0 {
			count = g + 1
		}
	}
	return count
}

func (p *pipeline) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	desc := p.shader.BindGroupLayoutDescriptor(group, p.vertexEntry, p.fragmentEntry)
	desc.Label = fmt.Sprintf("%s:group%d", p.pipelineKey, group)
	if !p.unfilterable {
		return desc
	}
	for i := range desc.Entries {
		e := &desc.Entries[i]
		if e.Texture.SampleType == wgpu.TextureSampleTypeFloat {
			e.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		}
		if e.Sampler.Type == wgpu.SamplerBindingTypeFiltering {
			e.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
		}
	}
	return desc
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) Unfilterable() bool {
	return p.unfilterable
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout) {
	p.renderPipeline = rp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
		}
	}
	p.bindGroupLayouts = nil
}
