package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadSource = `
struct VertexInput {
	@location(0) position: vec3<f32>,
}

struct VertexOutput {
	@builtin(position) clip: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var tex_sampler: sampler;

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
	var out: VertexOutput;
	out.clip = vec4<f32>(in.position, 1.0);
	out.uv = in.position.xy;
	return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
	return textureSample(tex, tex_sampler, in.uv);
}

@fragment
fn fs_red(in: VertexOutput) -> @location(0) vec4<f32> {
	return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func quadShader(t *testing.T) shader.Shader {
	t.Helper()
	sh, err := shader.NewShader("quad", quadSource)
	require.NoError(t, err)
	return sh
}

func TestNewPipeline_DefaultEntryPoints(t *testing.T) {
	p, err := NewPipeline("quad", quadShader(t))
	require.NoError(t, err)

	assert.Equal(t, "vs_main", p.VertexEntryPoint())
	assert.Equal(t, "fs_main", p.FragmentEntryPoint())
	assert.Equal(t, 1, p.GroupCount())
	assert.False(t, p.Unfilterable())
	assert.Nil(t, p.Pipeline())
	assert.Nil(t, p.BindGroupLayout(0))
}

func TestNewPipeline_NamedEntryPoints(t *testing.T) {
	p, err := NewPipeline("red", quadShader(t), WithFragmentEntryPoint("fs_red"))
	require.NoError(t, err)
	assert.Equal(t, "fs_red", p.FragmentEntryPoint())

	_, err = NewPipeline("bad", quadShader(t), WithFragmentEntryPoint("vs_main"))
	assert.ErrorIs(t, err, ErrMissingFragmentEntry)
}

func TestNewPipeline_RequiresBothStages(t *testing.T) {
	sh, err := shader.NewShader("compute", `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) { data[id.x] = 1.0; }
`)
	require.NoError(t, err)

	_, err = NewPipeline("compute", sh)
	assert.ErrorIs(t, err, ErrMissingVertexEntry)
}

func TestBindGroupLayoutDescriptor_Filterable(t *testing.T) {
	p, err := NewPipeline("quad", quadShader(t))
	require.NoError(t, err)

	desc := p.BindGroupLayoutDescriptor(0)
	assert.Equal(t, "quad:group0", desc.Label)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, desc.Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, desc.Entries[1].Sampler.Type)
	assert.Equal(t, wgpu.ShaderStageFragment, desc.Entries[0].Visibility)
}

func TestBindGroupLayoutDescriptor_Unfilterable(t *testing.T) {
	p, err := NewPipeline("quad", quadShader(t), WithUnfilterable(true))
	require.NoError(t, err)

	desc := p.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, desc.Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeNonFiltering, desc.Entries[1].Sampler.Type)
	assert.True(t, p.Unfilterable())
}
