package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotPrepared is returned by Draw before a successful Prepare.
var ErrNotPrepared = errors.New("renderer: vertex array not prepared")

// VertexArray draws a vertex buffer with one sampled texture through the quad pipeline.
type VertexArray struct {
	r     *renderer
	label string

	pipeline pipeline.Pipeline
	provider bind_group_provider.BindGroupProvider

	vertexBuffer *Buffer
	texture      *Texture
	uniform      string

	textureBinding uint32
	samplerBinding uint32
	generation     uint64
}

// Prepare binds a vertex buffer and a texture. The texture is bound to the sampled texture
// declared as uniform in the quad shader and its sampler to uniform+"_sampler".
//
// Parameters:
//   - vertexBuffer: the vertex positions, three float32 per vertex
//   - texture: the texture to sample
//   - uniform: the shader variable name of the texture
//
// Returns:
//   - error: an error if the names cannot be resolved or the pipeline cannot be created
func (v *VertexArray) Prepare(vertexBuffer *Buffer, texture *Texture, uniform string) error {
	if vertexBuffer == nil || texture == nil {
		return fmt.Errorf("vertex array %q: vertex buffer and texture are required", v.label)
	}
	sh, err := QuadShader()
	if err != nil {
		return err
	}
	texBinding, sampBinding, err := resolveTextureBindings(sh, uniform)
	if err != nil {
		return fmt.Errorf("vertex array %q: %w", v.label, err)
	}

	v.vertexBuffer = vertexBuffer
	v.texture = texture
	v.uniform = uniform
	v.textureBinding = texBinding
	v.samplerBinding = sampBinding
	return v.selectPipeline(sh)
}

// selectPipeline picks the quad pipeline variant matching the texture's sample type.
func (v *VertexArray) selectPipeline(sh shader.Shader) error {
	unfilterable := v.texture.Format().IsFloat()
	key := quadPipelineKey(unfilterable)

	p := v.r.Pipeline(key)
	if p == nil {
		created, err := pipeline.NewPipeline(key, sh, pipeline.WithUnfilterable(unfilterable))
		if err != nil {
			return err
		}
		if err := v.r.RegisterPipelines(created); err != nil {
			return fmt.Errorf("vertex array %q: register %s: %w", v.label, key, err)
		}
		p = v.r.Pipeline(key)
	}

	if v.provider != nil {
		v.provider.Release()
	}
	v.pipeline = p
	v.provider = bind_group_provider.NewBindGroupProvider(v.label,
		bind_group_provider.WithBindGroupLayout(p.BindGroupLayout(0)),
	)
	v.generation = 0
	return nil
}

func quadPipelineKey(unfilterable bool) string {
	if unfilterable {
		return QuadShaderKey + ":unfilterable"
	}
	return QuadShaderKey
}

// resolveTextureBindings finds the group 0 texture named uniform and its uniform+"_sampler".
func resolveTextureBindings(sh shader.Shader, uniform string) (uint32, uint32, error) {
	var tex, samp *shader.Binding
	for _, b := range sh.Bindings(0) {
		switch {
		case b.Name == uniform && strings.HasPrefix(b.TypeName, "texture_"):
			tex = &b
		case b.Name == uniform+"_sampler" && b.Layout.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			samp = &b
		}
	}
	if tex == nil {
		return 0, 0, fmt.Errorf("no texture uniform %q", uniform)
	}
	if samp == nil {
		return 0, 0, fmt.Errorf("no sampler %q", uniform+"_sampler")
	}
	return tex.Index, samp.Index, nil
}

// Draw draws count vertices as a triangle list inside the current frame. Nothing is drawn while
// the texture has no contents.
//
// Parameters:
//   - count: the number of vertices to draw
//
// Returns:
//   - error: ErrNotPrepared, ErrNoFrame, or a pipeline or bind group error
func (v *VertexArray) Draw(count uint32) error {
	if v.pipeline == nil {
		return ErrNotPrepared
	}
	if v.texture.View() == nil {
		return nil
	}
	if v.texture.Format().IsFloat() != v.pipeline.Unfilterable() {
		sh, err := QuadShader()
		if err != nil {
			return err
		}
		if err := v.selectPipeline(sh); err != nil {
			return err
		}
	}
	if v.generation != v.texture.Generation() {
		v.provider.SetTextureView(int(v.textureBinding), v.texture.View())
		v.provider.SetSampler(int(v.samplerBinding), v.texture.Sampler())
		v.generation = v.texture.Generation()
	}
	if v.provider.Stale() {
		if err := v.r.backend.BuildBindGroup(v.provider); err != nil {
			return fmt.Errorf("vertex array %q: %w", v.label, err)
		}
	}
	return v.r.backend.Draw(v.pipeline, v.vertexBuffer.Handle(), []bind_group_provider.BindGroupProvider{v.provider}, count)
}

// Release releases the bind group. The vertex buffer, the texture and the shared pipeline are
// owned elsewhere.
func (v *VertexArray) Release() {
	if v.provider != nil {
		v.provider.Release()
		v.provider = nil
	}
	v.pipeline = nil
}
