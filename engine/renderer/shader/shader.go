package shader

import (
	"errors"
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage of a shader entry point.
type ShaderType int

const (
	// ShaderTypeCompute indicates a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Visibility returns the wgpu shader stage flag matching the type.
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageNone
	}
}

// ErrNoEntryPoint is returned when a WGSL source declares no @compute, @vertex or @fragment function.
var ErrNoEntryPoint = errors.New("shader: source declares no entry point")

// shader is the implementation of the Shader interface.
// It holds the reflected module metadata; the source is never modified after parsing.
type shader struct {
	key           string
	source        string
	entryPoints   []EntryPoint
	bindings      map[int][]Binding
	vertexLayouts []wgpu.VertexBufferLayout
	module        *wgpu.ShaderModuleDescriptor
}

// Shader defines the interface for a loaded and reflected WGSL module. A single module may carry
// any number of entry points across stages; each entry point reports its own workgroup size and
// the group 0 bindings it references.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// EntryPoints returns every entry point in declaration order.
	//
	// Returns:
	//   - []EntryPoint: all reflected entry points
	EntryPoints() []EntryPoint

	// EntryPointsOf returns the entry points of a single stage in declaration order.
	//
	// Parameters:
	//   - shaderType: the stage to filter by
	//
	// Returns:
	//   - []EntryPoint: the matching entry points, empty if none
	EntryPointsOf(shaderType ShaderType) []EntryPoint

	// EntryPoint looks up an entry point by function name.
	//
	// Parameters:
	//   - name: the function name
	//
	// Returns:
	//   - EntryPoint: the entry point, zero value if not found
	//   - bool: true if the entry point exists
	EntryPoint(name string) (EntryPoint, bool)

	// Bindings returns the resource declarations of a bind group sorted by binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - []Binding: the declarations, nil if the group is not declared
	Bindings(group int) []Binding

	// Binding looks up a single resource declaration.
	//
	// Parameters:
	//   - group: the bind group index
	//   - index: the binding index within the group
	//
	// Returns:
	//   - Binding: the declaration, zero value if not found
	//   - bool: true if the declaration exists
	Binding(group int, index uint32) (Binding, bool)

	// BindGroupLayoutDescriptor builds a layout descriptor for a group, restricted to the bindings
	// in use by the given entry points, with the stage visibility of those entry points applied.
	// Passing no entry point names includes every binding of the group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - entryPoints: entry point names whose bindings and stages should be included
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor labelled with the shader key
	BindGroupLayoutDescriptor(group int, entryPoints ...string) wgpu.BindGroupLayoutDescriptor

	// VertexLayouts retrieves the vertex buffer layouts of every pure vertex input struct.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts in declaration order
	VertexLayouts() []wgpu.VertexBufferLayout
}

var _ Shader = &shader{}

// NewShader reflects WGSL source into a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used as the module label
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the reflected shader
//   - error: ErrNoEntryPoint if the source declares no entry point
func NewShader(key, source string) (Shader, error) {
	s := &shader{
		key:    key,
		source: source,
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}
	cleaned := stripComments(source)
	s.bindings = parseBindings(cleaned)
	s.entryPoints = parseEntryPoints(cleaned, s.bindings[0])
	if len(s.entryPoints) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, key)
	}
	if len(s.EntryPointsOf(ShaderTypeVertex)) > 0 {
		s.vertexLayouts = parseVertexLayouts(cleaned)
	}
	return s, nil
}

// NewShaderFromPath reads a WGSL file and reflects it into a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - path: the file path to read WGSL source from
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if the file cannot be read or declares no entry point
func NewShaderFromPath(key, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return NewShader(key, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) EntryPoints() []EntryPoint {
	return s.entryPoints
}

func (s *shader) EntryPointsOf(shaderType ShaderType) []EntryPoint {
	var out []EntryPoint
	for _, ep := range s.entryPoints {
		if ep.Type == shaderType {
			out = append(out, ep)
		}
	}
	return out
}

func (s *shader) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range s.entryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

func (s *shader) Bindings(group int) []Binding {
	return s.bindings[group]
}

func (s *shader) Binding(group int, index uint32) (Binding, bool) {
	for _, b := range s.bindings[group] {
		if b.Index == index {
			return b, true
		}
	}
	return Binding{}, false
}

func (s *shader) BindGroupLayoutDescriptor(group int, entryPoints ...string) wgpu.BindGroupLayoutDescriptor {
	visibility := make(map[uint32]wgpu.ShaderStage)
	if len(entryPoints) == 0 {
		var all wgpu.ShaderStage
		for _, ep := range s.entryPoints {
			all |= ep.Type.Visibility()
		}
		for _, b := range s.bindings[group] {
			visibility[b.Index] = all
		}
	}
	for _, name := range entryPoints {
		ep, ok := s.EntryPoint(name)
		if !ok {
			continue
		}
		if group != 0 {
			// only group 0 usage is tracked per entry point
			for _, b := range s.bindings[group] {
				visibility[b.Index] |= ep.Type.Visibility()
			}
			continue
		}
		for _, idx := range ep.Bindings {
			visibility[idx] |= ep.Type.Visibility()
		}
	}

	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(visibility))
	for _, b := range s.bindings[group] {
		vis, ok := visibility[b.Index]
		if !ok {
			continue
		}
		entry := b.Layout
		entry.Visibility = vis
		entries = append(entries, entry)
	}
	return wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("%s:group%d", s.key, group),
		Entries: entries,
	}
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}
