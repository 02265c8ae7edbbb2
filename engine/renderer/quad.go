package renderer

import (
	_ "embed"
	"slices"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"honnef.co/go/safeish"
)

// QuadShaderKey is the shader key and pipeline key prefix of the textured quad.
const QuadShaderKey = "quad"

// QuadVertexCount is the number of vertices of the two-triangle quad.
const QuadVertexCount = 6

// quadSource samples one texture over a screen-aligned quad.
//
//go:embed quad.wgsl
var quadSource string

// QuadVertices holds the positions (x, y, z) of the two triangles covering clip space.
var QuadVertices = [QuadVertexCount * 3]float32{
	-1, -1, 0, 1, -1, 0, -1, 1, 0,
	1, 1, 0, -1, 1, 0, 1, -1, 0,
}

// QuadVertexBytes returns QuadVertices as a vertex buffer upload.
func QuadVertexBytes() []byte {
	v := QuadVertices
	return slices.Clone(safeish.AsBytes(&v))
}

// QuadShader reflects the embedded quad shader.
//
// Returns:
//   - shader.Shader: the reflected module with vs_main and fs_main
//   - error: a reflection error
func QuadShader() (shader.Shader, error) {
	return shader.NewShader(QuadShaderKey, quadSource)
}
