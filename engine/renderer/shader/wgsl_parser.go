package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	structRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// attrRegex matches one attribute with its optional argument list, e.g. @location(0) or @vertex.
	attrRegex = regexp.MustCompile(`@(\w+)(?:\(([^)]*)\))?`)

	// fnRegex captures the attribute run before a function and its name.
	fnRegex = regexp.MustCompile(`((?:@\w+(?:\([^)]*\))?\s*)*)\bfn\s+(\w+)\s*\(`)

	callRegex  = regexp.MustCompile(`\b(\w+)\s*\(`)
	identRegex = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)

	// resourceRegex captures group, binding, address space, name and type of
	// @group(0) @binding(1) var<uniform> params: Params;
	resourceRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

var stageByAttr = map[string]ShaderType{
	"compute":  ShaderTypeCompute,
	"vertex":   ShaderTypeVertex,
	"fragment": ShaderTypeFragment,
}

// parseStructs finds every struct declaration and its members.
func parseStructs(source string) []structDecl {
	var decls []structDecl
	for _, m := range structRegex.FindAllStringSubmatch(source, -1) {
		d := structDecl{name: m[1]}
		for _, raw := range splitTopLevel(m[2]) {
			if member, ok := parseMember(raw); ok {
				d.members = append(d.members, member)
			}
		}
		decls = append(decls, d)
	}
	return decls
}

// parseMember reads "@location(1) uv: vec2f" into a struct member. Location is -1 when absent.
func parseMember(raw string) (structMember, bool) {
	m := structMember{location: -1}
	for _, attr := range attrRegex.FindAllStringSubmatch(raw, -1) {
		switch attr[1] {
		case "builtin":
			m.builtin = true
		case "location":
			if loc, err := strconv.Atoi(strings.TrimSpace(attr[2])); err == nil {
				m.location = loc
			}
		}
	}
	name, typeName, ok := strings.Cut(attrRegex.ReplaceAllString(raw, ""), ":")
	m.name, m.typeName = strings.TrimSpace(name), strings.TrimSpace(typeName)
	return m, ok && m.name != "" && m.typeName != ""
}

// parseVertexLayouts returns a vertex buffer layout for every struct whose members are all
// located vertex attributes, in declaration order.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []wgpu.VertexBufferLayout: one layout per vertex input struct
func parseVertexLayouts(source string) []wgpu.VertexBufferLayout {
	var out []wgpu.VertexBufferLayout
	for _, d := range parseStructs(source) {
		if layout, ok := vertexLayout(d); ok {
			out = append(out, layout)
		}
	}
	return out
}

// parseBindings extracts every resource declaration grouped by bind group and sorted by binding
// index. Buffer bindings carry the MinBindingSize of their type when it resolves; visibility is
// left for the layout descriptor to fill in.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - map[int][]Binding: declarations keyed by group index
func parseBindings(source string) map[int][]Binding {
	structs := structLayouts(parseStructs(source))
	groups := make(map[int][]Binding)
	for _, m := range resourceRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		index, _ := strconv.ParseUint(m[2], 10, 32)
		b := Binding{
			Group:        uint32(group),
			Index:        uint32(index),
			AddressSpace: strings.TrimSpace(m[3]),
			Name:         m[4],
			TypeName:     strings.TrimSpace(m[5]),
		}
		b.Layout = resourceLayout(b)
		if b.Layout.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := layoutOf(b.TypeName, structs); ok {
				b.Layout.Buffer.MinBindingSize = l.size
			}
		}
		groups[group] = append(groups[group], b)
	}
	for _, bindings := range groups {
		slices.SortFunc(bindings, func(a, b Binding) int { return int(a.Index) - int(b.Index) })
	}
	return groups
}

// parseFunctions finds every fn declaration with its attribute run and brace-delimited body.
func parseFunctions(source string) []fnDecl {
	var fns []fnDecl
	for _, loc := range fnRegex.FindAllStringSubmatchIndex(source, -1) {
		open := strings.IndexByte(source[loc[1]:], '{')
		if open < 0 {
			continue
		}
		start := loc[1] + open
		fns = append(fns, fnDecl{
			name:       source[loc[4]:loc[5]],
			attributes: source[loc[2]:loc[3]],
			body:       source[start:closingBrace(source, start)],
		})
	}
	return fns
}

// closingBrace returns the index just past the brace closing the one at start, or len(source)
// when the braces never balance.
func closingBrace(source string, start int) int {
	depth := 0
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return i + 1
			}
		}
	}
	return len(source)
}

// parseEntryPoints reflects every @compute, @vertex and @fragment function. Compute entry
// points carry their own @workgroup_size, and every entry point lists the group 0 bindings
// it reaches through its body and the functions it calls.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - group0: the group 0 binding declarations
//
// Returns:
//   - []EntryPoint: the entry points in declaration order
func parseEntryPoints(source string, group0 []Binding) []EntryPoint {
	fns := parseFunctions(source)
	bodies := make(map[string]string, len(fns))
	for _, fn := range fns {
		bodies[fn.name] = fn.body
	}

	var eps []EntryPoint
	for _, fn := range fns {
		stage, ok := stageOf(fn.attributes)
		if !ok {
			continue
		}
		ep := EntryPoint{
			Name:     fn.name,
			Type:     stage,
			Bindings: referencedBindings(fn.name, bodies, group0),
		}
		if stage == ShaderTypeCompute {
			ep.WorkgroupSize = parseWorkgroupSize(fn.attributes)
		}
		eps = append(eps, ep)
	}
	return eps
}

// stageOf finds the stage attribute in an attribute run.
func stageOf(attributes string) (ShaderType, bool) {
	for _, attr := range attrRegex.FindAllStringSubmatch(attributes, -1) {
		if stage, ok := stageByAttr[attr[1]]; ok {
			return stage, true
		}
	}
	return 0, false
}

// referencedBindings walks the call graph from an entry point and collects the binding
// indices whose variable names appear in any reached function body.
func referencedBindings(entry string, bodies map[string]string, group0 []Binding) []uint32 {
	idents := make(map[string]struct{})
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		body := bodies[queue[0]]
		queue = queue[1:]
		for _, id := range identRegex.FindAllString(body, -1) {
			idents[id] = struct{}{}
		}
		for _, call := range callRegex.FindAllStringSubmatch(body, -1) {
			if _, ok := bodies[call[1]]; ok && !visited[call[1]] {
				visited[call[1]] = true
				queue = append(queue, call[1])
			}
		}
	}

	out := make([]uint32, 0, len(group0))
	for _, b := range group0 {
		if _, ok := idents[b.Name]; ok {
			out = append(out, b.Index)
		}
	}
	return out
}

// parseWorkgroupSize reads @workgroup_size(x[, y[, z]]) from an attribute run. Missing
// dimensions, and a missing attribute, default to 1.
//
// Parameters:
//   - attributes: the attribute run preceding a compute function
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(attributes string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	for _, attr := range attrRegex.FindAllStringSubmatch(attributes, -1) {
		if attr[1] != "workgroup_size" {
			continue
		}
		for i, dim := range strings.SplitN(attr[2], ",", 3) {
			if v, err := strconv.ParseUint(strings.TrimSpace(dim), 10, 32); err == nil {
				size[i] = uint32(v)
			}
		}
	}
	return size
}
