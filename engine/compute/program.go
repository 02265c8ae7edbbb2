package compute

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/engine/renderer/shader"
	"github.com/gogpu/naga"
)

// Program is one kernel source module built for a platform's default device.
type Program struct {
	platform *Platform
	ctx      *Context
	path     string
	shader   shader.Shader
	driver   programDriver

	mu       sync.Mutex
	kernels  []*Kernel
	released bool
}

// LoadProgram reads a kernel source file fully and builds it for the platform's default device.
//
// Parameters:
//   - path: the WGSL source file
//
// Returns:
//   - *Program: the built program
//   - error: ErrSourceUnavailable if the file cannot be read, *BuildError with the full log if the
//     build fails, or the context error
func (p *Platform) LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
	}
	return p.LoadProgramSource(path, string(data))
}

// LoadProgramSource builds kernel source already held in memory.
//
// Parameters:
//   - path: the name reported in logs and build errors
//   - source: the WGSL source
//
// Returns:
//   - *Program: the built program
//   - error: *BuildError with the full log if the build fails, or the context error
func (p *Platform) LoadProgramSource(path, source string) (*Program, error) {
	ctx, err := p.Context()
	if err != nil {
		return nil, err
	}
	log := p.registry.logger.With("platform", p.name, "program", path)

	if p.registry.validate {
		if diag := validateSource(source); diag != "" {
			log.Error("kernel source rejected by front end")
			return nil, &BuildError{Path: path, Log: diag}
		}
	}

	sh, err := shader.NewShader(path, source)
	if err != nil {
		return nil, &BuildError{Path: path, Log: err.Error()}
	}
	if len(sh.EntryPointsOf(shader.ShaderTypeCompute)) == 0 {
		return nil, &BuildError{Path: path, Log: "no @compute entry points"}
	}

	driver, err := ctx.driver.buildProgram(path, source, sh)
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			log.Error("program build failed")
			return nil, be
		}
		return nil, &BuildError{Path: path, Log: err.Error()}
	}

	prog := &Program{
		platform: p,
		ctx:      ctx,
		path:     path,
		shader:   sh,
		driver:   driver,
	}
	p.mu.Lock()
	p.programs = append(p.programs, prog)
	p.mu.Unlock()

	log.Info("program built", "kernels", strings.Join(prog.EntryPoints(), ","))
	return prog, nil
}

// validateSource runs the naga front end over source and returns every diagnostic it reports,
// or an empty string when the source is accepted.
func validateSource(source string) string {
	ast, err := naga.Parse(source)
	if err != nil {
		return err.Error()
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return err.Error()
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return err.Error()
	}
	lines := make([]string, len(verrs))
	for i, v := range verrs {
		lines[i] = v.Error()
	}
	return strings.Join(lines, "\n")
}

// Path returns the source the program was loaded from.
func (prog *Program) Path() string { return prog.path }

// Shader returns the reflected kernel source.
func (prog *Program) Shader() shader.Shader { return prog.shader }

// EntryPoints returns the names of every kernel the program declares, in declaration order.
func (prog *Program) EntryPoints() []string {
	eps := prog.shader.EntryPointsOf(shader.ShaderTypeCompute)
	names := make([]string, len(eps))
	for i, ep := range eps {
		names[i] = ep.Name
	}
	return names
}

// ResolveKernel creates a handle to a named kernel. A failed lookup leaves the program usable.
//
// Parameters:
//   - name: the @compute entry point name
//
// Returns:
//   - *Kernel: the kernel handle
//   - error: ErrKernelNotFound if the program has no such kernel, or the driver error
func (prog *Program) ResolveKernel(name string) (*Kernel, error) {
	prog.mu.Lock()
	defer prog.mu.Unlock()
	if prog.released {
		return nil, ErrReleased
	}

	ep, ok := prog.shader.EntryPoint(name)
	if !ok || ep.Type != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("%w: %q in %s", ErrKernelNotFound, name, prog.path)
	}
	driver, err := prog.driver.kernel(ep)
	if err != nil {
		return nil, fmt.Errorf("compute: create kernel %q: %w", name, err)
	}
	k := &Kernel{
		program: prog,
		entry:   ep,
		driver:  driver,
		args:    make(map[uint32]Binding),
	}
	prog.kernels = append(prog.kernels, k)
	return k, nil
}

// KernelCount returns the number of live kernel handles resolved from the program.
func (prog *Program) KernelCount() int {
	prog.mu.Lock()
	defer prog.mu.Unlock()
	return len(prog.kernels)
}

func (prog *Program) liveKernels() []*Kernel {
	prog.mu.Lock()
	defer prog.mu.Unlock()
	return slices.Clone(prog.kernels)
}

func (prog *Program) forgetKernel(k *Kernel) {
	prog.mu.Lock()
	defer prog.mu.Unlock()
	prog.kernels = slices.DeleteFunc(prog.kernels, func(x *Kernel) bool { return x == k })
}

// Release releases the program after its kernels. Releasing twice is a no-op.
func (prog *Program) Release() {
	for _, k := range prog.liveKernels() {
		k.Release()
	}
	prog.mu.Lock()
	if prog.released {
		prog.mu.Unlock()
		return
	}
	prog.released = true
	prog.mu.Unlock()

	prog.driver.release()
	prog.platform.forgetProgram(prog)
	prog.platform.registry.released(ObjectProgram, prog.path)
}
