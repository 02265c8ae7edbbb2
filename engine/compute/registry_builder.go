package compute

import "log/slog"

// RegistryOption is a functional option used to configure a Registry during construction.
type RegistryOption func(*Registry)

// ObjectKind names the kind of compute object a release event refers to.
type ObjectKind string

const (
	ObjectKernel   ObjectKind = "kernel"
	ObjectProgram  ObjectKind = "program"
	ObjectQueue    ObjectKind = "queue"
	ObjectMemory   ObjectKind = "memory"
	ObjectContext  ObjectKind = "context"
	ObjectPlatform ObjectKind = "platform"
)

// ReleaseEvent is delivered to a release hook each time an object is released.
type ReleaseEvent struct {
	Kind ObjectKind
	Name string
}

// DeviceInfo describes one device of a software platform.
type DeviceInfo struct {
	Name    string
	Vendor  string
	Profile string
}

// SoftwarePlatform describes a platform the software backend reports during discovery.
type SoftwarePlatform struct {
	Name     string
	Version  string
	Sharable bool
	Devices  []DeviceInfo
}

// DefaultSoftwarePlatforms is the platform list the software backend discovers when none is configured.
var DefaultSoftwarePlatforms = []SoftwarePlatform{
	{
		Name:     "oxy software",
		Version:  "1.0",
		Sharable: true,
		Devices:  []DeviceInfo{{Name: "cpu", Vendor: "oxy", Profile: "FULL_PROFILE"}},
	},
}

// WithBackend selects the driver used for platform discovery.
//
// Parameters:
//   - backend: BackendWGPU (default) or BackendSoftware
//
// Returns:
//   - RegistryOption: a function that sets the registry backend
func WithBackend(backend Backend) RegistryOption {
	return func(r *Registry) {
		r.backend = backend
	}
}

// WithLogger sets the structured logger for the registry and every object it creates.
//
// Parameters:
//   - logger: the logger to use; nil keeps the discarding default
//
// Returns:
//   - RegistryOption: a function that sets the registry logger
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithValidation runs kernel sources through the naga WGSL front end before building them.
// Front-end diagnostics become the build log of the returned BuildError.
//
// Parameters:
//   - enabled: whether to validate sources
//
// Returns:
//   - RegistryOption: a function that toggles source validation
func WithValidation(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.validate = enabled
	}
}

// WithSoftwarePlatforms replaces the platform list reported by the software backend.
//
// Parameters:
//   - platforms: the platforms to report, in discovery order
//
// Returns:
//   - RegistryOption: a function that sets the software platform list
func WithSoftwarePlatforms(platforms ...SoftwarePlatform) RegistryOption {
	return func(r *Registry) {
		r.softwarePlatforms = platforms
	}
}

// WithSoftwareKernels registers CPU implementations of WGSL entry points for the software backend.
// A program only builds on the software backend when every @compute entry point has one.
//
// Parameters:
//   - kernels: implementations keyed by entry point name
//
// Returns:
//   - RegistryOption: a function that registers software kernels
func WithSoftwareKernels(kernels map[string]SoftwareKernel) RegistryOption {
	return func(r *Registry) {
		for name, k := range kernels {
			r.softwareKernels[name] = k
		}
	}
}

// WithWorkers sets how many workers the software backend runs kernel rows on.
//
// Parameters:
//   - n: the worker count; values below 1 are ignored
//
// Returns:
//   - RegistryOption: a function that sets the worker count
func WithWorkers(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithReleaseHook installs a callback observing every object release, in release order.
//
// Parameters:
//   - hook: the callback
//
// Returns:
//   - RegistryOption: a function that sets the release hook
func WithReleaseHook(hook func(ReleaseEvent)) RegistryOption {
	return func(r *Registry) {
		r.releaseHook = hook
	}
}
