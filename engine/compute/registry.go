package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-interop/common"
)

// Registry owns every compute platform discovered for one graphics context. It is constructed
// explicitly after the graphics context exists and passed to the components that need it.
type Registry struct {
	gfx               GraphicsContext
	backend           Backend
	logger            *slog.Logger
	validate          bool
	softwarePlatforms []SoftwarePlatform
	softwareKernels   map[string]SoftwareKernel
	workers           int
	releaseHook       func(ReleaseEvent)

	platforms []*Platform

	mu      sync.Mutex
	wrapped map[any]*Memory
	closed  bool
}

// NewRegistry enumerates compute platforms for the active graphics context.
//
// Parameters:
//   - gfx: the active graphics context; the WebGPU backend requires a WGPUGraphicsContext
//   - opts: a variadic list of RegistryOption functions
//
// Returns:
//   - *Registry: the registry holding every discovered platform
//   - error: ErrNoGraphicsContext if gfx is nil, or the driver error from enumeration
func NewRegistry(gfx GraphicsContext, opts ...RegistryOption) (*Registry, error) {
	if gfx == nil {
		return nil, ErrNoGraphicsContext
	}
	r := &Registry{
		gfx:               gfx,
		backend:           BackendWGPU,
		logger:            common.NopLogger(),
		softwarePlatforms: DefaultSoftwarePlatforms,
		softwareKernels:   make(map[string]SoftwareKernel),
		workers:           runtime.NumCPU(),
		wrapped:           make(map[any]*Memory),
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	switch r.backend {
	case BackendWGPU:
		wgfx, ok := gfx.(WGPUGraphicsContext)
		if !ok {
			return nil, fmt.Errorf("%w: %s backend needs a WebGPU graphics context", ErrNoGraphicsContext, r.backend)
		}
		r.platforms, err = discoverWGPU(r, wgfx)
	case BackendSoftware:
		r.platforms = discoverSoftware(r)
	default:
		err = fmt.Errorf("compute: unknown backend %s", r.backend)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("platforms enumerated", "backend", r.backend.String(), "count", len(r.platforms))
	return r, nil
}

// Backend returns the driver the registry was built with.
func (r *Registry) Backend() Backend {
	return r.backend
}

// Logger returns the registry's structured logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

// Platforms returns every discovered platform in discovery order.
func (r *Registry) Platforms() []*Platform {
	return r.platforms
}

// DiscoverSharableContexts returns the platforms that can create a compute context sharing the
// active graphics context, in discovery order. Each one is logged as it is found.
//
// Returns:
//   - []*Platform: the sharable platforms; the first entry is the conventional default
//   - error: ErrNoSharablePlatform if none can share; callers treat this as a hard stop
func (r *Registry) DiscoverSharableContexts() ([]*Platform, error) {
	var out []*Platform
	for _, p := range r.platforms {
		if !p.sharable {
			continue
		}
		r.logger.Info("sharable platform found", "platform", p.name, "version", p.version)
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoSharablePlatform
	}
	return out, nil
}

// Close releases every object created through the registry, children before parents:
// kernels, programs, queues (drained), memory objects, contexts, then platforms.
//
// Returns:
//   - error: the joined errors of queue drains, if any
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, p := range r.platforms {
		for _, prog := range p.livePrograms() {
			for _, k := range prog.liveKernels() {
				k.Release()
			}
		}
	}
	for _, p := range r.platforms {
		for _, prog := range p.livePrograms() {
			prog.Release()
		}
	}
	for _, p := range r.platforms {
		for _, q := range p.liveQueues() {
			if err := q.Release(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, p := range r.platforms {
		for _, m := range p.liveMemories() {
			m.Destroy()
		}
	}
	for _, p := range r.platforms {
		p.releaseContext()
	}
	for _, p := range r.platforms {
		p.release()
	}
	return errors.Join(errs...)
}

// released notifies the release hook.
func (r *Registry) released(kind ObjectKind, name string) {
	r.logger.Debug("released", "kind", string(kind), "name", name)
	if r.releaseHook != nil {
		r.releaseHook(ReleaseEvent{Kind: kind, Name: name})
	}
}

// claimWrap records that key is wrapped by m, failing if another wrapper holds it.
func (r *Registry) claimWrap(key any, m *Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wrapped[key]; ok {
		return ErrAlreadyWrapped
	}
	r.wrapped[key] = m
	return nil
}

// dropWrap forgets the wrapper of key.
func (r *Registry) dropWrap(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wrapped, key)
}
