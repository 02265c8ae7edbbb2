package main

import (
	"fmt"
	"log"
	"log/slog"
	"sort"

	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-interop/engine/profiler"
)

// computeSetup is the compute side shared by both run modes.
type computeSetup struct {
	platform *compute.Platform
	queue    *compute.Queue
	program  *compute.Program
}

// setupCompute picks the first sharable platform of registry, creates a queue on its default
// device and builds the kernel source.
func setupCompute(registry *compute.Registry, cfg config) (*computeSetup, func(), error) {
	platforms, err := registry.DiscoverSharableContexts()
	if err != nil {
		return nil, nil, err
	}
	p := platforms[0]
	if dev := p.DefaultDevice(); dev != nil {
		log.Printf("%s %s: %s", p.Name(), p.Version(), dev.Name())
	}

	q, err := p.CreateQueue(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create queue: %w", err)
	}

	path, cleanup, err := kernelPath(cfg)
	if err != nil {
		return nil, nil, err
	}
	prog, err := p.LoadProgram(path)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load kernels: %w", err)
	}
	log.Printf("loaded %d kernels from %s", prog.KernelCount(), path)
	return &computeSetup{platform: p, queue: q, program: prog}, cleanup, nil
}

// orchestratorOptions returns the options shared by both run modes.
func orchestratorOptions(cfg config, logger *slog.Logger, prof *profiler.Profiler) []dispatch.OrchestratorOption {
	opts := []dispatch.OrchestratorOption{
		dispatch.WithLogger(logger.With("component", "dispatch")),
		dispatch.WithMode(dispatch.Mode(cfg.mode)),
	}
	if prof != nil {
		opts = append(opts, dispatch.WithFrameHook(func(s dispatch.FrameStats) {
			prof.RecordDispatch(s.Mode.String(), s.Elapsed)
		}))
	}
	return opts
}

// logSummary logs the dispatch statistics of every mode that ran.
func logSummary(stats map[string]profiler.DispatchStat) {
	modes := make([]string, 0, len(stats))
	for m := range stats {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		s := stats[m]
		log.Printf("mode %s: %d frames, mean %s, max %s", m, s.Count, s.Mean(), s.Max)
	}
}
