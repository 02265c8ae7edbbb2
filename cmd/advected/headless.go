package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-interop/engine/camera"
	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-interop/engine/headless"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
	"github.com/Carmen-Shannon/oxy-interop/engine/profiler"
)

// runHeadless runs the kernels on the CPU backend against host memory targets for cfg.frames
// frames, then optionally writes the texture to a PNG.
func runHeadless(cfg config, logger *slog.Logger) error {
	cam := camera.NewCamera(camera.WithSize(cfg.width, cfg.height))
	width, height := cam.Size()
	if width == 0 || height == 0 {
		return fmt.Errorf("window %dx%d is smaller than %d pixels", cfg.width, cfg.height, camera.Granularity)
	}

	gfx := headless.NewContext(headless.WithLogger(logger.With("component", "headless")))
	registry, err := compute.NewRegistry(gfx,
		compute.WithBackend(compute.BackendSoftware),
		compute.WithSoftwareKernels(noise.SoftwareKernels()),
		compute.WithWorkers(cfg.workers),
		compute.WithValidation(cfg.validate),
		compute.WithLogger(logger.With("component", "compute")),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			log.Printf("close registry: %v", err)
		}
	}()

	cs, cleanup, err := setupCompute(registry, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	windowBuf := gfx.NewBuffer("window pixels", noise.BufferSize(width, height))
	nativeBuf := gfx.NewBuffer("native pixels", noise.BufferSize(cfg.dim, cfg.dim))
	windowMem, err := cs.platform.WrapGraphicsBuffer(windowBuf)
	if err != nil {
		return err
	}
	nativeMem, err := cs.platform.WrapGraphicsBuffer(nativeBuf)
	if err != nil {
		return err
	}
	scratch, err := cs.platform.CreateBuffer(noise.ScratchSize(width, height))
	if err != nil {
		return err
	}

	tex := gfx.NewTexture("screen")
	prof := profiler.NewProfiler()
	targets := dispatch.Targets{
		Window: dispatch.Target{Memory: windowMem, Width: width, Height: height},
		Native: dispatch.Target{Memory: nativeMem, Width: cfg.dim, Height: cfg.dim},
	}
	o, err := dispatch.New(cs.queue, cs.program, targets, scratch, tex, orchestratorOptions(cfg, logger, prof)...)
	if err != nil {
		return err
	}

	for range cfg.frames {
		if err := o.Frame(); err != nil {
			if !errors.Is(err, dispatch.ErrFrameSkipped) {
				return err
			}
			log.Printf("%v", err)
		}
		if cfg.profile {
			prof.Tick()
		}
	}
	logSummary(prof.DispatchStats())

	if cfg.snapshot != "" {
		if err := tex.Snapshot(cfg.snapshot); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		log.Printf("wrote %s (%dx%d)", cfg.snapshot, tex.Width(), tex.Height())
	}
	return nil
}
