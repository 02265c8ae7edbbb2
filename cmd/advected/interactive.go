package main

import (
	"fmt"
	"log"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-interop/common"
	"github.com/Carmen-Shannon/oxy-interop/engine"
	"github.com/Carmen-Shannon/oxy-interop/engine/camera"
	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
	"github.com/Carmen-Shannon/oxy-interop/engine/renderer"
	"github.com/Carmen-Shannon/oxy-interop/engine/window"
)

// runInteractive opens a window, shares its WebGPU device with the compute layer and runs the
// frame loop until the window closes.
func runInteractive(cfg config, logger *slog.Logger) error {
	w, err := window.NewWindow(window.WithTitle("advected"), window.WithSize(cfg.width, cfg.height))
	if err != nil {
		return err
	}

	presentMode := renderer.PresentModeUncapped
	if cfg.vsync {
		presentMode = renderer.PresentModeVSync
	}
	r := renderer.NewRenderer(w, renderer.WithPresentMode(presentMode))
	defer r.Release()

	// Targets are allocated at the largest viewport so resizes never reallocate shared memory.
	windowBuf, err := r.NewPixelBuffer("window pixels", noise.BufferSize(camera.MaxDimension, camera.MaxDimension))
	if err != nil {
		return err
	}
	defer windowBuf.Release()
	nativeBuf, err := r.NewPixelBuffer("native pixels", noise.BufferSize(cfg.dim, cfg.dim))
	if err != nil {
		return err
	}
	defer nativeBuf.Release()

	tex := r.NewTexture("screen", common.PixelFormatRGBA32F)
	defer tex.Release()
	quad, err := r.NewVertexBuffer("quad", renderer.QuadVertexBytes())
	if err != nil {
		return err
	}
	defer quad.Release()
	va := r.NewVertexArray("screen")
	defer va.Release()
	if err := va.Prepare(quad, tex, "tex"); err != nil {
		return fmt.Errorf("prepare quad: %w", err)
	}

	registry, err := compute.NewRegistry(r,
		compute.WithBackend(compute.BackendWGPU),
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

	windowMem, err := cs.platform.WrapGraphicsBuffer(windowBuf)
	if err != nil {
		return err
	}
	nativeMem, err := cs.platform.WrapGraphicsBuffer(nativeBuf)
	if err != nil {
		return err
	}
	scratch, err := cs.platform.CreateBuffer(noise.ScratchSize(camera.MaxDimension, camera.MaxDimension))
	if err != nil {
		return err
	}

	targets := dispatch.Targets{
		Window: dispatch.Target{Memory: windowMem, Width: camera.MaxDimension, Height: camera.MaxDimension},
		Native: dispatch.Target{Memory: nativeMem, Width: cfg.dim, Height: cfg.dim},
	}
	o, err := dispatch.New(cs.queue, cs.program, targets, scratch, tex, orchestratorOptions(cfg, logger, nil)...)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(w, r, o, va,
		engine.WithProfiling(cfg.profile),
		engine.WithMaxFrames(uint64(cfg.frames)),
	)
	log.Printf("mode %s; press Enter to change mode, Escape to quit", o.Mode())
	eng.Run()
	logSummary(eng.Profiler().DispatchStats())
	return nil
}
