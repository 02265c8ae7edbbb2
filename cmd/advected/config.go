package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-interop/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
)

// config holds the parsed command line.
type config struct {
	dim      uint32
	kernels  string
	width    int
	height   int
	vsync    bool
	validate bool
	profile  bool
	headless bool
	frames   int
	mode     int
	snapshot string
	workers  int
	verbose  bool
}

func (c config) logLevel() slog.Level {
	if c.verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// parseConfig parses the flags and the dimension. When no positional dimension is given it is read
// from stdin, with a prompt on out if stdin is a terminal.
func parseConfig(args []string, stdin io.Reader, out io.Writer, interactive bool) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("advected", flag.ContinueOnError)
	fs.StringVar(&cfg.kernels, "kernels", "", "WGSL kernel source (default: the built-in kernels)")
	fs.IntVar(&cfg.width, "width", 1280, "Window width")
	fs.IntVar(&cfg.height, "height", 720, "Window height")
	fs.BoolVar(&cfg.vsync, "vsync", true, "Synchronize presentation with the display")
	fs.BoolVar(&cfg.validate, "validate", false, "Validate kernel source with the naga front-end before building")
	fs.BoolVar(&cfg.profile, "profile", false, "Log frame rate, memory and dispatch timing")
	fs.BoolVar(&cfg.headless, "headless", false, "Run the kernels on the CPU without a window")
	fs.IntVar(&cfg.frames, "frames", 0, "Stop after this many frames (headless default: 1)")
	fs.IntVar(&cfg.mode, "mode", 0, fmt.Sprintf("Initial mode, 0 to %d", dispatch.ModeCount-1))
	fs.StringVar(&cfg.snapshot, "snapshot", "", "Write the final texture to this PNG file (headless only)")
	fs.IntVar(&cfg.workers, "workers", runtime.NumCPU(), "Worker goroutines of the CPU backend")
	fs.BoolVar(&cfg.verbose, "v", false, "Verbose logging")
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case cfg.width <= 0 || cfg.height <= 0:
		return cfg, fmt.Errorf("invalid window size %dx%d", cfg.width, cfg.height)
	case cfg.frames < 0:
		return cfg, fmt.Errorf("invalid frame count %d", cfg.frames)
	case cfg.mode < 0 || cfg.mode >= dispatch.ModeCount:
		return cfg, fmt.Errorf("invalid mode %d, want 0 to %d", cfg.mode, dispatch.ModeCount-1)
	case cfg.snapshot != "" && !cfg.headless:
		return cfg, errors.New("-snapshot needs -headless")
	}
	if cfg.headless && cfg.frames == 0 {
		cfg.frames = 1
	}

	var err error
	switch fs.NArg() {
	case 0:
		cfg.dim, err = readDim(stdin, out, interactive)
	case 1:
		cfg.dim, err = parseDim(fs.Arg(0))
	default:
		err = fmt.Errorf("unexpected arguments %q", fs.Args()[1:])
	}
	return cfg, err
}

// readDim reads the dimension from r, prompting on w first when prompt is set.
func readDim(r io.Reader, w io.Writer, prompt bool) (uint32, error) {
	if prompt {
		fmt.Fprint(w, "input dim:")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return 0, fmt.Errorf("read dim: %w", err)
	}
	return parseDim(line)
}

// parseDim parses a positive integer dimension.
func parseDim(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid dim %q: want a positive integer", strings.TrimSpace(s))
	}
	return uint32(v), nil
}

// kernelPath returns the kernel source path. Without -kernels the built-in source is written to a
// temporary file, removed by the returned cleanup.
func kernelPath(cfg config) (string, func(), error) {
	if cfg.kernels != "" {
		return cfg.kernels, func() {}, nil
	}
	f, err := os.CreateTemp("", "advected-*.wgsl")
	if err != nil {
		return "", nil, fmt.Errorf("write built-in kernels: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(noise.Source); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write built-in kernels: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write built-in kernels: %w", err)
	}
	return f.Name(), cleanup, nil
}
