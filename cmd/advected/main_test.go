package main

import (
	"bytes"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_PositionalDim(t *testing.T) {
	var out bytes.Buffer
	cfg, err := parseConfig([]string{"-headless", "-mode", "2", "256"}, strings.NewReader(""), &out, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(256), cfg.dim)
	assert.Equal(t, 2, cfg.mode)
	assert.Equal(t, 1, cfg.frames, "headless runs one frame by default")
	assert.Empty(t, out.String(), "no prompt with a positional dim")
}

func TestParseConfig_PromptsOnTerminal(t *testing.T) {
	var out bytes.Buffer
	cfg, err := parseConfig(nil, strings.NewReader("128\n"), &out, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), cfg.dim)
	assert.Equal(t, "input dim:", out.String())
}

func TestParseConfig_ReadsPipedDimSilently(t *testing.T) {
	var out bytes.Buffer
	cfg, err := parseConfig(nil, strings.NewReader(" 64"), &out, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.dim)
	assert.Empty(t, out.String())
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{"zero dim", []string{"0"}, ""},
		{"negative dim", []string{"--", "-4"}, ""},
		{"word dim", []string{"big"}, ""},
		{"empty stdin", nil, ""},
		{"extra args", []string{"4", "5"}, ""},
		{"mode out of range", []string{"-mode", "9", "4"}, ""},
		{"snapshot without headless", []string{"-snapshot", "out.png", "4"}, ""},
		{"bad size", []string{"-width", "0", "4"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args, strings.NewReader(tt.stdin), io.Discard, false)
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_Help(t *testing.T) {
	_, err := parseConfig([]string{"-h"}, strings.NewReader(""), io.Discard, false)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestKernelPath_WritesBuiltInSource(t *testing.T) {
	path, cleanup, err := kernelPath(config{})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, noise.Source, string(data))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	path, _, err = kernelPath(config{kernels: "custom.wgsl"})
	require.NoError(t, err)
	assert.Equal(t, "custom.wgsl", path)
}

func TestRunHeadless_WritesSnapshot(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "frame.png")
	cfg := config{
		dim:      32,
		width:    100,
		height:   70,
		headless: true,
		frames:   2,
		mode:     3,
		snapshot: snap,
		workers:  2,
	}
	require.NoError(t, runHeadless(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))

	img, err := imaging.Open(snap)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx(), "the window target is masked to 64 pixels")
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestRunHeadless_NativeMode(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "native.png")
	cfg := config{dim: 48, width: 64, height: 64, headless: true, frames: 1, mode: 1, snapshot: snap, workers: 1}
	require.NoError(t, runHeadless(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))

	img, err := imaging.Open(snap)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestRunHeadless_RejectsTinyWindow(t *testing.T) {
	cfg := config{dim: 8, width: 32, height: 32, headless: true, frames: 1, workers: 1}
	assert.Error(t, runHeadless(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestRunHeadless_MissingKernels(t *testing.T) {
	cfg := config{dim: 8, width: 64, height: 64, headless: true, frames: 1, workers: 1, kernels: filepath.Join(t.TempDir(), "none.wgsl")}
	assert.Error(t, runHeadless(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
}
