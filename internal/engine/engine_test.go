package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/parallel"
)

func TestGPUWithoutDeviceFallsBack(t *testing.T) {
	var logs bytes.Buffer
	e := New(Config{
		Label:    "t",
		Mode:     ModeGPU,
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
		Parallel: parallel.Sequential(),
	})
	defer e.Close()

	assert.Equal(t, ModeCPU, e.Mode())
	assert.False(t, e.HasDevice())
	assert.Contains(t, logs.String(), "falling back to CPU")

	logs.Reset()
	assert.Equal(t, ModeCPU, e.Resolve(ModeGPU))
	assert.Contains(t, logs.String(), "falling back to CPU")
	assert.Equal(t, ModeCPU, e.Resolve(ModeAuto))
}

func TestResolveWithDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = device.NewCPU(parallel.Sequential())
	cfg.Parallel = parallel.Sequential()
	e := New(cfg)
	defer e.Close()

	assert.True(t, e.HasDevice())
	assert.Equal(t, ModeGPU, e.Resolve(ModeAuto))
	assert.Equal(t, ModeGPU, e.Resolve(ModeGPU))
	assert.Equal(t, ModeCPU, e.Resolve(ModeCPU))
	assert.Equal(t, "engine", e.Resources().Label())
}

func TestCloseIdempotent(t *testing.T) {
	e := New(DefaultConfig())
	e.Close()
	e.Close()
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "cpu", ModeCPU.String())
	assert.Equal(t, "gpu", ModeGPU.String())
	assert.Equal(t, "auto", ModeAuto.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
