// Package engine holds the explicitly constructed execution context shared by
// graphs and operators: compute mode, device, resource manager, worker pool
// and logger.
package engine

import (
	"log/slog"
	"sync"

	"github.com/born-ml/graphcore/internal/device"
	"github.com/born-ml/graphcore/internal/parallel"
	"github.com/born-ml/graphcore/internal/resource"
)

// Mode selects where operators compute.
type Mode int

// Compute modes.
const (
	ModeCPU Mode = iota
	ModeGPU
	ModeAuto // GPU when a device is configured, CPU otherwise
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeCPU:
		return "cpu"
	case ModeGPU:
		return "gpu"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Config configures an Engine.
type Config struct {
	Label    string
	Mode     Mode
	Device   device.Device // nil means CPU only
	Logger   *slog.Logger  // nil means slog.Default()
	Parallel parallel.Config
}

// DefaultConfig returns a CPU engine config using every core.
func DefaultConfig() Config {
	return Config{
		Label:    "engine",
		Mode:     ModeAuto,
		Parallel: parallel.DefaultConfig(),
	}
}

// Engine is the process-wide execution context. Create one with New and pass
// it to graphs and operators; nothing in the module keeps a global instance.
type Engine struct {
	label     string
	mode      Mode
	device    device.Device
	logger    *slog.Logger
	parallel  parallel.Config
	resources *resource.Manager
	pool      *parallel.Pool
	closeOnce sync.Once
}

// New builds an engine. Requesting GPU mode without a device logs a warning
// and falls back to CPU.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("engine", cfg.Label)

	mode := cfg.Mode
	if mode == ModeGPU && cfg.Device == nil {
		logger.Warn("GPU mode requested without a device, falling back to CPU")
		mode = ModeCPU
	}

	e := &Engine{
		label:     cfg.Label,
		mode:      mode,
		device:    cfg.Device,
		logger:    logger,
		parallel:  cfg.Parallel,
		resources: resource.NewManager(cfg.Label, cfg.Device, logger),
		pool:      parallel.NewPool(cfg.Parallel),
	}

	dev := "none"
	if e.device != nil {
		dev = e.device.Name()
	}
	logger.Info("engine ready", "mode", mode.String(), "device", dev, "workers", e.pool.Workers())
	return e
}

// Label returns the engine label.
func (e *Engine) Label() string { return e.label }

// Mode returns the configured default mode after any fallback.
func (e *Engine) Mode() Mode { return e.mode }

// Device returns the configured device or nil.
func (e *Engine) Device() device.Device { return e.device }

// HasDevice reports whether a device is configured.
func (e *Engine) HasDevice() bool { return e.device != nil }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Parallel returns the loop configuration for kernels.
func (e *Engine) Parallel() parallel.Config { return e.parallel }

// Resources returns the resource manager.
func (e *Engine) Resources() *resource.Manager { return e.resources }

// Pool returns the shared worker pool.
func (e *Engine) Pool() *parallel.Pool { return e.pool }

// Resolve turns a requested mode into ModeCPU or ModeGPU. Auto picks GPU
// when a device exists. GPU without a device downgrades to CPU with a warning.
func (e *Engine) Resolve(m Mode) Mode {
	switch m {
	case ModeAuto:
		if e.device != nil {
			return ModeGPU
		}
		return ModeCPU
	case ModeGPU:
		if e.device == nil {
			e.logger.Warn("GPU mode requested without a device, falling back to CPU")
			return ModeCPU
		}
		return ModeGPU
	default:
		return ModeCPU
	}
}

// Close stops the worker pool, drops pooled resources and releases the device.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.pool.Close()
		e.resources.ReleaseAllResources()
		if e.device != nil {
			e.device.Release()
		}
		e.logger.Info("engine closed")
	})
}
