//go:build !windows

package device

import "github.com/pkg/errors"

// NewWebGPU is only implemented on windows, where go-webgpu ships its native
// library. Elsewhere it always returns ErrNoDevice.
func NewWebGPU() (Device, error) {
	return nil, errors.Wrap(ErrNoDevice, "webgpu: unsupported platform")
}
