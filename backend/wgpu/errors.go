package wgpu

import "errors"

// Backend errors.
var (
	// ErrNoGPU is returned when no usable GPU adapter is found.
	ErrNoGPU = errors.New("wgpu: no GPU available")

	// ErrTimeout is returned when the GPU does not signal completion in time.
	ErrTimeout = errors.New("wgpu: GPU timeout")

	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL device and queue handles.
	ErrNoHALProvider = errors.New("wgpu: provider does not expose HAL types")
)
