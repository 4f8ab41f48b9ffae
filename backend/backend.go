package backend

import "errors"

// Registry names of the bundled backends.
const (
	// BackendWGPU is the gogpu/wgpu HAL backend (Vulkan).
	BackendWGPU = "wgpu"

	// BackendCPU is the multi-threaded host backend.
	BackendCPU = "cpu"
)

// Common registry errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none of the registered backends could be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)
