package wgpu

import "time"

// defaultTimeout bounds every fence wait.
const defaultTimeout = 5 * time.Second

// Option configures a Backend during creation.
type Option func(*options)

// options holds optional configuration for Backend creation.
type options struct {
	spirv   bool
	timeout time.Duration
}

// defaultOptions returns the default backend options.
func defaultOptions() options {
	return options{
		spirv:   false, // WGSL is handed to the driver as is
		timeout: defaultTimeout,
	}
}

// WithSPIRV compiles modules to SPIR-V with naga before creating shader
// modules, instead of passing WGSL to the HAL.
func WithSPIRV(enabled bool) Option {
	return func(o *options) {
		o.spirv = enabled
	}
}

// WithTimeout sets how long Submit and ReadBuffer wait for the GPU.
// Non-positive values keep the default of 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
