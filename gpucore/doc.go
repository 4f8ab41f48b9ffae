// Package gpucore provides the backend-neutral compute abstractions used by
// the integral image pipeline.
//
// The [Backend] interface is deliberately narrow: allocate 2-D float32
// buffers and small uniform blocks, compile a [ModuleDesc] into named
// kernels, record dispatches and transposes into a [Batch], and submit the
// batch. The same pipeline logic runs on:
//   - backend/wgpu (Pure Go WebGPU via gogpu/wgpu HAL)
//   - backend/cpu (multi-threaded host fallback, no accelerator required)
//
// # Architecture
//
//	               +-----------------+
//	               |    integral     |
//	               |   (Pipeline)    |
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               | Backend / Batch |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  backend/wgpu   |          |   backend/cpu   |
//	|  (hal.Device)   |          | (worker pool)   |
//	+-----------------+          +-----------------+
//
// # Binding Layout
//
// Every kernel uses bind group 0:
//
//	@binding(0)    uniform shapes: array<vec4<u32>, 4>  (width, height per storage slot)
//	@binding(1..4) storage slots, read_write array<f32>
//	@binding(5..)  uniform blocks, vec4<u32>
//
// Host kernels receive the same slots through [Group], so a WGSL entry
// point and its [HostKernel] twin index their inputs identically.
//
// # Resource Management
//
// Resources are referenced by small value types ([Buffer], [Uniform],
// [Kernel]) carrying opaque IDs. Backends track the mapping between IDs
// and actual resources.
package gpucore
