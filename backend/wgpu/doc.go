// Package wgpu provides a GPU compute backend using gogpu/wgpu.
//
// The backend drives the wgpu HAL directly: WGSL modules become compute
// pipelines, gpucore buffers become storage buffers, and each batch is
// recorded into one command encoder and submitted with a single fence
// wait. It uses the Pure Go Vulkan driver of gogpu/wgpu.
//
// # Architecture Overview
//
//	gpucore.Batch -> command encoder -> one compute pass per dispatch -> queue.Submit -> fence wait
//
// Key components:
//
//   - Backend: device, queue and resource tables implementing gpucore.Backend
//   - computeKernel: bind group layout, pipeline layout and compute pipeline
//     of one entry point
//   - batch: records dispatches and transposes, encodes them at Submit
//   - ii_transpose: built-in 16x16 tiled transpose shader
//
// Pass boundaries act as storage barriers, so the commands of a batch see
// the results of the commands recorded before them.
//
// # Binding Layout
//
// Each dispatch gets a bind group with the shapes uniform at binding 0,
// the storage slots at bindings 1..4 and the uniform blocks from binding 5.
// See package gpucore for the full convention.
//
// # Device Selection
//
// New opens the first discrete or integrated GPU found by the Vulkan
// backend. Applications that already own a device share it through
// NewWithDevice or NewFromProvider; the backend then never destroys it.
//
// # Build Tags
//
// Building with -tags nogpu excludes the backend. The package then only
// exports its error values, and nothing registers under "wgpu".
//
// # Usage
//
//	import (
//	    "github.com/gogpu/integral/backend"
//	    _ "github.com/gogpu/integral/backend/wgpu"
//	)
//
//	b, err := backend.Open(backend.BackendWGPU)
package wgpu
