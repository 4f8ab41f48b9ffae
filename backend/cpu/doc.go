// Package cpu provides a multi-threaded host implementation of
// gpucore.Backend.
//
// Buffers live in host memory and are exposed without copying through
// gpucore.HostMapper. Host kernels run one thread-group per work item on a
// worker pool; the lanes of a group run sequentially inside the kernel,
// which keeps the group-local scratch memory of the GPU formulation.
// Each recorded command finishes before the next one starts, so the
// data-dependency order of a batch is preserved without extra barriers.
//
// Importing the package registers the backend as "cpu":
//
//	import _ "github.com/gogpu/integral/backend/cpu"
package cpu
