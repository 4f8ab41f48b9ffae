// Package backend is the registry of compute backends.
//
// Backends register a factory from init() and are selected at runtime
// by name or by priority:
//
//	import (
//		"github.com/gogpu/integral/backend"
//		_ "github.com/gogpu/integral/backend/cpu"
//		_ "github.com/gogpu/integral/backend/wgpu"
//	)
//
//	// Best available backend: wgpu if a GPU opens, otherwise cpu.
//	b, err := backend.Default()
//
//	// Or a specific backend.
//	b, err := backend.Open(backend.BackendCPU)
//
// Opening a backend allocates device resources; call Close on the
// returned backend when done.
package backend
