// Package integral computes integral images (summed-area tables) of
// single-channel float32 images on a parallel compute backend.
//
// # Overview
//
// An integral image holds at (x, y) the sum of every source value above
// and to the left of (x, y). Once computed, the sum over any axis-aligned
// rectangle takes four lookups, which makes box filters, adaptive
// thresholding and Haar-like features constant time per query.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/integral"
//	    "github.com/gogpu/integral/backend"
//	    _ "github.com/gogpu/integral/backend/cpu"
//	    _ "github.com/gogpu/integral/backend/wgpu"
//	)
//
//	b, _ := backend.Default()
//	defer b.Close()
//
//	m, _ := integral.NewModule(b)
//	defer m.Close()
//
//	p, _ := integral.New(b, m, 1280, 720, integral.WithInclusive(true))
//	defer p.Close()
//
//	src, _ := img.Upload(b, "src")
//	dst, _ := b.CreateBuffer(1280, 720, "dst")
//	_ = p.ComputeIntegral(src, dst)
//	sum, _ := p.BoxIntegral(dst, 100, 200, 32, 32)
//
// # Algorithm
//
// Every row is split into blocks of [BlockSize] elements. One pass over
// an axis runs three kernels:
//
//	ii_scan   in-block prefix sum, block totals into the aux buffer
//	ii_scan   exclusive scan of the aux buffer (block offsets)
//	ii_fixup  add each block's offset to its elements
//
// The row pass is followed by a transpose, the same three kernels on the
// transposed image (a column pass) and a transpose back. The aux buffer
// of an axis is scanned with a single block, so neither axis may exceed
// BlockSize*BlockSize = [MaxAxis] elements.
//
// # Backends
//
// The pipeline runs on any [gpucore.Backend]. backend/wgpu runs the WGSL
// kernels through gogpu/wgpu; backend/cpu runs their Go twins on a
// worker pool. Both perform the same float32 additions in the same order.
//
// # Errors
//
// Construction and submission failures are returned as errors. Contract
// violations (mismatched sizes, height < 2, an axis above MaxAxis) panic
// with a [*PreconditionError].
package integral
