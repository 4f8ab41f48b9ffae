package integral

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/integral/gpucore"
)

// Pipeline constants.
const (
	// BlockSize is the number of contiguous elements scanned by one
	// thread-group, and the number of threads in that group.
	BlockSize = 64

	// MaxAxis is the longest supported axis. The aux buffer of an axis is
	// scanned as a single block, so it may hold at most BlockSize totals.
	MaxAxis = BlockSize * BlockSize
)

// Kernel entry point names.
const (
	KernelScan        = "ii_scan"
	KernelFixup       = "ii_fixup"
	KernelBoxIntegral = "ii_boxintegral"
)

//go:embed shaders/integral.wgsl
var integralWGSL string

// WGSL returns the source of the integral image kernels.
func WGSL() string {
	return integralWGSL
}

// ModuleDesc returns the module holding the three integral image kernels,
// as WGSL for GPU backends and as host kernels for the CPU backend.
func ModuleDesc() *gpucore.ModuleDesc {
	return &gpucore.ModuleDesc{
		Label: "integral",
		WGSL:  integralWGSL,
		Kernels: []gpucore.KernelDesc{
			{
				Name:      KernelScan,
				GroupSize: gpucore.Size{X: BlockSize, Y: 1, Z: 1},
				Storage:   3,
				Uniforms:  1,
				Host:      scanKernel,
			},
			{
				Name:      KernelFixup,
				GroupSize: gpucore.Size{X: BlockSize, Y: 1, Z: 1},
				Storage:   3,
				Uniforms:  0,
				Host:      fixupKernel,
			},
			{
				Name:      KernelBoxIntegral,
				GroupSize: gpucore.Size{X: 1, Y: 1, Z: 1},
				Storage:   2,
				Uniforms:  1,
				Host:      boxKernel,
			},
		},
	}
}

// NewModule compiles the integral image kernels on b.
func NewModule(b gpucore.Backend) (gpucore.Module, error) {
	m, err := b.NewModule(ModuleDesc())
	if err != nil {
		return nil, fmt.Errorf("integral: compile kernels on %s: %w", b.Name(), err)
	}
	Logger().Info("integral: kernels compiled", "backend", b.Name())
	return m, nil
}
