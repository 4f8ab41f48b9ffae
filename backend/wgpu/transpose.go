//go:build !nogpu

package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/integral/gpucore"
)

//go:embed shaders/transpose.wgsl
var transposeWGSL string

// transposeTile is the edge of the square tile handled by one workgroup.
const transposeTile = 16

// transposeKernel describes the built-in ii_transpose entry point.
var transposeKernel = gpucore.KernelDesc{
	Name:      "ii_transpose",
	GroupSize: gpucore.Size{X: transposeTile, Y: transposeTile, Z: 1},
	Storage:   2,
}

// initTranspose compiles the built-in transpose shader.
func (b *Backend) initTranspose() error {
	shader, err := b.createShaderModule("transpose", transposeWGSL)
	if err != nil {
		return err
	}
	k, err := newComputeKernel(b.device, shader, transposeKernel)
	if err != nil {
		b.device.DestroyShaderModule(shader)
		return fmt.Errorf("wgpu: transpose: %w", err)
	}
	b.transposeShader = shader
	b.transpose = k
	return nil
}

func (b *Backend) destroyTranspose() {
	if b.transpose != nil {
		b.transpose.destroy(b.device)
		b.transpose = nil
	}
	if b.transposeShader != nil {
		b.device.DestroyShaderModule(b.transposeShader)
		b.transposeShader = nil
	}
}

// transposeGroups returns the dispatch grid for transposing src.
func transposeGroups(src gpucore.Buffer) gpucore.Size {
	return gpucore.Size{
		X: uint32(gpucore.CeilDiv(src.Width, transposeTile)),  //nolint:gosec // bounded by buffer size
		Y: uint32(gpucore.CeilDiv(src.Height, transposeTile)), //nolint:gosec // bounded by buffer size
		Z: 1,
	}
}
