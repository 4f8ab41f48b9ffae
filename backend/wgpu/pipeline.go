//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/integral/gpucore"
)

// computeKernel holds the GPU objects of one entry point.
type computeKernel struct {
	name           string
	storage        int
	uniforms       int
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline
}

// layoutEntries returns the bind group layout of a kernel binding storage
// slots and uniform blocks: the shapes uniform, the storage slots, then
// the uniforms.
func layoutEntries(storage, uniforms int) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, 1+storage+uniforms)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    gpucore.ShapesBinding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range storage {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(gpucore.FirstStorageBinding + i), //nolint:gosec // at most MaxStorageBindings
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		})
	}
	for i := range uniforms {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(gpucore.FirstUniformBinding + i), //nolint:gosec // small binding index
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	return entries
}

// newComputeKernel creates the layouts and pipeline of entry point kd in
// shader. On failure nothing is left allocated.
func newComputeKernel(device hal.Device, shader hal.ShaderModule, kd gpucore.KernelDesc) (*computeKernel, error) {
	if kd.Storage > gpucore.MaxStorageBindings {
		return nil, fmt.Errorf("%w: %s declares %d storage slots", gpucore.ErrBindingMismatch, kd.Name, kd.Storage)
	}
	k := &computeKernel{name: kd.Name, storage: kd.Storage, uniforms: kd.Uniforms}

	entries := layoutEntries(kd.Storage, kd.Uniforms)
	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   kd.Name + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout for %s: %w", kd.Name, err)
	}
	k.bgLayout = bgLayout

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            kd.Name + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create pipeline layout for %s: %w", kd.Name, err)
	}
	k.pipelineLayout = pipelineLayout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  kd.Name,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shader,
			EntryPoint: kd.Name,
		},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("%w: create compute pipeline for %s: %w", gpucore.ErrKernelNotFound, kd.Name, err)
	}
	k.pipeline = pipeline

	gpucore.Logger().Debug("wgpu backend: pipeline created",
		"kernel", kd.Name,
		"bindings", len(entries))
	return k, nil
}

// destroy releases the GPU objects in reverse creation order.
func (k *computeKernel) destroy(device hal.Device) {
	if k.pipeline != nil {
		device.DestroyComputePipeline(k.pipeline)
		k.pipeline = nil
	}
	if k.pipelineLayout != nil {
		device.DestroyPipelineLayout(k.pipelineLayout)
		k.pipelineLayout = nil
	}
	if k.bgLayout != nil {
		device.DestroyBindGroupLayout(k.bgLayout)
		k.bgLayout = nil
	}
}

// createShaderModule creates a shader module from WGSL, compiling it to
// SPIR-V first when WithSPIRV is set.
func (b *Backend) createShaderModule(label, wgsl string) (hal.ShaderModule, error) {
	source := hal.ShaderSource{WGSL: wgsl}
	if b.opts.spirv {
		spirv, err := CompileSPIRV(wgsl)
		if err != nil {
			return nil, fmt.Errorf("wgpu: %s: %w", label, err)
		}
		source = hal.ShaderSource{SPIRV: spirv}
	}

	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module %s: %w", label, err)
	}
	return shader, nil
}

// CompileSPIRV compiles WGSL source to SPIR-V words with naga.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirv, nil
}
