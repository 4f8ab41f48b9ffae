//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/integral/gpucore"
)

// module is a compiled shader module and the pipelines of its kernels.
type module struct {
	backend *Backend
	label   string
	shader  hal.ShaderModule
	kernels map[string]gpucore.Kernel
}

var _ gpucore.Module = (*module)(nil)

func (m *module) Label() string { return m.label }

func (m *module) Kernel(name string) (gpucore.Kernel, error) {
	k, ok := m.kernels[name]
	if !ok {
		return gpucore.Kernel{}, fmt.Errorf("%w: %s in module %q", gpucore.ErrKernelNotFound, name, m.label)
	}
	return k, nil
}

func (m *module) Close() {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	m.releaseLocked()
}

// releaseLocked destroys the pipelines and the shader module.
// Callers hold backend.mu.
func (m *module) releaseLocked() {
	b := m.backend
	for name, k := range m.kernels {
		if ck, ok := b.kernels[k.ID]; ok {
			ck.destroy(b.device)
			delete(b.kernels, k.ID)
		}
		delete(m.kernels, name)
	}
	if m.shader != nil {
		b.device.DestroyShaderModule(m.shader)
		m.shader = nil
	}
	delete(b.modules, m)
}
