package cpu

import (
	"fmt"

	"github.com/gogpu/integral/gpucore"
)

// module is a set of host kernels registered with a Backend.
type module struct {
	backend *Backend
	label   string
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

// releaseLocked unregisters the kernels. Callers hold backend.mu.
func (m *module) releaseLocked() {
	for name, k := range m.kernels {
		delete(m.backend.kernels, k.ID)
		delete(m.kernels, name)
	}
}
