package cpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/integral/backend"
	"github.com/gogpu/integral/gpucore"
	"github.com/gogpu/integral/internal/parallel"
)

func init() {
	backend.Register(backend.BackendCPU, func() (gpucore.Backend, error) {
		return New(), nil
	})
}

// hostBuffer is the storage behind a gpucore.Buffer.
type hostBuffer struct {
	data   []float32
	width  int
	height int
}

// Backend is the host implementation of gpucore.Backend.
//
// Thread safety: Backend is safe for concurrent use. Batches are not.
type Backend struct {
	mu       sync.RWMutex
	pool     *parallel.WorkerPool
	buffers  map[gpucore.BufferID]*hostBuffer
	uniforms map[gpucore.UniformID][gpucore.UniformWords]uint32
	kernels  map[gpucore.KernelID]gpucore.KernelDesc
	nextID   atomic.Uint64
	closed   bool
}

var (
	_ gpucore.Backend    = (*Backend)(nil)
	_ gpucore.HostMapper = (*Backend)(nil)
)

// New creates a CPU backend and starts its worker pool.
func New(opts ...Option) *Backend {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Backend{
		pool:     parallel.NewWorkerPool(o.workers),
		buffers:  make(map[gpucore.BufferID]*hostBuffer),
		uniforms: make(map[gpucore.UniformID][gpucore.UniformWords]uint32),
		kernels:  make(map[gpucore.KernelID]gpucore.KernelDesc),
	}
	gpucore.Logger().Info("cpu backend: initialized", "workers", b.pool.Workers())
	return b
}

// Name returns "cpu".
func (b *Backend) Name() string { return backend.BackendCPU }

// Workers returns the number of worker goroutines executing thread-groups.
func (b *Backend) Workers() int { return b.pool.Workers() }

func (b *Backend) id() uint64 { return b.nextID.Add(1) }

// NewModule registers the host kernels of desc. Every entry point must
// carry a host implementation.
func (b *Backend) NewModule(desc *gpucore.ModuleDesc) (gpucore.Module, error) {
	if desc == nil {
		return nil, fmt.Errorf("cpu: module descriptor is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, gpucore.ErrClosed
	}

	m := &module{
		backend: b,
		label:   desc.Label,
		kernels: make(map[string]gpucore.Kernel, len(desc.Kernels)),
	}
	for _, k := range desc.Kernels {
		if k.Host == nil {
			m.releaseLocked()
			return nil, fmt.Errorf("%w: %s has no host implementation", gpucore.ErrKernelNotFound, k.Name)
		}
		if k.Storage > gpucore.MaxStorageBindings {
			m.releaseLocked()
			return nil, fmt.Errorf("%w: %s declares %d storage slots", gpucore.ErrBindingMismatch, k.Name, k.Storage)
		}
		id := gpucore.KernelID(b.id())
		b.kernels[id] = k
		m.kernels[k.Name] = gpucore.Kernel{ID: id, Desc: k}
	}

	gpucore.Logger().Debug("cpu backend: module created",
		"module", desc.Label,
		"kernels", len(desc.Kernels))
	return m, nil
}

// CreateBuffer allocates a zero-filled host buffer.
func (b *Backend) CreateBuffer(width, height int, label string) (gpucore.Buffer, error) {
	if width <= 0 || height <= 0 {
		return gpucore.Buffer{}, fmt.Errorf("%w: %s %dx%d", gpucore.ErrInvalidDimensions, label, width, height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.Buffer{}, gpucore.ErrClosed
	}

	id := gpucore.BufferID(b.id())
	b.buffers[id] = &hostBuffer{
		data:   make([]float32, width*height),
		width:  width,
		height: height,
	}
	return gpucore.Buffer{ID: id, Width: width, Height: height, Label: label}, nil
}

// DestroyBuffer releases a buffer.
func (b *Backend) DestroyBuffer(buf gpucore.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, buf.ID)
}

// lookup returns the host storage of buf. Callers hold b.mu.
func (b *Backend) lookup(buf gpucore.Buffer) (*hostBuffer, error) {
	hb, ok := b.buffers[buf.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q (id %d)", gpucore.ErrUnknownBuffer, buf.Label, buf.ID)
	}
	if hb.width != buf.Width || hb.height != buf.Height {
		return nil, fmt.Errorf("%w: %q is %dx%d, handle says %dx%d",
			gpucore.ErrSizeMismatch, buf.Label, hb.width, hb.height, buf.Width, buf.Height)
	}
	return hb, nil
}

// WriteBuffer copies data into the buffer.
func (b *Backend) WriteBuffer(buf gpucore.Buffer, data []float32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hb, err := b.lookup(buf)
	if err != nil {
		return err
	}
	if len(data) != len(hb.data) {
		return fmt.Errorf("%w: writing %d values into %q of %d", gpucore.ErrSizeMismatch, len(data), buf.Label, len(hb.data))
	}
	copy(hb.data, data)
	return nil
}

// ReadBuffer returns a copy of the buffer contents.
func (b *Backend) ReadBuffer(buf gpucore.Buffer) ([]float32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hb, err := b.lookup(buf)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(hb.data))
	copy(out, hb.data)
	return out, nil
}

// HostData returns the backing slice of buf without copying.
func (b *Backend) HostData(buf gpucore.Buffer) ([]float32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hb, err := b.lookup(buf)
	if err != nil {
		return nil, false
	}
	return hb.data, true
}

// CreateUniform stores a uniform block.
func (b *Backend) CreateUniform(words [gpucore.UniformWords]uint32, label string) (gpucore.Uniform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.Uniform{}, gpucore.ErrClosed
	}

	id := gpucore.UniformID(b.id())
	b.uniforms[id] = words
	return gpucore.Uniform{ID: id, Words: words, Label: label}, nil
}

// DestroyUniform releases a uniform block.
func (b *Backend) DestroyUniform(u gpucore.Uniform) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.uniforms, u.ID)
}

// BeginBatch starts recording a batch.
func (b *Backend) BeginBatch(label string) gpucore.Batch {
	return &batch{backend: b, label: label}
}

// Close releases all buffers and stops the worker pool.
// Close is safe to call multiple times.
func (b *Backend) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.buffers = make(map[gpucore.BufferID]*hostBuffer)
	b.uniforms = make(map[gpucore.UniformID][gpucore.UniformWords]uint32)
	b.kernels = make(map[gpucore.KernelID]gpucore.KernelDesc)
	b.mu.Unlock()

	b.pool.Close()
}
