//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/integral/backend"
	"github.com/gogpu/integral/gpucore"
)

func init() {
	backend.Register(backend.BackendWGPU, func() (gpucore.Backend, error) {
		return New()
	})
}

// deviceBuffer is the GPU storage behind a gpucore.Buffer.
type deviceBuffer struct {
	buf    hal.Buffer
	width  int
	height int
	size   uint64
}

// deviceUniform is the GPU storage behind a gpucore.Uniform.
type deviceUniform struct {
	buf hal.Buffer
}

// uniformSize is the size of one uniform block in bytes.
const uniformSize = gpucore.UniformWords * 4

// shapesSize is the size of the shapes uniform in bytes.
const shapesSize = gpucore.MaxStorageBindings * gpucore.UniformWords * 4

// Backend is the gogpu/wgpu HAL implementation of gpucore.Backend.
//
// Thread safety: Backend is safe for concurrent use. Submissions are
// serialized on the queue. Batches are not safe for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	submitMu sync.Mutex

	instance hal.Instance // nil for external devices
	device   hal.Device
	queue    hal.Queue
	external bool
	opts     options

	buffers  map[gpucore.BufferID]*deviceBuffer
	uniforms map[gpucore.UniformID]*deviceUniform
	kernels  map[gpucore.KernelID]*computeKernel
	modules  map[*module]struct{}

	transposeShader hal.ShaderModule
	transpose       *computeKernel
	nextID          atomic.Uint64
	closed          bool
}

var _ gpucore.Backend = (*Backend)(nil)

// New opens a GPU through the Vulkan HAL backend. The error wraps ErrNoGPU
// when no adapter is available.
func New(opts ...Option) (*Backend, error) {
	dev, err := openVulkan()
	if err != nil {
		return nil, err
	}
	b, err := newBackend(dev.device, dev.queue, false, opts)
	if err != nil {
		dev.device.Destroy()
		dev.instance.Destroy()
		return nil, err
	}
	b.instance = dev.instance
	logDevice(dev.name, false, b.opts)
	return b, nil
}

// NewWithDevice creates a backend on a device owned by the caller.
// Close releases the backend's resources but not the device.
func NewWithDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: device and queue are required")
	}
	b, err := newBackend(device, queue, true, opts)
	if err != nil {
		return nil, err
	}
	logDevice("external", true, b.opts)
	return b, nil
}

// NewFromProvider creates a backend on the device of a shared GPU context,
// such as a gogpu window. The provider must expose its HAL device and
// queue through HalDevice() and HalQueue(); otherwise the error wraps
// ErrNoHALProvider.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	if provider == nil {
		return nil, ErrNoHALProvider
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, err
	}
	return NewWithDevice(device, queue, opts...)
}

func newBackend(device hal.Device, queue hal.Queue, external bool, opts []Option) (*Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Backend{
		device:   device,
		queue:    queue,
		external: external,
		opts:     o,
		buffers:  make(map[gpucore.BufferID]*deviceBuffer),
		uniforms: make(map[gpucore.UniformID]*deviceUniform),
		kernels:  make(map[gpucore.KernelID]*computeKernel),
		modules:  make(map[*module]struct{}),
	}
	if err := b.initTranspose(); err != nil {
		return nil, err
	}
	return b, nil
}

// Name returns "wgpu".
func (b *Backend) Name() string { return backend.BackendWGPU }

// Device returns the HAL device used by the backend.
func (b *Backend) Device() hal.Device { return b.device }

func (b *Backend) id() uint64 { return b.nextID.Add(1) }

// NewModule compiles desc into one shader module and a compute pipeline
// per kernel.
func (b *Backend) NewModule(desc *gpucore.ModuleDesc) (gpucore.Module, error) {
	if desc == nil || desc.WGSL == "" {
		return nil, fmt.Errorf("wgpu: module requires WGSL source")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, gpucore.ErrClosed
	}

	shader, err := b.createShaderModule(desc.Label, desc.WGSL)
	if err != nil {
		return nil, err
	}

	m := &module{
		backend: b,
		label:   desc.Label,
		shader:  shader,
		kernels: make(map[string]gpucore.Kernel, len(desc.Kernels)),
	}
	for _, kd := range desc.Kernels {
		k, err := newComputeKernel(b.device, shader, kd)
		if err != nil {
			m.releaseLocked()
			return nil, fmt.Errorf("wgpu: module %q: %w", desc.Label, err)
		}
		id := gpucore.KernelID(b.id())
		b.kernels[id] = k
		m.kernels[kd.Name] = gpucore.Kernel{ID: id, Desc: kd}
	}
	b.modules[m] = struct{}{}

	gpucore.Logger().Info("wgpu backend: module created",
		"module", desc.Label,
		"kernels", len(desc.Kernels),
		"spirv", b.opts.spirv)
	return m, nil
}

// CreateBuffer allocates a zero-filled storage buffer of width*height floats.
func (b *Backend) CreateBuffer(width, height int, label string) (gpucore.Buffer, error) {
	if width <= 0 || height <= 0 {
		return gpucore.Buffer{}, fmt.Errorf("%w: %s %dx%d", gpucore.ErrInvalidDimensions, label, width, height)
	}
	size := uint64(width) * uint64(height) * 4 //nolint:gosec // positive dimensions

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.Buffer{}, gpucore.ErrClosed
	}

	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.Buffer{}, fmt.Errorf("wgpu: create buffer %s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, make([]byte, size))

	id := gpucore.BufferID(b.id())
	b.buffers[id] = &deviceBuffer{buf: buf, width: width, height: height, size: size}
	return gpucore.Buffer{ID: id, Width: width, Height: height, Label: label}, nil
}

// DestroyBuffer releases a buffer.
func (b *Backend) DestroyBuffer(buf gpucore.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, ok := b.buffers[buf.ID]
	if !ok {
		return
	}
	delete(b.buffers, buf.ID)
	b.device.DestroyBuffer(db.buf)
}

// lookup returns the device storage of buf. Callers hold b.mu.
func (b *Backend) lookup(buf gpucore.Buffer) (*deviceBuffer, error) {
	db, ok := b.buffers[buf.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q (id %d)", gpucore.ErrUnknownBuffer, buf.Label, buf.ID)
	}
	if db.width != buf.Width || db.height != buf.Height {
		return nil, fmt.Errorf("%w: %q is %dx%d, handle says %dx%d",
			gpucore.ErrSizeMismatch, buf.Label, db.width, db.height, buf.Width, buf.Height)
	}
	return db, nil
}

// WriteBuffer uploads data into the buffer.
func (b *Backend) WriteBuffer(buf gpucore.Buffer, data []float32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.lookup(buf)
	if err != nil {
		return err
	}
	if len(data) != db.width*db.height {
		return fmt.Errorf("%w: writing %d values into %q of %d",
			gpucore.ErrSizeMismatch, len(data), buf.Label, db.width*db.height)
	}
	b.queue.WriteBuffer(db.buf, 0, float32sToBytes(data))
	return nil
}

// ReadBuffer copies the buffer through a staging buffer and waits for the
// copy to finish.
func (b *Backend) ReadBuffer(buf gpucore.Buffer) ([]float32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.lookup(buf)
	if err != nil {
		return nil, err
	}

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: buf.Label + "_staging",
		Size:  db.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(db.buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: db.size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	if err := b.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}

	readback := make([]byte, db.size)
	if err := b.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return bytesToFloat32s(readback), nil
}

// CreateUniform allocates a 16-byte uniform buffer holding words.
func (b *Backend) CreateUniform(words [gpucore.UniformWords]uint32, label string) (gpucore.Uniform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.Uniform{}, gpucore.ErrClosed
	}

	buf, err := b.createUniformBuffer(label, uniformSize, uint32sToBytes(words[:]))
	if err != nil {
		return gpucore.Uniform{}, err
	}
	id := gpucore.UniformID(b.id())
	b.uniforms[id] = &deviceUniform{buf: buf}
	return gpucore.Uniform{ID: id, Words: words, Label: label}, nil
}

func (b *Backend) createUniformBuffer(label string, size uint64, contents []byte) (hal.Buffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create uniform buffer %s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, contents)
	return buf, nil
}

// DestroyUniform releases a uniform block.
func (b *Backend) DestroyUniform(u gpucore.Uniform) {
	b.mu.Lock()
	defer b.mu.Unlock()
	du, ok := b.uniforms[u.ID]
	if !ok {
		return
	}
	delete(b.uniforms, u.ID)
	b.device.DestroyBuffer(du.buf)
}

// BeginBatch starts recording a batch.
func (b *Backend) BeginBatch(label string) gpucore.Batch {
	return &batch{backend: b, label: label}
}

// submitAndWait submits one command buffer and waits for the GPU.
func (b *Backend) submitAndWait(cmdBuf hal.CommandBuffer) error {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, b.opts.timeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrTimeout, b.opts.timeout)
	}
	return nil
}

// Close releases every resource created by the backend. A device passed
// to NewWithDevice or NewFromProvider stays open.
// Close is safe to call multiple times.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for id, db := range b.buffers {
		b.device.DestroyBuffer(db.buf)
		delete(b.buffers, id)
	}
	for id, du := range b.uniforms {
		b.device.DestroyBuffer(du.buf)
		delete(b.uniforms, id)
	}
	for m := range b.modules {
		m.releaseLocked()
	}
	b.destroyTranspose()

	if !b.external {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
			b.instance = nil
		}
	}
	gpucore.Logger().Debug("wgpu backend: closed", "external_device", b.external)
}

func float32sToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32s(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func uint32sToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
