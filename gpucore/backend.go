package gpucore

import (
	"errors"
	"fmt"
)

// Package errors shared by all backends.
var (
	// ErrKernelNotFound is returned when a module does not expose a
	// requested entry point.
	ErrKernelNotFound = errors.New("gpucore: kernel not found")

	// ErrInvalidDimensions is returned when a buffer size is not positive.
	ErrInvalidDimensions = errors.New("gpucore: invalid dimensions")

	// ErrUnknownBuffer is returned when a buffer ID is not owned by the backend.
	ErrUnknownBuffer = errors.New("gpucore: unknown buffer")

	// ErrUnknownUniform is returned when a uniform ID is not owned by the backend.
	ErrUnknownUniform = errors.New("gpucore: unknown uniform")

	// ErrBindingMismatch is returned when a dispatch binds a different number
	// of resources than its kernel declares.
	ErrBindingMismatch = errors.New("gpucore: binding mismatch")

	// ErrSizeMismatch is returned when host data does not match a buffer.
	ErrSizeMismatch = errors.New("gpucore: size mismatch")

	// ErrBatchDone is returned when a batch is used after Submit or Discard.
	ErrBatchDone = errors.New("gpucore: batch already submitted")

	// ErrClosed is returned when a closed backend or module is used.
	ErrClosed = errors.New("gpucore: closed")
)

// Backend abstracts over parallel compute substrates.
//
// A backend allocates 2-D float32 buffers and small uniform blocks,
// compiles modules into named kernels, and records dispatches into
// batches that are submitted and waited on as a unit.
//
// Implementations must be safe for concurrent use. A single batch is not.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource referenced by a pending batch is undefined behavior
type Backend interface {
	// Name returns the registry name of the backend, e.g. "cpu".
	Name() string

	// NewModule compiles a program module and resolves its entry points.
	NewModule(desc *ModuleDesc) (Module, error)

	// CreateBuffer allocates a zero-filled width x height float32 buffer.
	CreateBuffer(width, height int, label string) (Buffer, error)

	// DestroyBuffer releases a buffer. Unknown buffers are ignored.
	DestroyBuffer(b Buffer)

	// WriteBuffer copies len(b) = Width*Height values into the buffer.
	WriteBuffer(b Buffer, data []float32) error

	// ReadBuffer copies the buffer contents back to the host.
	// This may cause a device-host synchronization stall.
	ReadBuffer(b Buffer) ([]float32, error)

	// CreateUniform allocates a uniform block holding words.
	CreateUniform(words [UniformWords]uint32, label string) (Uniform, error)

	// DestroyUniform releases a uniform block. Unknown uniforms are ignored.
	DestroyUniform(u Uniform)

	// BeginBatch starts recording a batch of commands.
	BeginBatch(label string) Batch

	// Close releases every resource owned by the backend.
	Close()
}

// Batch records commands for one submission.
//
// Commands execute in recording order. Recording methods never fail;
// the first recording error is kept and returned by Submit, and later
// commands are dropped.
//
// The batch is single-use and cannot be reused after Submit or Discard.
type Batch interface {
	// Dispatch records a kernel dispatch.
	Dispatch(d *DispatchDesc)

	// Transpose records dst(x, y) = src(y, x). dst must be
	// src.Height x src.Width.
	Transpose(src, dst Buffer)

	// Submit executes the recorded commands and waits for completion.
	Submit() error

	// Discard drops the recorded commands without executing them.
	Discard()
}

// Module is a compiled program exposing named kernels.
type Module interface {
	// Label returns the module debug label.
	Label() string

	// Kernel resolves an entry point by name. The error wraps
	// ErrKernelNotFound when the module has no such entry point.
	Kernel(name string) (Kernel, error)

	// Close releases the compiled kernels.
	Close()
}

// HostMapper is implemented by backends whose buffers live in host memory.
// HostData returns the backing slice without copying; writes through it
// are visible to subsequent dispatches.
type HostMapper interface {
	HostData(b Buffer) ([]float32, bool)
}

// ValidateDispatch checks that d binds what its kernel declares.
func ValidateDispatch(d *DispatchDesc) error {
	if !d.Kernel.Valid() {
		return fmt.Errorf("%w: dispatch %q has no kernel", ErrKernelNotFound, d.Label)
	}
	k := d.Kernel.Desc
	if len(d.Storage) != k.Storage || k.Storage > MaxStorageBindings {
		return fmt.Errorf("%w: %s binds %d storage buffers, kernel declares %d",
			ErrBindingMismatch, k.Name, len(d.Storage), k.Storage)
	}
	if len(d.Uniforms) != k.Uniforms {
		return fmt.Errorf("%w: %s binds %d uniforms, kernel declares %d",
			ErrBindingMismatch, k.Name, len(d.Uniforms), k.Uniforms)
	}
	for i, b := range d.Storage {
		if !b.Valid() {
			return fmt.Errorf("%w: %s storage slot %d", ErrUnknownBuffer, k.Name, i)
		}
	}
	for i, u := range d.Uniforms {
		if !u.Valid() {
			return fmt.Errorf("%w: %s uniform slot %d", ErrUnknownUniform, k.Name, i)
		}
	}
	return nil
}

// ValidateTranspose checks that dst has the swapped dimensions of src.
func ValidateTranspose(src, dst Buffer) error {
	if !src.Valid() || !dst.Valid() {
		return fmt.Errorf("%w: transpose %q -> %q", ErrUnknownBuffer, src.Label, dst.Label)
	}
	if src.Width != dst.Height || src.Height != dst.Width {
		return fmt.Errorf("%w: transpose %dx%d into %dx%d",
			ErrSizeMismatch, src.Width, src.Height, dst.Width, dst.Height)
	}
	return nil
}

// ShapeWords packs the dimensions of the storage slots into the layout of
// the WGSL shapes uniform: one vec4<u32>(width, height, 0, 0) per slot.
func ShapeWords(storage []Buffer) [MaxStorageBindings * UniformWords]uint32 {
	var words [MaxStorageBindings * UniformWords]uint32
	for i, b := range storage {
		if i >= MaxStorageBindings {
			break
		}
		words[i*UniformWords] = uint32(b.Width)    //nolint:gosec // dimensions are bounded by the caller
		words[i*UniformWords+1] = uint32(b.Height) //nolint:gosec // dimensions are bounded by the caller
	}
	return words
}
