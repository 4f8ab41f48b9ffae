package gpucore

// Resource IDs
//
// These opaque IDs represent backend resources. Each backend maintains a
// mapping between IDs and its actual resources. IDs are uint64 to
// accommodate various backend handle sizes.

// BufferID is an opaque handle to a 2-D float32 storage buffer.
type BufferID uint64

// UniformID is an opaque handle to a small device-visible parameter block.
type UniformID uint64

// KernelID is an opaque handle to a resolved compute kernel.
type KernelID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Binding layout shared by every backend.
//
// WGSL kernels see binding(0) as the shapes uniform, bindings
// 1..MaxStorageBindings as storage slots and the bindings after that as
// uniforms, all in group(0). Host kernels see the same slots through Group.
const (
	// MaxStorageBindings is the number of storage slots a kernel may use.
	MaxStorageBindings = 4

	// ShapesBinding is the binding index of the shapes uniform.
	ShapesBinding = 0

	// FirstStorageBinding is the binding index of storage slot 0.
	FirstStorageBinding = 1

	// FirstUniformBinding is the binding index of uniform slot 0.
	FirstUniformBinding = FirstStorageBinding + MaxStorageBindings

	// UniformWords is the size of one uniform block in u32 words.
	// A block maps to a single vec4<u32> in WGSL.
	UniformWords = 4
)

// Size is a three-dimensional extent used for grids and workgroups.
type Size struct {
	X, Y, Z uint32
}

// Count returns X*Y*Z, treating zero components as one.
func (s Size) Count() uint64 {
	n := uint64(1)
	for _, v := range [3]uint32{s.X, s.Y, s.Z} {
		if v > 1 {
			n *= uint64(v)
		}
	}
	return n
}

// Buffer is a row-major 2-D float32 buffer owned by a Backend.
// The zero Buffer is invalid.
type Buffer struct {
	ID     BufferID
	Width  int
	Height int
	Label  string
}

// Valid reports whether the buffer refers to an allocated resource.
func (b Buffer) Valid() bool {
	return b.ID != InvalidID && b.Width > 0 && b.Height > 0
}

// Len returns the number of elements in the buffer.
func (b Buffer) Len() int {
	return b.Width * b.Height
}

// SameSize reports whether b and o have identical dimensions.
func (b Buffer) SameSize(o Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height
}

// Uniform is a device-visible block of UniformWords u32 values.
type Uniform struct {
	ID    UniformID
	Words [UniformWords]uint32
	Label string
}

// Valid reports whether the uniform refers to an allocated resource.
func (u Uniform) Valid() bool {
	return u.ID != InvalidID
}

// View is the host-side view of a storage slot handed to host kernels.
type View struct {
	Data   []float32
	Width  int
	Height int
}

// Group describes one thread-group invocation of a host kernel.
//
// A host kernel runs every lane of its group on the calling goroutine, so
// group-local scratch memory is simply a local variable of the kernel.
// Groups of the same dispatch run concurrently and must only write
// disjoint elements.
type Group struct {
	// ID is the workgroup coordinate within the dispatch grid.
	ID Size

	// Grid is the dispatch grid.
	Grid Size

	// Threads is the kernel's workgroup size.
	Threads Size

	// Storage holds the bound storage slots in binding order.
	Storage []View

	// Uniforms holds the bound uniform blocks in binding order.
	Uniforms [][UniformWords]uint32
}

// HostKernel is a kernel body executed by CPU backends.
type HostKernel func(g *Group)

// KernelDesc describes one entry point of a compute module.
type KernelDesc struct {
	// Name is the entry point name, e.g. "ii_scan".
	Name string

	// GroupSize must match @workgroup_size of the WGSL entry point.
	GroupSize Size

	// Storage is the number of storage slots the kernel binds.
	Storage int

	// Uniforms is the number of uniform blocks the kernel binds.
	Uniforms int

	// Host is the CPU implementation of the kernel. Backends that only
	// execute WGSL ignore it.
	Host HostKernel
}

// ModuleDesc describes a compute program module.
type ModuleDesc struct {
	// Label is an optional debug label.
	Label string

	// WGSL is the shader source containing every entry point in Kernels.
	WGSL string

	// Kernels lists the entry points the module exposes.
	Kernels []KernelDesc
}

// Kernel returns the descriptor of the named entry point.
func (d *ModuleDesc) Kernel(name string) (KernelDesc, bool) {
	for _, k := range d.Kernels {
		if k.Name == name {
			return k, true
		}
	}
	return KernelDesc{}, false
}

// Kernel is a resolved entry point of a Module.
type Kernel struct {
	ID   KernelID
	Desc KernelDesc
}

// Valid reports whether the kernel was resolved.
func (k Kernel) Valid() bool {
	return k.ID != InvalidID
}

// DispatchDesc describes one recorded kernel dispatch.
type DispatchDesc struct {
	// Label is an optional debug label.
	Label string

	// Kernel is the resolved kernel to run.
	Kernel Kernel

	// Storage are the buffers bound to the storage slots, in order.
	Storage []Buffer

	// Uniforms are the uniform blocks bound to the uniform slots, in order.
	Uniforms []Uniform

	// Groups is the number of workgroups in each dimension.
	Groups Size
}

// CeilDiv returns ceil(n/d) for positive d, or 0 when n <= 0.
func CeilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
