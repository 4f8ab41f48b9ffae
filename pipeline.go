package integral

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/integral/gpucore"
)

// Pipeline computes integral images of a fixed size on one backend.
//
// A Pipeline owns ten intermediate buffers sized to its current
// dimensions. A call with different dimensions reallocates all of them,
// which is expensive; callers that keep their image size stable never
// reallocate after construction.
//
// Thread safety: a Pipeline records at most one computation at a time.
// Its own state is guarded by a mutex, but batches recorded with Encode
// share the intermediates and must be submitted one after the other.
type Pipeline struct {
	mu      sync.Mutex
	backend gpucore.Backend
	label   string

	scan  gpucore.Kernel
	fixup gpucore.Kernel
	box   gpucore.Kernel

	inclusive bool
	mode      gpucore.Uniform // mirrors inclusive for the block scans
	exclusive gpucore.Uniform // fixed exclusive mode for the aux scans

	width  int
	height int
	bufs   intermediates
	closed bool
}

// intermediates are the buffers of one row pass and one column pass.
// The T suffix marks buffers of the transposed (column) pass.
type intermediates struct {
	aux          gpucore.Buffer
	auxScanned   gpucore.Buffer
	intermediary gpucore.Buffer
	out          gpucore.Buffer

	inputT        gpucore.Buffer
	auxT          gpucore.Buffer
	auxScannedT   gpucore.Buffer
	intermediaryT gpucore.Buffer
	outT          gpucore.Buffer

	// dummy stands in for the aux output when scanning an aux buffer.
	dummy gpucore.Buffer
}

func (in *intermediates) all() []*gpucore.Buffer {
	return []*gpucore.Buffer{
		&in.aux, &in.auxScanned, &in.intermediary, &in.out,
		&in.inputT, &in.auxT, &in.auxScannedT, &in.intermediaryT, &in.outT,
		&in.dummy,
	}
}

// auxWidth returns the number of blocks covering an axis of length n.
func auxWidth(n int) int {
	return max(gpucore.CeilDiv(n, BlockSize), 1)
}

// New creates a pipeline for width x height images.
//
// m must expose the ii_scan, ii_fixup and ii_boxintegral kernels; use
// NewModule to compile them. The error wraps gpucore.ErrKernelNotFound
// when one is missing.
//
// New panics with a *PreconditionError if height < 2 or either axis
// exceeds MaxAxis.
func New(b gpucore.Backend, m gpucore.Module, width, height int, opts ...Option) (*Pipeline, error) {
	checkAxes("New", width, height)

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		backend:   b,
		label:     o.label,
		inclusive: o.inclusive,
	}

	var err error
	if p.scan, err = m.Kernel(KernelScan); err != nil {
		return nil, fmt.Errorf("integral: resolve %s: %w", KernelScan, err)
	}
	if p.fixup, err = m.Kernel(KernelFixup); err != nil {
		return nil, fmt.Errorf("integral: resolve %s: %w", KernelFixup, err)
	}
	if p.box, err = m.Kernel(KernelBoxIntegral); err != nil {
		return nil, fmt.Errorf("integral: resolve %s: %w", KernelBoxIntegral, err)
	}

	if p.exclusive, err = b.CreateUniform(modeWords(false), p.label+".exclusive"); err != nil {
		return nil, fmt.Errorf("integral: create mode uniform: %w", err)
	}
	if p.mode, err = b.CreateUniform(modeWords(p.inclusive), p.label+".mode"); err != nil {
		p.destroyUniforms()
		return nil, fmt.Errorf("integral: create mode uniform: %w", err)
	}
	if err := p.allocate(width, height); err != nil {
		p.destroyUniforms()
		return nil, err
	}

	Logger().Info("integral: pipeline created",
		"backend", b.Name(),
		"width", width,
		"height", height,
		"inclusive", p.inclusive)
	return p, nil
}

func modeWords(inclusive bool) [gpucore.UniformWords]uint32 {
	var w [gpucore.UniformWords]uint32
	if inclusive {
		w[0] = 1
	}
	return w
}

// allocate creates every intermediate for width x height. On failure the
// buffers created so far are released.
func (p *Pipeline) allocate(width, height int) error {
	type slot struct {
		dst  *gpucore.Buffer
		name string
		w, h int
	}
	slots := []slot{
		{&p.bufs.aux, "aux", auxWidth(width), height},
		{&p.bufs.auxScanned, "auxScanned", auxWidth(width), height},
		{&p.bufs.intermediary, "intermediary", width, height},
		{&p.bufs.out, "out", width, height},
		{&p.bufs.inputT, "inputT", height, width},
		{&p.bufs.auxT, "auxT", auxWidth(height), width},
		{&p.bufs.auxScannedT, "auxScannedT", auxWidth(height), width},
		{&p.bufs.intermediaryT, "intermediaryT", height, width},
		{&p.bufs.outT, "outT", height, width},
		{&p.bufs.dummy, "dummy", 1, 1},
	}

	for _, s := range slots {
		buf, err := p.backend.CreateBuffer(s.w, s.h, p.label+"."+s.name)
		if err != nil {
			p.release()
			return fmt.Errorf("integral: allocate %s %dx%d: %w", s.name, s.w, s.h, err)
		}
		*s.dst = buf
	}
	p.width, p.height = width, height
	return nil
}

// release destroys every intermediate.
func (p *Pipeline) release() {
	for _, buf := range p.bufs.all() {
		if buf.Valid() {
			p.backend.DestroyBuffer(*buf)
		}
		*buf = gpucore.Buffer{}
	}
	p.width, p.height = 0, 0
}

func (p *Pipeline) destroyUniforms() {
	for _, u := range []*gpucore.Uniform{&p.mode, &p.exclusive} {
		if u.Valid() {
			p.backend.DestroyUniform(*u)
		}
		*u = gpucore.Uniform{}
	}
}

// resize reallocates the intermediates when the dimensions change.
// Callers hold p.mu.
func (p *Pipeline) resize(width, height int) error {
	if width == p.width && height == p.height {
		return nil
	}
	Logger().Info("integral: reallocating intermediates",
		"from_width", p.width,
		"from_height", p.height,
		"width", width,
		"height", height)
	p.release()
	return p.allocate(width, height)
}

var errClosed = errors.New("integral: pipeline closed")

// Encode records the full integral image computation of src into dst:
// the row pass, a transpose, the column pass and a transpose back.
// Nothing runs until the batch is submitted.
//
// Encode panics with a *PreconditionError if src and dst differ in size,
// height < 2 or either axis exceeds MaxAxis. The returned error reports a
// failed reallocation of the intermediates.
func (p *Pipeline) Encode(batch gpucore.Batch, src, dst gpucore.Buffer) error {
	if !src.SameSize(dst) {
		precondition("ComputeIntegral", "source %dx%d and destination %dx%d differ",
			src.Width, src.Height, dst.Width, dst.Height)
	}
	checkAxes("ComputeIntegral", src.Width, src.Height)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	if err := p.resize(src.Width, src.Height); err != nil {
		return err
	}

	b := &p.bufs
	p.encodePass(batch, src, b.aux, b.auxScanned, b.intermediary, b.out)
	batch.Transpose(b.out, b.inputT)
	p.encodePass(batch, b.inputT, b.auxT, b.auxScannedT, b.intermediaryT, b.outT)
	batch.Transpose(b.outT, dst)

	Logger().Debug("integral: encoded",
		"width", p.width,
		"height", p.height,
		"inclusive", p.inclusive)
	return nil
}

// encodePass records block scan, aux scan and fixup along the rows of in.
func (p *Pipeline) encodePass(batch gpucore.Batch, in, aux, auxScanned, scanned, out gpucore.Buffer) {
	rows := uint32(in.Height)                              //nolint:gosec // bounded by MaxAxis
	blocks := uint32(gpucore.CeilDiv(in.Width, BlockSize)) //nolint:gosec // bounded by BlockSize

	batch.Dispatch(&gpucore.DispatchDesc{
		Label:    p.label + ".scan",
		Kernel:   p.scan,
		Storage:  []gpucore.Buffer{in, aux, scanned},
		Uniforms: []gpucore.Uniform{p.mode},
		Groups:   gpucore.Size{X: blocks, Y: rows, Z: 1},
	})
	batch.Dispatch(&gpucore.DispatchDesc{
		Label:    p.label + ".auxscan",
		Kernel:   p.scan,
		Storage:  []gpucore.Buffer{aux, p.bufs.dummy, auxScanned},
		Uniforms: []gpucore.Uniform{p.exclusive},
		Groups:   gpucore.Size{X: 1, Y: rows, Z: 1},
	})
	batch.Dispatch(&gpucore.DispatchDesc{
		Label:   p.label + ".fixup",
		Kernel:  p.fixup,
		Storage: []gpucore.Buffer{scanned, auxScanned, out},
		Groups:  gpucore.Size{X: blocks, Y: rows, Z: 1},
	})
}

// ComputeIntegral writes the integral image of src into dst and waits for
// the backend to finish. See Encode for the preconditions.
func (p *Pipeline) ComputeIntegral(src, dst gpucore.Buffer) error {
	batch := p.backend.BeginBatch(p.label + ".compute")
	if err := p.Encode(batch, src, dst); err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Submit(); err != nil {
		return fmt.Errorf("integral: compute: %w", err)
	}
	return nil
}

// SetInclusive selects the scan mode of subsequent computations.
//
// Every call destroys and recreates the device-visible mode uniform, so
// the flag should be set once per mode change rather than per call.
// Batches already encoded keep the uniform they were recorded with until
// they are submitted; do not call SetInclusive while one is pending.
func (p *Pipeline) SetInclusive(inclusive bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}

	u, err := p.backend.CreateUniform(modeWords(inclusive), p.label+".mode")
	if err != nil {
		return fmt.Errorf("integral: rebuild mode uniform: %w", err)
	}
	if p.mode.Valid() {
		p.backend.DestroyUniform(p.mode)
	}
	p.mode = u
	p.inclusive = inclusive
	return nil
}

// Inclusive reports the current scan mode.
func (p *Pipeline) Inclusive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inclusive
}

// Width returns the width the intermediates are currently sized for.
func (p *Pipeline) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

// Height returns the height the intermediates are currently sized for.
func (p *Pipeline) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

// Close releases the intermediates and uniforms. The module and backend
// are owned by the caller. Close is safe to call multiple times.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.release()
	p.destroyUniforms()
}
