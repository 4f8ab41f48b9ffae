package integral

import (
	"fmt"

	"github.com/gogpu/integral/gpucore"
)

// boxWords packs a box query into the ii_boxintegral parameter block.
// Extents are clamped to the image so row+rows cannot overflow in the
// kernel; clamping does not change the clipped rectangle.
func boxWords(img gpucore.Buffer, row, col, rows, cols int) [gpucore.UniformWords]uint32 {
	row = min(row, img.Height)
	col = min(col, img.Width)
	rows = max(min(rows, img.Height), 0)
	cols = max(min(cols, img.Width), 0)
	return [gpucore.UniformWords]uint32{
		uint32(row),  //nolint:gosec // 0 <= row <= MaxAxis
		uint32(col),  //nolint:gosec // 0 <= col <= MaxAxis
		uint32(rows), //nolint:gosec // 0 <= rows <= MaxAxis
		uint32(cols), //nolint:gosec // 0 <= cols <= MaxAxis
	}
}

func checkBox(op string, integral gpucore.Buffer, row, col int) {
	if row < 0 || col < 0 {
		precondition(op, "negative box origin (%d, %d)", row, col)
	}
	if !integral.Valid() {
		precondition(op, "invalid integral image %q", integral.Label)
	}
}

// EncodeBoxIntegral records a query for the sum of the source image over
// rows [row, row+rows) and columns [col, col+cols), writing it to out[0].
//
// integral must hold an inclusive integral image. The rectangle is
// clipped to the image; an empty rectangle sums to 0. params describes
// the rectangle and comes from NewBoxParams. BoxIntegral wraps the whole
// sequence for a single query.
//
// EncodeBoxIntegral panics with a *PreconditionError if out is not a
// single element.
func (p *Pipeline) EncodeBoxIntegral(batch gpucore.Batch, integral gpucore.Buffer, params gpucore.Uniform, out gpucore.Buffer) {
	if out.Len() != 1 {
		precondition("BoxIntegral", "result buffer must hold one element, got %dx%d", out.Width, out.Height)
	}
	batch.Dispatch(&gpucore.DispatchDesc{
		Label:    p.label + ".box",
		Kernel:   p.box,
		Storage:  []gpucore.Buffer{integral, out},
		Uniforms: []gpucore.Uniform{params},
		Groups:   gpucore.Size{X: 1, Y: 1, Z: 1},
	})
}

// NewBoxParams creates the parameter block of a box query for
// EncodeBoxIntegral. The caller destroys it with DestroyUniform once the
// batch has been submitted.
func (p *Pipeline) NewBoxParams(integral gpucore.Buffer, row, col, rows, cols int) (gpucore.Uniform, error) {
	checkBox("BoxIntegral", integral, row, col)
	u, err := p.backend.CreateUniform(boxWords(integral, row, col, rows, cols), p.label+".box")
	if err != nil {
		return gpucore.Uniform{}, fmt.Errorf("integral: create box parameters: %w", err)
	}
	return u, nil
}

// BoxIntegral returns the sum of the source image over rows [row,
// row+rows) and columns [col, col+cols), computed on the backend from an
// inclusive integral image. The rectangle is clipped to the image, and
// rows <= 0 or cols <= 0 yields 0.
//
// BoxIntegral panics with a *PreconditionError if row or col is negative.
func (p *Pipeline) BoxIntegral(integral gpucore.Buffer, row, col, rows, cols int) (float32, error) {
	params, err := p.NewBoxParams(integral, row, col, rows, cols)
	if err != nil {
		return 0, err
	}
	defer p.backend.DestroyUniform(params)

	out, err := p.backend.CreateBuffer(1, 1, p.label+".boxresult")
	if err != nil {
		return 0, fmt.Errorf("integral: allocate box result: %w", err)
	}
	defer p.backend.DestroyBuffer(out)

	batch := p.backend.BeginBatch(p.label + ".box")
	p.EncodeBoxIntegral(batch, integral, params, out)
	if err := batch.Submit(); err != nil {
		return 0, fmt.Errorf("integral: box query: %w", err)
	}

	v, err := p.backend.ReadBuffer(out)
	if err != nil {
		return 0, fmt.Errorf("integral: read box result: %w", err)
	}
	return v[0], nil
}
