package integral

import (
	"testing"

	"github.com/gogpu/integral/gpucore"
)

// bruteBox sums img directly over the clipped rectangle.
func bruteBox(img *Image, row, col, rows, cols int) float32 {
	var sum float32
	for y := row; y < min(row+rows, img.Height); y++ {
		for x := col; x < min(col+cols, img.Width); x++ {
			sum += img.At(x, y)
		}
	}
	return sum
}

func TestBoxIntegral(t *testing.T) {
	const w, h = 100, 80
	src := Ramp(w, h, 1)
	p, b := newTestPipeline(t, w, h, WithInclusive(true))

	srcBuf := upload(t, b, src)
	dst := alloc(t, b, w, h)
	if err := p.ComputeIntegral(srcBuf, dst); err != nil {
		t.Fatal(err)
	}
	ii, err := Download(b, dst)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                 string
		row, col, rows, cols int
	}{
		{"whole image", 0, 0, h, w},
		{"single cell origin", 0, 0, 1, 1},
		{"single cell inner", 40, 50, 1, 1},
		{"inner rect", 10, 20, 30, 40},
		{"top row", 0, 5, 1, 50},
		{"left column", 5, 0, 50, 1},
		{"clipped right", 10, 90, 5, 50},
		{"clipped bottom", 70, 10, 50, 5},
		{"clipped both", 60, 60, 1000, 1000},
		{"bottom right cell", h - 1, w - 1, 1, 1},
		{"origin outside rows", h, 0, 5, 5},
		{"origin outside cols", 0, w, 5, 5},
		{"zero rows", 10, 10, 0, 5},
		{"zero cols", 10, 10, 5, 0},
		{"negative extent", 10, 10, -3, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.BoxIntegral(dst, tt.row, tt.col, tt.rows, tt.cols)
			if err != nil {
				t.Fatal(err)
			}
			host := ii.BoxSum(tt.row, tt.col, tt.rows, tt.cols)
			if got != host {
				t.Errorf("BoxIntegral = %v, host BoxSum = %v", got, host)
			}
			rows, cols := max(tt.rows, 0), max(tt.cols, 0)
			if want := bruteBox(src, tt.row, tt.col, rows, cols); got != want {
				t.Errorf("BoxIntegral = %v, want %v", got, want)
			}
		})
	}
}

func TestBoxIntegral_NegativeOrigin(t *testing.T) {
	p, b := newTestPipeline(t, 4, 4, WithInclusive(true))
	dst := alloc(t, b, 4, 4)

	assertPrecondition(t, func() { _, _ = p.BoxIntegral(dst, -1, 0, 2, 2) })
	assertPrecondition(t, func() { _, _ = p.BoxIntegral(dst, 0, -1, 2, 2) })
	assertPrecondition(t, func() { Filled(4, 4, 1).BoxSum(-1, -1, 1, 1) })
}

func TestEncodeBoxIntegral_ResultSize(t *testing.T) {
	p, b := newTestPipeline(t, 4, 4, WithInclusive(true))
	dst := alloc(t, b, 4, 4)
	params, err := p.NewBoxParams(dst, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer b.DestroyUniform(params)

	batch := b.BeginBatch("bad result")
	defer batch.Discard()
	assertPrecondition(t, func() { p.EncodeBoxIntegral(batch, dst, params, dst) })
}

func TestBoxWords(t *testing.T) {
	img := gpucore.Buffer{ID: 1, Width: 10, Height: 20}

	tests := []struct {
		name                 string
		row, col, rows, cols int
		want                 [gpucore.UniformWords]uint32
	}{
		{"inside", 1, 2, 3, 4, [gpucore.UniformWords]uint32{1, 2, 3, 4}},
		{"extent clamped", 1, 2, MaxAxis * 10, MaxAxis * 10, [gpucore.UniformWords]uint32{1, 2, 20, 10}},
		{"origin clamped", 100, 100, 1, 1, [gpucore.UniformWords]uint32{20, 10, 1, 1}},
		{"negative extent", 1, 1, -5, -5, [gpucore.UniformWords]uint32{1, 1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boxWords(img, tt.row, tt.col, tt.rows, tt.cols); got != tt.want {
				t.Errorf("boxWords = %v, want %v", got, tt.want)
			}
		})
	}
}
