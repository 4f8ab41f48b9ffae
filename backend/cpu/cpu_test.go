package cpu

import (
	"errors"
	"testing"

	"github.com/gogpu/integral/backend"
	"github.com/gogpu/integral/gpucore"
)

// scaleKernel writes dst[i] = src[i] * factor for one 64-wide group.
func scaleKernel(g *gpucore.Group) {
	src, dst := g.Storage[0], g.Storage[1]
	factor := float32(g.Uniforms[0][0])
	base := int(g.ID.X) * int(g.Threads.X)
	for lid := range int(g.Threads.X) {
		i := base + lid
		if i >= len(src.Data) {
			return
		}
		dst.Data[i] = src.Data[i] * factor
	}
}

func testModule() *gpucore.ModuleDesc {
	return &gpucore.ModuleDesc{
		Label: "test",
		Kernels: []gpucore.KernelDesc{{
			Name:      "scale",
			GroupSize: gpucore.Size{X: 64, Y: 1, Z: 1},
			Storage:   2,
			Uniforms:  1,
			Host:      scaleKernel,
		}},
	}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(WithWorkers(4))
	t.Cleanup(b.Close)
	return b
}

func TestBackend_Registered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendCPU) {
		t.Fatal("cpu backend should register itself")
	}
	b, err := backend.Open(backend.BackendCPU)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()
	if b.Name() != backend.BackendCPU {
		t.Errorf("Name() = %q, want %q", b.Name(), backend.BackendCPU)
	}
}

func TestBackend_Workers(t *testing.T) {
	b := newTestBackend(t)
	if b.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", b.Workers())
	}
}

func TestBackend_BufferRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	buf, err := b.CreateBuffer(3, 2, "rt")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	got, err := b.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("new buffer[%d] = %v, want 0", i, v)
		}
	}

	want := []float32{1, 2, 3, 4, 5, 6}
	if err := b.WriteBuffer(buf, want); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	got, err = b.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("buffer[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// ReadBuffer returns a copy.
	got[0] = 42
	host, ok := b.HostData(buf)
	if !ok {
		t.Fatal("HostData should find the buffer")
	}
	if host[0] != 1 {
		t.Errorf("HostData()[0] = %v after mutating a ReadBuffer copy, want 1", host[0])
	}
}

func TestBackend_BufferErrors(t *testing.T) {
	b := newTestBackend(t)

	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"zero width", 0, 4},
		{"zero height", 4, 0},
		{"negative", -1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateBuffer(tt.width, tt.height, tt.name)
			if !errors.Is(err, gpucore.ErrInvalidDimensions) {
				t.Errorf("CreateBuffer(%d, %d) error = %v, want ErrInvalidDimensions", tt.width, tt.height, err)
			}
		})
	}

	buf, err := b.CreateBuffer(2, 2, "small")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.WriteBuffer(buf, []float32{1, 2, 3}); !errors.Is(err, gpucore.ErrSizeMismatch) {
		t.Errorf("short WriteBuffer error = %v, want ErrSizeMismatch", err)
	}

	b.DestroyBuffer(buf)
	if _, err := b.ReadBuffer(buf); !errors.Is(err, gpucore.ErrUnknownBuffer) {
		t.Errorf("ReadBuffer after destroy error = %v, want ErrUnknownBuffer", err)
	}
	if _, ok := b.HostData(buf); ok {
		t.Error("HostData should not find a destroyed buffer")
	}
}

func TestBackend_ModuleRequiresHostKernels(t *testing.T) {
	b := newTestBackend(t)

	desc := testModule()
	desc.Kernels[0].Host = nil
	if _, err := b.NewModule(desc); !errors.Is(err, gpucore.ErrKernelNotFound) {
		t.Errorf("NewModule without host kernel error = %v, want ErrKernelNotFound", err)
	}

	m, err := b.NewModule(testModule())
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	defer m.Close()
	if m.Label() != "test" {
		t.Errorf("Label() = %q, want test", m.Label())
	}
	if _, err := m.Kernel("missing"); !errors.Is(err, gpucore.ErrKernelNotFound) {
		t.Errorf("Kernel(missing) error = %v, want ErrKernelNotFound", err)
	}
}

func TestBatch_Dispatch(t *testing.T) {
	b := newTestBackend(t)

	m, err := b.NewModule(testModule())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	k, err := m.Kernel("scale")
	if err != nil {
		t.Fatal(err)
	}

	const n = 200
	src, _ := b.CreateBuffer(n, 1, "src")
	dst, _ := b.CreateBuffer(n, 1, "dst")
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	if err := b.WriteBuffer(src, data); err != nil {
		t.Fatal(err)
	}
	u, err := b.CreateUniform([gpucore.UniformWords]uint32{3}, "factor")
	if err != nil {
		t.Fatal(err)
	}

	batch := b.BeginBatch("scale")
	batch.Dispatch(&gpucore.DispatchDesc{
		Kernel:   k,
		Storage:  []gpucore.Buffer{src, dst},
		Uniforms: []gpucore.Uniform{u},
		Groups:   gpucore.Size{X: uint32(gpucore.CeilDiv(n, 64)), Y: 1, Z: 1},
	})
	// Second pass scales in place, reading the first pass's result.
	batch.Dispatch(&gpucore.DispatchDesc{
		Kernel:   k,
		Storage:  []gpucore.Buffer{dst, dst},
		Uniforms: []gpucore.Uniform{u},
		Groups:   gpucore.Size{X: uint32(gpucore.CeilDiv(n, 64)), Y: 1, Z: 1},
	})
	if err := batch.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := b.ReadBuffer(dst)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if want := float32(i) * 9; v != want {
			t.Fatalf("dst[%d] = %v, want %v", i, v, want)
		}
	}

	if err := batch.Submit(); !errors.Is(err, gpucore.ErrBatchDone) {
		t.Errorf("second Submit error = %v, want ErrBatchDone", err)
	}
}

func TestBatch_StickyError(t *testing.T) {
	b := newTestBackend(t)

	m, _ := b.NewModule(testModule())
	defer m.Close()
	k, _ := m.Kernel("scale")
	src, _ := b.CreateBuffer(8, 1, "src")

	batch := b.BeginBatch("bad")
	batch.Dispatch(&gpucore.DispatchDesc{
		Kernel:  k,
		Storage: []gpucore.Buffer{src},
		Groups:  gpucore.Size{X: 1, Y: 1, Z: 1},
	})
	batch.Transpose(src, src)
	if err := batch.Submit(); !errors.Is(err, gpucore.ErrBindingMismatch) {
		t.Errorf("Submit error = %v, want ErrBindingMismatch", err)
	}
}

func TestBatch_DestroyedBuffer(t *testing.T) {
	b := newTestBackend(t)

	src, _ := b.CreateBuffer(4, 2, "src")
	dst, _ := b.CreateBuffer(2, 4, "dst")

	batch := b.BeginBatch("stale")
	batch.Transpose(src, dst)
	b.DestroyBuffer(dst)
	if err := batch.Submit(); !errors.Is(err, gpucore.ErrUnknownBuffer) {
		t.Errorf("Submit error = %v, want ErrUnknownBuffer", err)
	}
}

func TestBatch_Discard(t *testing.T) {
	b := newTestBackend(t)

	src, _ := b.CreateBuffer(2, 2, "src")
	dst, _ := b.CreateBuffer(2, 2, "dst")
	_ = b.WriteBuffer(src, []float32{1, 2, 3, 4})

	batch := b.BeginBatch("discard")
	batch.Transpose(src, dst)
	batch.Discard()
	if err := batch.Submit(); !errors.Is(err, gpucore.ErrBatchDone) {
		t.Errorf("Submit after Discard error = %v, want ErrBatchDone", err)
	}
	got, _ := b.ReadBuffer(dst)
	for i, v := range got {
		if v != 0 {
			t.Errorf("dst[%d] = %v after Discard, want 0", i, v)
		}
	}
}

func TestBatch_Transpose(t *testing.T) {
	b := newTestBackend(t)

	tests := []struct {
		name          string
		width, height int
	}{
		{"square", 4, 4},
		{"wide", 70, 3},
		{"tall", 5, 100},
		{"single row", 33, 1},
		{"tile multiple", 64, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := b.CreateBuffer(tt.width, tt.height, "src")
			dst, _ := b.CreateBuffer(tt.height, tt.width, "dst")
			data := make([]float32, tt.width*tt.height)
			for i := range data {
				data[i] = float32(i)
			}
			if err := b.WriteBuffer(src, data); err != nil {
				t.Fatal(err)
			}

			batch := b.BeginBatch("transpose")
			batch.Transpose(src, dst)
			if err := batch.Submit(); err != nil {
				t.Fatalf("Submit: %v", err)
			}

			got, _ := b.ReadBuffer(dst)
			for y := range tt.height {
				for x := range tt.width {
					if got[x*tt.height+y] != data[y*tt.width+x] {
						t.Fatalf("dst(%d,%d) = %v, want %v", y, x, got[x*tt.height+y], data[y*tt.width+x])
					}
				}
			}
		})
	}
}

func TestBackend_CloseIdempotent(t *testing.T) {
	b := New(WithWorkers(1))
	b.Close()
	b.Close()

	if _, err := b.CreateBuffer(1, 1, "after"); !errors.Is(err, gpucore.ErrClosed) {
		t.Errorf("CreateBuffer after Close error = %v, want ErrClosed", err)
	}
}

func BenchmarkTranspose1080p(b *testing.B) {
	be := New()
	defer be.Close()

	src, _ := be.CreateBuffer(1920, 1080, "src")
	dst, _ := be.CreateBuffer(1080, 1920, "dst")

	b.ResetTimer()
	for b.Loop() {
		batch := be.BeginBatch("transpose")
		batch.Transpose(src, dst)
		if err := batch.Submit(); err != nil {
			b.Fatal(err)
		}
	}
}
