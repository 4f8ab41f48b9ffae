package integral

import (
	"strings"
	"testing"

	"github.com/gogpu/integral/gpucore"
)

// runGroups calls a host kernel for every workgroup of grid sequentially.
func runGroups(k gpucore.HostKernel, grid gpucore.Size, threads uint32, storage []gpucore.View, uniforms ...[gpucore.UniformWords]uint32) {
	for y := range grid.Y {
		for x := range grid.X {
			k(&gpucore.Group{
				ID:       gpucore.Size{X: x, Y: y, Z: 0},
				Grid:     grid,
				Threads:  gpucore.Size{X: threads, Y: 1, Z: 1},
				Storage:  storage,
				Uniforms: uniforms,
			})
		}
	}
}

func view(w, h int, data []float32) gpucore.View {
	if data == nil {
		data = make([]float32, w*h)
	}
	return gpucore.View{Data: data, Width: w, Height: h}
}

func counting(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func TestScanKernel(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		inclusive bool
	}{
		{"one block inclusive", 64, true},
		{"one block exclusive", 64, false},
		{"ragged inclusive", 70, true},
		{"ragged exclusive", 70, false},
		{"short row", 5, true},
		{"three blocks", 192, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := gpucore.CeilDiv(tt.width, BlockSize)
			in := view(tt.width, 2, append(counting(tt.width), counting(tt.width)...))
			aux := view(blocks, 2, nil)
			out := view(tt.width, 2, nil)

			runGroups(scanKernel, gpucore.Size{X: uint32(blocks), Y: 2, Z: 1}, BlockSize,
				[]gpucore.View{in, aux, out}, modeWords(tt.inclusive))

			for row := range 2 {
				for x := range tt.width {
					// Values within a block count up from start+1.
					start := x / BlockSize * BlockSize
					k := x - start
					first := float32(start + 1)
					want := float32(k+1)*first + float32(k*(k+1)/2)
					if !tt.inclusive {
						want = float32(k)*first + float32(k*(k-1)/2)
					}
					if got := out.Data[row*tt.width+x]; got != want {
						t.Fatalf("row %d x %d = %v, want %v", row, x, got, want)
					}
				}
				for blk := range blocks {
					var want float32
					for x := blk * BlockSize; x < min((blk+1)*BlockSize, tt.width); x++ {
						want += float32(x + 1)
					}
					if got := aux.Data[row*blocks+blk]; got != want {
						t.Errorf("aux row %d block %d = %v, want %v", row, blk, got, want)
					}
				}
			}
		})
	}
}

func TestScanKernel_DummyAux(t *testing.T) {
	// Scanning an aux buffer: the 1x1 dummy only receives row 0's total.
	in := view(3, 4, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	dummy := view(1, 1, nil)
	out := view(3, 4, nil)

	runGroups(scanKernel, gpucore.Size{X: 1, Y: 4, Z: 1}, BlockSize,
		[]gpucore.View{in, dummy, out}, modeWords(false))

	want := []float32{0, 1, 3, 0, 4, 9, 0, 7, 15, 0, 10, 21}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out.Data[i], want[i])
		}
	}
	if dummy.Data[0] != 6 {
		t.Errorf("dummy = %v, want row 0 total 6", dummy.Data[0])
	}
}

func TestFixupKernel(t *testing.T) {
	const width = 150
	in := view(width, 2, nil)
	for i := range in.Data {
		in.Data[i] = 1
	}
	aux := view(3, 2, []float32{0, 10, 20, 0, 100, 200})
	out := view(width, 2, nil)

	runGroups(fixupKernel, gpucore.Size{X: 3, Y: 2, Z: 1}, BlockSize, []gpucore.View{in, aux, out})

	for row := range 2 {
		for x := range width {
			want := 1 + aux.Data[row*3+x/BlockSize]
			if got := out.Data[row*width+x]; got != want {
				t.Fatalf("row %d x %d = %v, want %v", row, x, got, want)
			}
		}
	}
}

func TestModuleDesc(t *testing.T) {
	desc := ModuleDesc()
	for _, name := range []string{KernelScan, KernelFixup, KernelBoxIntegral} {
		k, ok := desc.Kernel(name)
		if !ok {
			t.Errorf("kernel %s missing", name)
			continue
		}
		if k.Host == nil {
			t.Errorf("kernel %s has no host implementation", name)
		}
		if !strings.Contains(desc.WGSL, "fn "+name+"(") {
			t.Errorf("WGSL has no entry point %s", name)
		}
		if k.Storage > gpucore.MaxStorageBindings {
			t.Errorf("kernel %s binds %d storage slots", name, k.Storage)
		}
	}
	if desc.WGSL != WGSL() {
		t.Error("ModuleDesc().WGSL differs from WGSL()")
	}
	if !strings.Contains(WGSL(), "@workgroup_size(64)") {
		t.Error("scan kernels must run 64 threads per group")
	}
}
