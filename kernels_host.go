package integral

import "github.com/gogpu/integral/gpucore"

// Host twins of the kernels in shaders/integral.wgsl. Each function runs
// every lane of one workgroup and performs the same float32 additions in
// the same order as its WGSL entry point.

const scanLanes = BlockSize / 4

// scanKernel is ii_scan for workgroup (block, row).
func scanKernel(g *gpucore.Group) {
	in, aux, out := g.Storage[0], g.Storage[1], g.Storage[2]
	inclusiveMode := g.Uniforms[0][0] != 0
	block := int(g.ID.X)
	row := int(g.ID.Y)
	base := row*in.Width + block*BlockSize
	valid := min(in.Width-block*BlockSize, BlockSize)

	var lanes [scanLanes][4]float32
	for lid := range valid {
		lanes[lid/4][lid%4] = in.Data[base+lid]
	}

	var totals [scanLanes]float32
	for lane := range lanes {
		s := &lanes[lane]
		s[1] = s[0] + s[1]
		s[2] = s[1] + s[2]
		s[3] = s[2] + s[3]
		totals[lane] = s[3]
	}

	for offset := 1; offset < scanLanes; offset *= 2 {
		var t [scanLanes]float32
		for lid := offset; lid < scanLanes; lid++ {
			t[lid] = totals[lid-offset]
		}
		for lid := range totals {
			totals[lid] += t[lid]
		}
	}

	var scanned [BlockSize]float32
	for lid := range scanned {
		lane := lid / 4
		var prefix float32
		if lane > 0 {
			prefix = totals[lane-1]
		}
		scanned[lid] = lanes[lane][lid%4] + prefix
	}

	for lid := range valid {
		result := scanned[lid]
		if !inclusiveMode {
			result = 0
			if lid > 0 {
				result = scanned[lid-1]
			}
		}
		out.Data[base+lid] = result
	}

	if block < aux.Width && row < aux.Height {
		aux.Data[row*aux.Width+block] = scanned[BlockSize-1]
	}
}

// fixupKernel is ii_fixup for workgroup (block, row).
func fixupKernel(g *gpucore.Group) {
	in, aux, out := g.Storage[0], g.Storage[1], g.Storage[2]
	block := int(g.ID.X)
	row := int(g.ID.Y)
	base := row*in.Width + block*BlockSize
	valid := min(in.Width-block*BlockSize, BlockSize)

	offset := aux.Data[row*aux.Width+block]
	for lid := range valid {
		out.Data[base+lid] = in.Data[base+lid] + offset
	}
}

// boxKernel is ii_boxintegral.
func boxKernel(g *gpucore.Group) {
	img, out := g.Storage[0], g.Storage[1]
	p := g.Uniforms[0]
	out.Data[0] = boxSum(img.Data, img.Width, img.Height,
		int(int32(p[0])), int(int32(p[1])), int(int32(p[2])), int(int32(p[3]))) //nolint:gosec // two's complement round trip
}

// boxSum evaluates the inclusion-exclusion sum over rows [row, row+rows)
// and columns [col, col+cols) of an inclusive integral image, clipped to
// the image. Out-of-bounds corners read as zero.
func boxSum(data []float32, width, height, row, col, rows, cols int) float32 {
	if rows <= 0 || cols <= 0 || row >= height || col >= width {
		return 0
	}
	corner := func(r, c int) float32 {
		if r < 0 || c < 0 {
			return 0
		}
		return data[r*width+c]
	}

	r1, c1 := row, col
	r2 := min(row+rows-1, height-1)
	c2 := min(col+cols-1, width-1)

	a := corner(r2, c2)
	b := corner(r1-1, c2)
	c := corner(r2, c1-1)
	d := corner(r1-1, c1-1)
	return ((a - b) - c) + d
}
