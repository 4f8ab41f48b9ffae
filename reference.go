package integral

// Reference computes the integral image of img sequentially in float64.
// It is the ground truth the parallel pipeline is validated against.
func Reference(img *Image, inclusive bool) []float64 {
	w, h := img.Width, img.Height
	sum := make([]float64, w*h)
	for y := range h {
		var rowSum float64
		for x := range w {
			rowSum += float64(img.Pix[y*w+x])
			sum[y*w+x] = rowSum
			if y > 0 {
				sum[y*w+x] += sum[(y-1)*w+x]
			}
		}
	}
	if inclusive {
		return sum
	}

	// Exclusive (x, y) is inclusive (x-1, y-1).
	out := make([]float64, w*h)
	for y := 1; y < h; y++ {
		for x := 1; x < w; x++ {
			out[y*w+x] = sum[(y-1)*w+x-1]
		}
	}
	return out
}
