package integral

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gogpu/integral/gpucore"
)

// Image is a host-side single-channel float32 image in row-major order.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage creates a zero-filled image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// Filled creates an image with every element set to v.
func Filled(width, height int, v float32) *Image {
	img := NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Ramp creates an image whose rows count up from v: element x of every
// row holds (x+1)*v.
func Ramp(width, height int, v float32) *Image {
	img := NewImage(width, height)
	for y := range height {
		row := img.Pix[y*width : (y+1)*width]
		for x := range row {
			row[x] = float32(x+1) * v
		}
	}
	return img
}

// RandomImage creates an image of values drawn uniformly from [0, 1).
func RandomImage(width, height int, rng *rand.Rand) *Image {
	img := NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = rng.Float32()
	}
	return img
}

// FromImage converts src to luminance in [0, 1].
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	gray := image.NewGray16(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), src, bounds.Min, draw.Src)

	img := NewImage(bounds.Dx(), bounds.Dy())
	for y := range img.Height {
		for x := range img.Width {
			img.Pix[y*img.Width+x] = float32(gray.Gray16At(x, y).Y) / 0xffff
		}
	}
	return img
}

// FitImage downscales src so that neither side exceeds maxSide, keeping
// the aspect ratio. Images that already fit are returned unchanged.
// FitImage(src, MaxAxis) prepares arbitrary images for a Pipeline.
func FitImage(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}

	if w >= h {
		h = max(h*maxSide/w, 1)
		w = maxSide
	} else {
		w = max(w*maxSide/h, 1)
		h = maxSide
	}
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}

// ToGray maps the image linearly onto 16-bit gray, with lo and hi as the
// darkest and brightest values. Values outside [lo, hi] are clamped.
func (img *Image) ToGray(lo, hi float32) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	span := hi - lo
	for y := range img.Height {
		for x := range img.Width {
			var t float32
			if span > 0 {
				t = (img.Pix[y*img.Width+x] - lo) / span
			}
			t = min(max(t, 0), 1)
			out.SetGray16(x, y, color.Gray16{Y: uint16(t * 0xffff)})
		}
	}
	return out
}

// At returns the element at column x, row y.
func (img *Image) At(x, y int) float32 {
	return img.Pix[y*img.Width+x]
}

// BoxSum treats img as an inclusive integral image and returns the sum
// over rows [row, row+rows) and columns [col, col+cols), clipped to the
// image. It matches Pipeline.BoxIntegral operation for operation.
func (img *Image) BoxSum(row, col, rows, cols int) float32 {
	if row < 0 || col < 0 {
		precondition("BoxSum", "negative box origin (%d, %d)", row, col)
	}
	return boxSum(img.Pix, img.Width, img.Height, row, col, rows, cols)
}

// Upload creates a backend buffer holding the image.
func (img *Image) Upload(b gpucore.Backend, label string) (gpucore.Buffer, error) {
	buf, err := b.CreateBuffer(img.Width, img.Height, label)
	if err != nil {
		return gpucore.Buffer{}, fmt.Errorf("integral: upload %s: %w", label, err)
	}
	if err := b.WriteBuffer(buf, img.Pix); err != nil {
		b.DestroyBuffer(buf)
		return gpucore.Buffer{}, fmt.Errorf("integral: upload %s: %w", label, err)
	}
	return buf, nil
}

// Download copies a backend buffer into a new image.
func Download(b gpucore.Backend, buf gpucore.Buffer) (*Image, error) {
	pix, err := b.ReadBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("integral: download %s: %w", buf.Label, err)
	}
	return &Image{Width: buf.Width, Height: buf.Height, Pix: pix}, nil
}

// Dump writes the image as comma-separated rows. With blockSize > 0 each
// run of blockSize columns ends a line annotated with its row and block
// index, which makes block boundaries of the scan visible.
func (img *Image) Dump(w io.Writer, blockSize int) error {
	var sb strings.Builder
	for y := range img.Height {
		sb.Reset()
		block := 0
		for x := range img.Width {
			sb.WriteString(strconv.FormatFloat(float64(img.At(x, y)), 'g', -1, 32))
			if x < img.Width-1 {
				sb.WriteByte(',')
			}
			if blockSize > 0 && ((x+1)%blockSize == 0 || x == img.Width-1) {
				fmt.Fprintf(&sb, "||| (row: %d, block: %d)\n", y, block)
				block++
			}
		}
		if blockSize <= 0 {
			sb.WriteByte('\n')
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
