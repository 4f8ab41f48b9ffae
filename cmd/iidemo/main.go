// Command iidemo computes the integral image of a picture or a random
// image, checks it against the float64 reference and reports timings.
//
//	iidemo -input photo.jpg -output integral.png
//	iidemo -width 1920 -height 1080 -runs 20 -backend cpu
package main

import (
	"flag"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/integral"
	"github.com/gogpu/integral/backend"
	_ "github.com/gogpu/integral/backend/cpu"
	_ "github.com/gogpu/integral/backend/wgpu"
	"github.com/gogpu/integral/gpucore"
)

func main() {
	var (
		input     = flag.String("input", "", "input image (png, jpeg, bmp, tiff, webp); random when empty")
		output    = flag.String("output", "", "write the normalized integral image as PNG")
		width     = flag.Int("width", 1280, "width of the random image")
		height    = flag.Int("height", 720, "height of the random image")
		seed      = flag.Uint64("seed", 1, "seed of the random image")
		exclusive = flag.Bool("exclusive", false, "compute the exclusive integral image")
		name      = flag.String("backend", "", "backend name; best available when empty")
		runs      = flag.Int("runs", 10, "timed runs")
		verbose   = flag.Bool("v", false, "log backend activity")
	)
	flag.Parse()

	if *verbose {
		integral.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	img, err := loadImage(*input, *width, *height, *seed)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	b, err := openBackend(*name)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.Close()

	m, err := integral.NewModule(b)
	if err != nil {
		log.Fatalf("Failed to compile kernels: %v", err)
	}
	defer m.Close()

	p, err := integral.New(b, m, img.Width, img.Height, integral.WithInclusive(!*exclusive))
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer p.Close()

	result, elapsed, err := run(b, p, img, max(*runs, 1))
	if err != nil {
		log.Fatalf("Failed to compute integral image: %v", err)
	}

	report(b.Name(), img, result, !*exclusive, elapsed)

	if *output != "" {
		if err := savePNG(*output, result); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Integral image saved to %s (%dx%d)\n", *output, img.Width, img.Height)
	}
}

// loadImage decodes path and fits it to the pipeline limits, or creates a
// random image when path is empty.
func loadImage(path string, width, height int, seed uint64) (*integral.Image, error) {
	if path == "" {
		return integral.RandomImage(width, height, rand.New(rand.NewPCG(seed, seed))), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return integral.FromImage(integral.FitImage(src, integral.MaxAxis)), nil
}

func openBackend(name string) (gpucore.Backend, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Open(name)
}

// run computes the integral image runs times and returns the last result
// and the mean time per run, upload and readback excluded.
func run(b gpucore.Backend, p *integral.Pipeline, img *integral.Image, runs int) (*integral.Image, time.Duration, error) {
	src, err := img.Upload(b, "src")
	if err != nil {
		return nil, 0, err
	}
	defer b.DestroyBuffer(src)
	dst, err := b.CreateBuffer(img.Width, img.Height, "dst")
	if err != nil {
		return nil, 0, err
	}
	defer b.DestroyBuffer(dst)

	// Warm-up run.
	if err := p.ComputeIntegral(src, dst); err != nil {
		return nil, 0, err
	}
	start := time.Now()
	for range runs {
		if err := p.ComputeIntegral(src, dst); err != nil {
			return nil, 0, err
		}
	}
	elapsed := time.Since(start) / time.Duration(runs)

	out, err := integral.Download(b, dst)
	if err != nil {
		return nil, 0, err
	}
	return out, elapsed, nil
}

func report(backendName string, img, result *integral.Image, inclusive bool, elapsed time.Duration) {
	want := integral.Reference(img, inclusive)
	worst := 0.0
	for i, v := range result.Pix {
		worst = max(worst, math.Abs(float64(v)-want[i]))
	}

	pixels := img.Width * img.Height
	rate := float64(pixels) / elapsed.Seconds()

	pr := message.NewPrinter(language.English)
	pr.Printf("backend:     %s\n", backendName)
	pr.Printf("image:       %d x %d (%d elements)\n", img.Width, img.Height, pixels)
	pr.Printf("inclusive:   %v\n", inclusive)
	pr.Printf("time/run:    %v\n", elapsed)
	pr.Printf("throughput:  %.0f elements/s\n", rate)
	pr.Printf("total:       %.2f\n", result.Pix[len(result.Pix)-1])
	pr.Printf("max error:   %g\n", worst)
}

func savePNG(path string, result *integral.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, result.ToGray(0, result.Pix[len(result.Pix)-1])); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
