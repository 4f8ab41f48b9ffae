package integral

import (
	"bytes"
	"image"
	"image/color"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestFilledAndRamp(t *testing.T) {
	f := Filled(3, 2, 1.5)
	for i, v := range f.Pix {
		if v != 1.5 {
			t.Errorf("Filled[%d] = %v, want 1.5", i, v)
		}
	}

	r := Ramp(4, 2, 2)
	want := []float32{2, 4, 6, 8, 2, 4, 6, 8}
	for i := range want {
		if r.Pix[i] != want[i] {
			t.Errorf("Ramp[%d] = %v, want %v", i, r.Pix[i], want[i])
		}
	}
}

func TestRandomImage(t *testing.T) {
	img := RandomImage(64, 64, rand.New(rand.NewPCG(1, 2)))
	for i, v := range img.Pix {
		if v < 0 || v >= 1 {
			t.Fatalf("RandomImage[%d] = %v, want [0, 1)", i, v)
		}
	}
	again := RandomImage(64, 64, rand.New(rand.NewPCG(1, 2)))
	for i := range img.Pix {
		if img.Pix[i] != again.Pix[i] {
			t.Fatal("RandomImage should be reproducible for a fixed seed")
		}
	}
}

func TestFromImage(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 14, 12))
	for y := 10; y < 12; y++ {
		for x := 10; x < 14; x++ {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	src.SetGray(10, 10, color.Gray{Y: 0})

	img := FromImage(src)
	if img.Width != 4 || img.Height != 2 {
		t.Fatalf("FromImage size = %dx%d, want 4x2", img.Width, img.Height)
	}
	if img.At(0, 0) != 0 {
		t.Errorf("black pixel = %v, want 0", img.At(0, 0))
	}
	if img.At(3, 1) != 1 {
		t.Errorf("white pixel = %v, want 1", img.At(3, 1))
	}
}

func TestFitImage(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxSide    int
		wantW      int
		wantH      int
		sameSource bool
	}{
		{"fits", 100, 50, 200, 100, 50, true},
		{"wide", 400, 100, 200, 200, 50, false},
		{"tall", 100, 400, 200, 50, 200, false},
		{"no limit", 100, 100, 0, 100, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewGray(image.Rect(0, 0, tt.w, tt.h))
			got := FitImage(src, tt.maxSide)
			if b := got.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("FitImage size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			if same := got == image.Image(src); same != tt.sameSource {
				t.Errorf("returned source unchanged = %v, want %v", same, tt.sameSource)
			}
		})
	}
}

func TestToGray(t *testing.T) {
	img := &Image{Width: 3, Height: 1, Pix: []float32{-1, 5, 20}}
	g := img.ToGray(0, 10)
	if v := g.Gray16At(0, 0).Y; v != 0 {
		t.Errorf("below range = %d, want 0", v)
	}
	if v := g.Gray16At(2, 0).Y; v != 0xffff {
		t.Errorf("above range = %d, want 0xffff", v)
	}
	if v := g.Gray16At(1, 0).Y; v < 0x7fff-1 || v > 0x7fff+1 {
		t.Errorf("mid range = %d, want about 0x7fff", v)
	}
}

func TestUploadDownload(t *testing.T) {
	b := newTestBackend(t)
	img := Ramp(5, 3, 1)

	buf, err := img.Upload(b, "img")
	if err != nil {
		t.Fatal(err)
	}
	got, err := Download(b, buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 5 || got.Height != 3 {
		t.Fatalf("Download size = %dx%d, want 5x3", got.Width, got.Height)
	}
	for i := range img.Pix {
		if got.Pix[i] != img.Pix[i] {
			t.Errorf("Pix[%d] = %v, want %v", i, got.Pix[i], img.Pix[i])
		}
	}

	b.DestroyBuffer(buf)
	if _, err := Download(b, buf); err == nil {
		t.Error("Download of a destroyed buffer should fail")
	}
}

func TestDump(t *testing.T) {
	img := &Image{Width: 3, Height: 2, Pix: []float32{1, 2, 3, 4.5, 5, 6}}

	var plain bytes.Buffer
	if err := img.Dump(&plain, 0); err != nil {
		t.Fatal(err)
	}
	if want := "1,2,3\n4.5,5,6\n"; plain.String() != want {
		t.Errorf("Dump(0) = %q, want %q", plain.String(), want)
	}

	var blocks bytes.Buffer
	if err := img.Dump(&blocks, 2); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(blocks.String(), "\n"), "\n")
	want := []string{
		"1,2,||| (row: 0, block: 0)",
		"3||| (row: 0, block: 1)",
		"4.5,5,||| (row: 1, block: 0)",
		"6||| (row: 1, block: 1)",
	}
	if len(lines) != len(want) {
		t.Fatalf("Dump(2) lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestReference(t *testing.T) {
	img := &Image{Width: 3, Height: 2, Pix: []float32{1, 2, 3, 4, 5, 6}}

	incl := Reference(img, true)
	wantIncl := []float64{1, 3, 6, 5, 12, 21}
	excl := Reference(img, false)
	wantExcl := []float64{0, 0, 0, 0, 1, 3}
	for i := range wantIncl {
		if incl[i] != wantIncl[i] {
			t.Errorf("inclusive[%d] = %v, want %v", i, incl[i], wantIncl[i])
		}
		if excl[i] != wantExcl[i] {
			t.Errorf("exclusive[%d] = %v, want %v", i, excl[i], wantExcl[i])
		}
	}
}
