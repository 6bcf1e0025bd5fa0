package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.RGBA) {
	t.Helper()
	r, g, b, a := img.At(x, y).RGBA()
	got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	if got != want {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func TestEngine_Resize(t *testing.T) {
	e := NewEngine()
	out, err := e.Resize(solid(1600, 900, white), 320, 320)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if out.Bounds().Dx() != 320 || out.Bounds().Dy() != 320 {
		t.Errorf("bounds = %v", out.Bounds())
	}
	assertColor(t, out, 160, 160, white)

	// Same size again is still a valid transform.
	again, err := e.Resize(out, 320, 320)
	if err != nil {
		t.Fatalf("Resize same size: %v", err)
	}
	if again.Bounds() != out.Bounds() {
		t.Errorf("bounds changed: %v", again.Bounds())
	}
}

func TestEngine_InvalidSize(t *testing.T) {
	e := NewEngine()
	src := solid(10, 10, white)

	if _, err := e.Resize(src, 0, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Resize 0 width: %v", err)
	}
	if _, err := e.Fit(src, 10, -1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Fit negative height: %v", err)
	}
	if _, err := e.Scale(src, 0, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Scale zero: %v", err)
	}
	if _, err := e.Fill(src, -5, 5); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Fill negative: %v", err)
	}
	if _, err := e.Excerpt(src, 0, 0, 0, 5); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Excerpt zero: %v", err)
	}
}

func TestEngine_Fit(t *testing.T) {
	out, err := NewEngine().Fit(solid(1600, 900, white), 800, 800)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(800, 450) {
		t.Errorf("size = %v, want 800x450", got)
	}
}

func TestEngine_Scale(t *testing.T) {
	out, err := NewEngine().Scale(solid(1600, 900, white), 800, 800)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(800, 800) {
		t.Fatalf("size = %v, want 800x800", got)
	}
	assertColor(t, out, 400, 10, black)
	assertColor(t, out, 400, 790, black)
	assertColor(t, out, 400, 400, white)
}

func TestEngine_Fill(t *testing.T) {
	src := solid(1920, 1080, red)
	draw.Draw(src, image.Rect(0, 0, 420, 1080), image.NewUniform(blue), image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(1500, 0, 1920, 1080), image.NewUniform(blue), image.Point{}, draw.Src)

	out, err := NewEngine().Fill(src, 100, 100)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(100, 100) {
		t.Fatalf("size = %v", got)
	}
	assertColor(t, out, 50, 50, red)
	assertColor(t, out, 5, 50, red)
	assertColor(t, out, 94, 50, red)
}

func TestEngine_Excerpt(t *testing.T) {
	src := solid(100, 100, white)
	draw.Draw(src, image.Rect(10, 60, 30, 80), image.NewUniform(red), image.Point{}, draw.Src)

	// top is the x offset, left the y offset.
	out, err := NewEngine().Excerpt(src, 10, 60, 20, 20)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(20, 20) {
		t.Fatalf("size = %v", got)
	}
	assertColor(t, out, 0, 0, red)
	assertColor(t, out, 19, 19, red)

	swapped, err := NewEngine().Excerpt(src, 60, 10, 20, 20)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	assertColor(t, swapped, 0, 0, white)

	// Running off the edge leaves background.
	edge, err := NewEngine().Excerpt(src, 90, 90, 20, 20)
	if err != nil {
		t.Fatalf("Excerpt at edge: %v", err)
	}
	assertColor(t, edge, 5, 5, white)
	assertColor(t, edge, 15, 15, black)
}
