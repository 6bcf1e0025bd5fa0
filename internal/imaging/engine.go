package imaging

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const MaxQuality = 100

// Engine holds the resampling settings shared by all transforms.
type Engine struct {
	Kernel     draw.Interpolator
	Background color.Color
	Quality    int
}

// NewEngine returns Catmull-Rom resampling on an opaque black canvas with
// maximum JPEG quality.
func NewEngine() *Engine {
	return &Engine{
		Kernel:     draw.CatmullRom,
		Background: color.Black,
		Quality:    MaxQuality,
	}
}

// Resize stretches src to exactly w x h, ignoring its ratio.
func (e *Engine) Resize(src image.Image, w, h int) (*image.RGBA, error) {
	dst, err := e.canvas(w, h)
	if err != nil {
		return nil, err
	}
	e.Kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst, nil
}

// Fit shrinks src into maxW x maxH, see FitSize.
func (e *Engine) Fit(src image.Image, maxW, maxH int) (*image.RGBA, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, maxW, maxH)
	}
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	return e.Resize(src, w, h)
}

// Scale produces exactly tw x th with src scaled to fit, centered on the
// background.
func (e *Engine) Scale(src image.Image, tw, th int) (*image.RGBA, error) {
	dst, err := e.canvas(tw, th)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	e.Kernel.Scale(dst, BarsRect(b.Dx(), b.Dy(), tw, th), src, b, draw.Over, nil)
	return dst, nil
}

// Fill crops src to the w:h ratio around its center and resamples the
// slice to exactly w x h.
func (e *Engine) Fill(src image.Image, w, h int) (*image.RGBA, error) {
	dst, err := e.canvas(w, h)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	region := AspectCropRect(b.Dx(), b.Dy(), w, h).Add(b.Min)
	e.Kernel.Scale(dst, dst.Bounds(), src, region, draw.Over, nil)
	return dst, nil
}

// Excerpt copies the w x h block of src starting at (top, left). top is
// read as the source x offset and left as the source y offset. Nothing is
// scaled; parts outside src keep the background.
func (e *Engine) Excerpt(src image.Image, top, left, w, h int) (*image.RGBA, error) {
	dst, err := e.canvas(w, h)
	if err != nil {
		return nil, err
	}
	origin := src.Bounds().Min.Add(image.Pt(top, left))
	draw.Draw(dst, dst.Bounds(), src, origin, draw.Over)
	return dst, nil
}

func (e *Engine) canvas(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(e.Background), image.Point{}, draw.Src)
	return dst, nil
}
