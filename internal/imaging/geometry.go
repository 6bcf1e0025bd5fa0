package imaging

import (
	"image"
	"math"
)

// FitSize shrinks (w, h) into (maxW, maxH) keeping the ratio. The width is
// clamped first and the height second, so an image that is still too tall
// after the width clamp loses width again. Never scales up.
func FitSize(w, h, maxW, maxH int) (int, int) {
	fw, fh := float64(w), float64(h)
	if fw > float64(maxW) {
		fh = fh * float64(maxW) / fw
		fw = float64(maxW)
	}
	if fh > float64(maxH) {
		fw = fw * float64(maxH) / fh
		fh = float64(maxH)
	}
	return atLeastOne(int(fw)), atLeastOne(int(fh))
}

// BarsRect is where a srcW x srcH image lands on a tw x th canvas when
// scaled to fit and centered. Relatively wider sources span the full width
// (letterbox), the rest span the full height (pillarbox).
func BarsRect(srcW, srcH, tw, th int) image.Rectangle {
	if srcW*th > tw*srcH {
		h := atLeastOne(srcH * tw / srcW)
		y := (th - h) / 2
		return image.Rect(0, y, tw, y+h)
	}
	w := atLeastOne(srcW * th / srcH)
	x := (tw - w) / 2
	return image.Rect(x, 0, x+w, th)
}

// AspectCropRect is the centered region of a srcW x srcH image that has
// the w:h ratio. Relatively taller sources lose top and bottom, relatively
// wider ones lose left and right.
func AspectCropRect(srcW, srcH, w, h int) image.Rectangle {
	ratio := float64(srcW) / float64(srcH)
	goal := float64(w) / float64(h)

	if ratio < goal {
		slice := float64(srcW) / goal
		top := (float64(srcH) - slice) / 2
		r := image.Rect(0, round(top), srcW, round(top+slice))
		return nonEmpty(r.Intersect(image.Rect(0, 0, srcW, srcH)))
	}
	slice := float64(srcH) * goal
	left := (float64(srcW) - slice) / 2
	r := image.Rect(round(left), 0, round(left+slice), srcH)
	return nonEmpty(r.Intersect(image.Rect(0, 0, srcW, srcH)))
}

func round(v float64) int {
	return int(math.Round(v))
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func nonEmpty(r image.Rectangle) image.Rectangle {
	if r.Dx() < 1 {
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() < 1 {
		r.Max.Y = r.Min.Y + 1
	}
	return r
}
