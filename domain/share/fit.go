package share

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Rect is a placement in floating point pixels.
type Rect struct {
	X, Y, W, H float64
}

// Fit scales a srcW×srcH image to the largest size that fits inside a
// boxW×boxH box without changing its aspect ratio, centered in the box.
// The returned rectangle is relative to the box origin.
func Fit(srcW, srcH, boxW, boxH float64) Rect {
	if srcW <= 0 || srcH <= 0 || boxW <= 0 || boxH <= 0 {
		return Rect{}
	}

	aspect := srcW / srcH
	var w, h float64
	if aspect > boxW/boxH {
		w = boxW
		h = boxW / aspect
	} else {
		h = boxH
		w = boxH * aspect
	}
	return Rect{X: (boxW - w) / 2, Y: (boxH - h) / 2, W: w, H: h}
}

// Size of the framed artwork shown next to an analysis.
const (
	PreviewWidth  = 400
	PreviewHeight = 300
)

// Preview returns img scaled to fit inside maxW×maxH, keeping its aspect
// ratio.
func Preview(img image.Image, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	r := Fit(float64(b.Dx()), float64(b.Dy()), float64(maxW), float64(maxH))

	w, h := int(r.W+0.5), int(r.H+0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
