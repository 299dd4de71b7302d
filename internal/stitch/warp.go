package stitch

import (
	"image"
	"math"

	"sideline/internal/calibrate"
)

// warper resamples right frames into canvas space through the inverse
// calibration transform.
type warper struct {
	inverse calibrate.Homography
	offsetX int
	offsetY int
}

func newWarper(transform calibrate.Homography, offsetX, offsetY int) (*warper, error) {
	inverse, err := transform.Inverse()
	if err != nil {
		return nil, err
	}
	return &warper{inverse: inverse, offsetX: offsetX, offsetY: offsetY}, nil
}

// sample maps one canvas pixel back into the right frame and reads it
// with bilinear interpolation. ok is false when the pixel falls
// outside the right frame's bounds, in which case the canvas region is
// filled from the left frame only.
func (w *warper) sample(right *image.RGBA, canvasX, canvasY int) (r, g, b uint8, ok bool) {
	// Canvas coordinates differ from left-frame coordinates by the
	// canvas origin offset; the calibration transform works in
	// left-frame space.
	sx, sy := w.inverse.Apply(float64(canvasX-w.offsetX), float64(canvasY-w.offsetY))

	bounds := right.Bounds()
	maxX := float64(bounds.Dx() - 1)
	maxY := float64(bounds.Dy() - 1)
	if sx < 0 || sy < 0 || sx > maxX || sy > maxY || math.IsNaN(sx) || math.IsNaN(sy) {
		return 0, 0, 0, false
	}

	x0 := int(sx)
	y0 := int(sy)
	x1 := minInt(x0+1, int(maxX))
	y1 := minInt(y0+1, int(maxY))
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	p00 := right.RGBAAt(bounds.Min.X+x0, bounds.Min.Y+y0)
	p10 := right.RGBAAt(bounds.Min.X+x1, bounds.Min.Y+y0)
	p01 := right.RGBAAt(bounds.Min.X+x0, bounds.Min.Y+y1)
	p11 := right.RGBAAt(bounds.Min.X+x1, bounds.Min.Y+y1)

	r = lerp2(p00.R, p10.R, p01.R, p11.R, fx, fy)
	g = lerp2(p00.G, p10.G, p01.G, p11.G, fx, fy)
	b = lerp2(p00.B, p10.B, p01.B, p11.B, fx, fy)
	return r, g, b, true
}

func lerp2(v00, v10, v01, v11 uint8, fx, fy float64) uint8 {
	top := float64(v00)*(1-fx) + float64(v10)*fx
	bottom := float64(v01)*(1-fx) + float64(v11)*fx
	return uint8(top*(1-fy) + bottom*fy + 0.5)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
