package calibrate

import (
	"errors"
	"math"
)

// Canvas describes the output panorama geometry. OffsetX/OffsetY is
// where the unwarped left frame's origin lands on the canvas, which is
// nonzero whenever the warped right frame extends above or left of it.
type Canvas struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// BlendRegion is the horizontal canvas span where both frames
// contribute.
type BlendRegion struct {
	XStart int
	XEnd   int
}

var errNoOverlap = errors.New("warped frames do not overlap")

// deriveCanvas projects the right frame's corners through the
// transform and computes the bounding box containing both the left
// frame and the warped right frame, plus the blend span where they
// overlap.
func deriveCanvas(h Homography, leftW, leftH, rightW, rightH int) (Canvas, BlendRegion, error) {
	corners := [4][2]float64{
		{0, 0},
		{float64(rightW), 0},
		{0, float64(rightH)},
		{float64(rightW), float64(rightH)},
	}
	warpedMinX, warpedMinY := math.Inf(1), math.Inf(1)
	warpedMaxX, warpedMaxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range corners {
		x, y := h.Apply(corner[0], corner[1])
		if math.IsInf(x, 0) || math.IsInf(y, 0) {
			return Canvas{}, BlendRegion{}, errors.New("right frame corner projects to infinity")
		}
		warpedMinX = math.Min(warpedMinX, x)
		warpedMinY = math.Min(warpedMinY, y)
		warpedMaxX = math.Max(warpedMaxX, x)
		warpedMaxY = math.Max(warpedMaxY, y)
	}

	minX := math.Min(0, warpedMinX)
	minY := math.Min(0, warpedMinY)
	maxX := math.Max(float64(leftW), warpedMaxX)
	maxY := math.Max(float64(leftH), warpedMaxY)

	canvas := Canvas{
		Width:   int(math.Ceil(maxX - minX)),
		Height:  int(math.Ceil(maxY - minY)),
		OffsetX: int(math.Round(-minX)),
		OffsetY: int(math.Round(-minY)),
	}

	// Blend span in canvas coordinates: where the left frame extent and
	// the warped right extent overlap horizontally.
	leftStart := canvas.OffsetX
	leftEnd := canvas.OffsetX + leftW
	rightStart := canvas.OffsetX + int(math.Floor(warpedMinX))
	rightEnd := canvas.OffsetX + int(math.Ceil(warpedMaxX))

	blend := BlendRegion{
		XStart: maxInt(leftStart, rightStart),
		XEnd:   minInt(leftEnd, rightEnd),
	}
	if blend.XEnd <= blend.XStart {
		return Canvas{}, BlendRegion{}, errNoOverlap
	}
	return canvas, blend, nil
}
