package stitch

import "fmt"

// Curve names accepted in configuration and calibration records.
const (
	CurveLinear     = "linear"
	CurveSmoothstep = "smoothstep"
)

// Curve maps a normalized position t in [0, 1] across the blend region
// to the right-frame weight at that column.
type Curve func(t float64) float64

// CurveByName resolves a blend curve name.
func CurveByName(name string) (Curve, error) {
	switch name {
	case CurveLinear, "":
		return func(t float64) float64 { return t }, nil
	case CurveSmoothstep:
		return func(t float64) float64 { return t * t * (3 - 2*t) }, nil
	default:
		return nil, fmt.Errorf("unknown blend curve %q", name)
	}
}

// columnWeights precomputes the per-column right-frame weight across
// the full canvas width: 0 left of the blend region, the curve ramp
// inside it, 1 to the right of it.
func columnWeights(width, blendStart, blendEnd int, curve Curve) []float64 {
	weights := make([]float64, width)
	span := float64(blendEnd - blendStart)
	for x := 0; x < width; x++ {
		switch {
		case x < blendStart:
			weights[x] = 0
		case x >= blendEnd:
			weights[x] = 1
		default:
			weights[x] = curve(float64(x-blendStart) / span)
		}
	}
	return weights
}
