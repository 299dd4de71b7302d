package calibrate

import (
	"image"
	"math"
	"sort"
)

const (
	// patchRadius sets the descriptor sample window. A 9x9 normalized
	// intensity patch is enough to disambiguate corners between two
	// near-coplanar camera views.
	patchRadius   = 4
	descriptorLen = (2*patchRadius + 1) * (2*patchRadius + 1)

	// responseFloor discards corners weaker than this fraction of the
	// strongest response in the frame.
	responseFloor = 0.01

	// suppressionRadius is the non-maximum suppression distance in
	// pixels between accepted corners.
	suppressionRadius = 8
)

// Feature is a detected corner with its appearance descriptor.
type Feature struct {
	X, Y       float64
	Score      float64
	Descriptor []float64
}

// Detector finds matchable features inside a region of a frame.
// Implementations must only return features whose descriptor windows
// fit fully inside the image.
type Detector interface {
	Detect(img *image.RGBA, region image.Rectangle, maxFeatures int) []Feature
}

// ShiTomasiDetector scores corners by the smaller eigenvalue of the
// local gradient structure tensor and describes them with normalized
// intensity patches.
type ShiTomasiDetector struct{}

// Detect implements Detector.
func (ShiTomasiDetector) Detect(img *image.RGBA, region image.Rectangle, maxFeatures int) []Feature {
	bounds := img.Bounds()
	region = region.Intersect(bounds)
	if region.Empty() || maxFeatures <= 0 {
		return nil
	}

	gray := toGray(img)
	width := bounds.Dx()
	height := bounds.Dy()

	// Sobel gradients over the full frame; the region only gates where
	// corners may be anchored, not what their windows may sample.
	gx := make([]float64, width*height)
	gy := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			gx[i] = gray[i-width+1] + 2*gray[i+1] + gray[i+width+1] -
				gray[i-width-1] - 2*gray[i-1] - gray[i+width-1]
			gy[i] = gray[i+width-1] + 2*gray[i+width] + gray[i+width+1] -
				gray[i-width-1] - 2*gray[i-width] - gray[i-width+1]
		}
	}

	margin := patchRadius + 2
	minX := maxInt(region.Min.X-bounds.Min.X, margin)
	maxX := minInt(region.Max.X-bounds.Min.X, width-margin)
	minY := maxInt(region.Min.Y-bounds.Min.Y, margin)
	maxY := minInt(region.Max.Y-bounds.Min.Y, height-margin)

	type candidate struct {
		x, y  int
		score float64
	}
	var candidates []candidate
	best := 0.0
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			// 3x3 structure tensor around (x, y).
			var sxx, syy, sxy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					i := (y+dy)*width + (x + dx)
					sxx += gx[i] * gx[i]
					syy += gy[i] * gy[i]
					sxy += gx[i] * gy[i]
				}
			}
			// Smaller eigenvalue of [[sxx sxy] [sxy syy]].
			trace := sxx + syy
			diff := sxx - syy
			lambda := (trace - math.Sqrt(diff*diff+4*sxy*sxy)) / 2
			if lambda > 0 {
				candidates = append(candidates, candidate{x: x, y: y, score: lambda})
				if lambda > best {
					best = lambda
				}
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	floor := best * responseFloor
	features := make([]Feature, 0, maxFeatures)
	taken := make([]candidate, 0, maxFeatures)
	for _, c := range candidates {
		if c.score < floor || len(features) >= maxFeatures {
			break
		}
		suppressed := false
		for _, prev := range taken {
			dx := c.x - prev.x
			dy := c.y - prev.y
			if dx*dx+dy*dy < suppressionRadius*suppressionRadius {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		taken = append(taken, c)
		features = append(features, Feature{
			X:          float64(c.x),
			Y:          float64(c.y),
			Score:      c.score,
			Descriptor: describePatch(gray, width, c.x, c.y),
		})
	}
	return features
}

// describePatch samples the intensity window around the corner and
// normalizes it to zero mean and unit length, giving invariance to
// brightness and contrast differences between the two cameras.
func describePatch(gray []float64, width, cx, cy int) []float64 {
	desc := make([]float64, 0, descriptorLen)
	var sum float64
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			v := gray[(cy+dy)*width+(cx+dx)]
			desc = append(desc, v)
			sum += v
		}
	}
	mean := sum / float64(len(desc))
	var norm float64
	for i := range desc {
		desc[i] -= mean
		norm += desc[i] * desc[i]
	}
	norm = math.Sqrt(norm)
	if norm > 1e-9 {
		for i := range desc {
			desc[i] /= norm
		}
	}
	return desc
}

func toGray(img *image.RGBA) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	gray := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := img.Pix[(y+bounds.Min.Y-img.Rect.Min.Y)*img.Stride:]
		for x := 0; x < width; x++ {
			p := row[(x+bounds.Min.X-img.Rect.Min.X)*4:]
			gray[y*width+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return gray
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
