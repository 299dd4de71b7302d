package calibrate

import (
	"math"
	"math/rand"
)

// ransacResult carries the winning transform and its support.
type ransacResult struct {
	homography Homography
	inliers    []int
}

// ransacHomography estimates the transform robustly: repeatedly fit a
// candidate from a minimal four-point sample, count inliers under the
// pixel threshold, keep the largest consensus set, then refine on all
// of its inliers.
func ransacHomography(corrs []Correspondence, iterations int, threshold float64, rng *rand.Rand) (ransacResult, bool) {
	if len(corrs) < 4 {
		return ransacResult{}, false
	}
	if iterations <= 0 {
		iterations = 1000
	}
	thresholdSq := threshold * threshold

	var best ransacResult
	indices := make([]int, 4)
	sample := make([]Correspondence, 4)
	for iter := 0; iter < iterations; iter++ {
		sampleDistinct(rng, len(corrs), indices)
		for i, idx := range indices {
			sample[i] = corrs[idx]
		}
		candidate, err := estimateHomography(sample)
		if err != nil {
			continue
		}

		var inliers []int
		for i, c := range corrs {
			px, py := candidate.Apply(c.RightX, c.RightY)
			dx := px - c.LeftX
			dy := py - c.LeftY
			if dx*dx+dy*dy <= thresholdSq {
				inliers = append(inliers, i)
			}
		}
		if len(inliers) > len(best.inliers) {
			best = ransacResult{homography: candidate, inliers: inliers}
		}
	}
	if len(best.inliers) < 4 {
		return ransacResult{}, false
	}

	// Least-squares refinement over the full consensus set.
	support := make([]Correspondence, len(best.inliers))
	for i, idx := range best.inliers {
		support[i] = corrs[idx]
	}
	refined, err := estimateHomography(support)
	if err == nil {
		// Recount inliers under the refined transform; refinement can
		// pull borderline points in or push them out.
		var inliers []int
		for i, c := range corrs {
			px, py := refined.Apply(c.RightX, c.RightY)
			dx := px - c.LeftX
			dy := py - c.LeftY
			if dx*dx+dy*dy <= thresholdSq {
				inliers = append(inliers, i)
			}
		}
		if len(inliers) >= len(best.inliers) {
			best = ransacResult{homography: refined, inliers: inliers}
		}
	}
	return best, true
}

// sampleDistinct fills dst with distinct random indices in [0, n).
func sampleDistinct(rng *rand.Rand, n int, dst []int) {
	for i := range dst {
		for {
			v := rng.Intn(n)
			distinct := true
			for j := 0; j < i; j++ {
				if dst[j] == v {
					distinct = false
					break
				}
			}
			if distinct {
				dst[i] = v
				break
			}
		}
	}
}

// plausibleTransform rejects transforms a side-by-side camera rig
// cannot physically produce: near-singular matrices, extreme scale, or
// strong perspective terms.
func plausibleTransform(h Homography) bool {
	if !h.IsFinite() {
		return false
	}
	det := h.Det()
	if math.Abs(det) < 1e-6 || math.Abs(det) > 1e6 {
		return false
	}
	// Upper-left block carries scale and rotation. A rig of matched
	// cameras stays within an order of magnitude of unit scale.
	scaleX := math.Hypot(h[0], h[3])
	scaleY := math.Hypot(h[1], h[4])
	if scaleX < 0.1 || scaleX > 10 || scaleY < 0.1 || scaleY > 10 {
		return false
	}
	// Perspective terms stay small for near-coplanar sensors.
	if math.Abs(h[6]) > 0.01 || math.Abs(h[7]) > 0.01 {
		return false
	}
	return true
}
