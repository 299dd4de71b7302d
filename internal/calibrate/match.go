package calibrate

import "math"

// Correspondence pairs a left-frame point with its matched right-frame
// point.
type Correspondence struct {
	LeftX, LeftY   float64
	RightX, RightY float64
}

// Match pairs features by descriptor similarity. Only mutually-best
// matches survive, and each must beat its runner-up by the ratio test
// to suppress ambiguous repeats like fence posts or windows.
func Match(left, right []Feature, ratio float64) []Correspondence {
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 0.75
	}

	bestForLeft := nearestPairs(left, right, ratio)
	bestForRight := nearestPairs(right, left, ratio)

	var matches []Correspondence
	for li, ri := range bestForLeft {
		if ri < 0 {
			continue
		}
		if bestForRight[ri] != li {
			continue
		}
		matches = append(matches, Correspondence{
			LeftX:  left[li].X,
			LeftY:  left[li].Y,
			RightX: right[ri].X,
			RightY: right[ri].Y,
		})
	}
	return matches
}

// nearestPairs returns, for each query feature, the index of its best
// candidate or -1 when the ratio test fails.
func nearestPairs(queries, candidates []Feature, ratio float64) []int {
	result := make([]int, len(queries))
	for qi, q := range queries {
		best, second := math.Inf(1), math.Inf(1)
		bestIdx := -1
		for ci, c := range candidates {
			d := descriptorDistance(q.Descriptor, c.Descriptor)
			if d < best {
				second = best
				best = d
				bestIdx = ci
			} else if d < second {
				second = d
			}
		}
		// With unit-length descriptors a perfect match has distance 0;
		// require a clear margin over the runner-up.
		if bestIdx >= 0 && (second == math.Inf(1) || best < ratio*ratio*second) {
			result[qi] = bestIdx
		} else {
			result[qi] = -1
		}
	}
	return result
}

// descriptorDistance is the squared euclidean distance between two
// descriptors.
func descriptorDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
