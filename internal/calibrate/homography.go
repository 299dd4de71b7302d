package calibrate

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 planar projective transform in row-major order,
// mapping right-frame coordinates into left-frame coordinates.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps a right-frame point through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// Det returns the determinant of the transform matrix.
func (h Homography) Det() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// Inverse returns the inverse transform.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, err
	}
	var out Homography
	copy(out[:], inv.RawMatrix().Data)
	return out, nil
}

// IsFinite reports whether all entries are finite numbers.
func (h Homography) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

var errDegenerateSample = errors.New("degenerate point configuration")

// estimateHomography solves the direct linear transform for the
// correspondences, with Hartley normalization for numeric
// conditioning. At least four correspondences are required.
func estimateHomography(corrs []Correspondence) (Homography, error) {
	if len(corrs) < 4 {
		return Homography{}, errDegenerateSample
	}

	rightNorm, tRight := normalizingTransform(corrs, func(c Correspondence) (float64, float64) {
		return c.RightX, c.RightY
	})
	leftNorm, tLeft := normalizingTransform(corrs, func(c Correspondence) (float64, float64) {
		return c.LeftX, c.LeftY
	})
	if rightNorm == nil || leftNorm == nil {
		return Homography{}, errDegenerateSample
	}

	// Each correspondence contributes two rows of the 2n x 9 DLT system.
	a := mat.NewDense(2*len(corrs), 9, nil)
	for i := range corrs {
		rx, ry := rightNorm[i][0], rightNorm[i][1]
		lx, ly := leftNorm[i][0], leftNorm[i][1]
		a.SetRow(2*i, []float64{rx, ry, 1, 0, 0, 0, -lx * rx, -lx * ry, -lx})
		a.SetRow(2*i+1, []float64{0, 0, 0, rx, ry, 1, -ly * rx, -ly * ry, -ly})
	}

	// Full factorization: with a minimal 4-point sample the system is
	// 8x9 and the null-space vector only appears in the full V.
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Homography{}, errors.New("homography: SVD failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	// The null-space direction is the right singular vector of the
	// smallest singular value.
	_, cols := v.Dims()
	var hn Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, cols-1)
	}

	// Denormalize: H = inv(T_left) * Hn * T_right.
	hnMat := mat.NewDense(3, 3, hn[:])
	var invLeft mat.Dense
	if err := invLeft.Inverse(tLeft); err != nil {
		return Homography{}, errDegenerateSample
	}
	var tmp, result mat.Dense
	tmp.Mul(hnMat, tRight)
	result.Mul(&invLeft, &tmp)

	var h Homography
	copy(h[:], result.RawMatrix().Data)
	if h[8] == 0 || !h.IsFinite() {
		return Homography{}, errDegenerateSample
	}
	for i := range h {
		h[i] /= h[8]
	}
	return h, nil
}

// normalizingTransform shifts points to zero centroid and scales their
// mean distance from origin to sqrt(2), returning the normalized
// points and the similarity transform that produced them.
func normalizingTransform(corrs []Correspondence, pick func(Correspondence) (float64, float64)) ([][2]float64, *mat.Dense) {
	n := float64(len(corrs))
	var cx, cy float64
	for _, c := range corrs {
		x, y := pick(c)
		cx += x
		cy += y
	}
	cx /= n
	cy /= n

	var meanDist float64
	for _, c := range corrs {
		x, y := pick(c)
		meanDist += math.Hypot(x-cx, y-cy)
	}
	meanDist /= n
	if meanDist < 1e-9 {
		return nil, nil
	}
	scale := math.Sqrt2 / meanDist

	points := make([][2]float64, len(corrs))
	for i, c := range corrs {
		x, y := pick(c)
		points[i] = [2]float64{(x - cx) * scale, (y - cy) * scale}
	}
	transform := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})
	return points, transform
}
