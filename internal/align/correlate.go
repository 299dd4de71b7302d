package align

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// confidenceCap bounds the peak sharpness ratio when no competing
// local maximum exists.
const confidenceCap = 10.0

// CorrelationResult is the outcome of an FFT cross-correlation between
// two waveforms.
type CorrelationResult struct {
	// LagSeconds is positive when the right waveform's content appears
	// later in the left waveform, matching the session offset sign.
	LagSeconds float64
	// Confidence is the ratio of the correlation peak to the
	// second-highest local maximum, capped at confidenceCap.
	Confidence float64
}

// Correlate finds the lag that maximizes normalized cross-correlation
// between the two sample streams, searching within +/-maxLagSeconds.
func Correlate(left, right []float64, sampleRate int, maxLagSeconds float64) (CorrelationResult, error) {
	if sampleRate <= 0 {
		return CorrelationResult{}, fmt.Errorf("correlate: invalid sample rate %d", sampleRate)
	}
	maxLag := int(maxLagSeconds * float64(sampleRate))
	if maxLag <= 0 {
		return CorrelationResult{}, fmt.Errorf("correlate: max lag %.2fs too small", maxLagSeconds)
	}
	if len(left) < sampleRate || len(right) < sampleRate {
		return CorrelationResult{}, fmt.Errorf("correlate: need at least one second of audio, have %d and %d samples", len(left), len(right))
	}
	if maxLag >= len(left) || maxLag >= len(right) {
		return CorrelationResult{}, fmt.Errorf("correlate: lag window %d exceeds stream length", maxLag)
	}

	corr, n := circularCorrelation(normalize(left), normalize(right))

	// Lag k lives at corr[k] for k >= 0 and corr[n+k] for k < 0.
	value := func(lag int) float64 {
		return corr[(lag+n)%n]
	}

	bestLag := -maxLag
	bestVal := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if v := value(lag); v > bestVal {
			bestVal = v
			bestLag = lag
		}
	}
	if bestVal <= 0 {
		return CorrelationResult{}, fmt.Errorf("correlate: no positive correlation peak within %.2fs lag", maxLagSeconds)
	}

	// The second-highest local maximum outside the peak's neighborhood
	// measures how distinctive the peak is. Echoes and periodic content
	// produce close competitors and a low ratio.
	separation := sampleRate / 20
	if separation < 1 {
		separation = 1
	}
	second := 0.0
	for lag := -maxLag + 1; lag < maxLag; lag++ {
		if abs(lag-bestLag) <= separation {
			continue
		}
		v := value(lag)
		if v > value(lag-1) && v > value(lag+1) && v > second {
			second = v
		}
	}

	confidence := confidenceCap
	if second > 0 {
		confidence = bestVal / second
		if confidence > confidenceCap {
			confidence = confidenceCap
		}
	}

	return CorrelationResult{
		LagSeconds: float64(bestLag) / float64(sampleRate),
		Confidence: confidence,
	}, nil
}

// circularCorrelation returns corr[k] = sum_i left[i+k]*right[i] over a
// zero-padded window large enough to prevent wraparound aliasing.
func circularCorrelation(left, right []float64) ([]float64, int) {
	n := nextPowerOfTwo(len(left) + len(right))
	paddedLeft := make([]float64, n)
	copy(paddedLeft, left)
	paddedRight := make([]float64, n)
	copy(paddedRight, right)

	fft := fourier.NewFFT(n)
	leftCoeffs := fft.Coefficients(nil, paddedLeft)
	rightCoeffs := fft.Coefficients(nil, paddedRight)
	product := make([]complex128, len(leftCoeffs))
	for i := range product {
		product[i] = leftCoeffs[i] * cmplx.Conj(rightCoeffs[i])
	}

	corr := fft.Sequence(nil, product)
	scale := 1 / float64(n)
	for i := range corr {
		corr[i] *= scale
	}
	return corr, n
}

// normalize returns a zero-mean unit-variance copy of the samples.
func normalize(samples []float64) []float64 {
	mean, std := stat.MeanStdDev(samples, nil)
	out := make([]float64, len(samples))
	if std == 0 || math.IsNaN(std) {
		copy(out, samples)
		return out
	}
	for i, s := range samples {
		out[i] = (s - mean) / std
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
