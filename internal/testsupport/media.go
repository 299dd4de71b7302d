package testsupport

import (
	"image"
	"image/color"
	"math"
	"math/rand"
)

// TexturedImage renders a reproducible corner-rich texture: a shaded base
// with randomly placed solid rectangles. Feature detectors need texture with
// strong gradients; plain gradients or flat fills produce no usable corners.
func TexturedImage(width, height int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			shade := uint8(40 + (x*13+y*7)%60)
			img.SetRGBA(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}

	blocks := (width * height) / 900
	if blocks < 24 {
		blocks = 24
	}
	for i := 0; i < blocks; i++ {
		bw := 4 + rng.Intn(14)
		bh := 4 + rng.Intn(14)
		bx := rng.Intn(maxInt(width-bw, 1))
		by := rng.Intn(maxInt(height-bh, 1))
		c := color.RGBA{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		}
		for y := by; y < by+bh; y++ {
			for x := bx; x < bx+bw; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	return img
}

// OverlappingPair cuts a left and right camera view out of one wide textured
// scene. The two views share overlap columns, so the ground-truth homography
// mapping right into left coordinates is the pure translation
// x_left = x_right + (width - overlap).
func OverlappingPair(width, height, overlap int, seed int64) (left, right *image.RGBA) {
	sceneWidth := 2*width - overlap
	scene := TexturedImage(sceneWidth, height, seed)

	left = image.NewRGBA(image.Rect(0, 0, width, height))
	right = image.NewRGBA(image.Rect(0, 0, width, height))
	shift := width - overlap
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			left.SetRGBA(x, y, scene.RGBAAt(x, y))
			right.SetRGBA(x, y, scene.RGBAAt(x+shift, y))
		}
	}
	return left, right
}

// SolidFrame returns a uniformly colored frame.
func SolidFrame(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// FrameSequence repeats variations of a base frame to build a short clip.
// Each frame gets a distinct marker column so ordering bugs are visible.
func FrameSequence(base *image.RGBA, count int) []*image.RGBA {
	frames := make([]*image.RGBA, 0, count)
	bounds := base.Bounds()
	for i := 0; i < count; i++ {
		frame := image.NewRGBA(bounds)
		copy(frame.Pix, base.Pix)
		marker := uint8(i % 256)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			frame.SetRGBA(bounds.Min.X, y, color.RGBA{R: marker, G: marker, B: marker, A: 255})
		}
		frames = append(frames, frame)
	}
	return frames
}

// NoiseWaveform produces a reproducible pseudo-random mono waveform with
// enough broadband energy for an unambiguous correlation peak.
func NoiseWaveform(samples int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	wave := make([]float64, samples)
	for i := range wave {
		wave[i] = rng.Float64()*2 - 1
	}
	return wave
}

// ShiftedWaveform delays wave by the given number of samples, padding the
// gap with near-silence. out[i] == wave[i-shift], so a positive shift moves
// the shared audio later in the returned recording.
func ShiftedWaveform(wave []float64, shift int) []float64 {
	out := make([]float64, len(wave))
	for i := range out {
		j := i - shift
		if j >= 0 && j < len(wave) {
			out[i] = wave[j]
		} else {
			out[i] = math.Sin(float64(i)) * 1e-4
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
