package calibrate

import (
	"image"
	"image/color"
	"testing"

	"sideline/internal/testsupport"
)

func TestShiTomasiFindsCornersOnTexture(t *testing.T) {
	img := testsupport.TexturedImage(200, 150, 4)
	features := ShiTomasiDetector{}.Detect(img, img.Bounds(), 100)
	if len(features) < 20 {
		t.Fatalf("found %d features on a corner-rich texture, want >= 20", len(features))
	}
	for _, f := range features {
		if len(f.Descriptor) != descriptorLen {
			t.Fatalf("descriptor length = %d, want %d", len(f.Descriptor), descriptorLen)
		}
	}
}

func TestShiTomasiIgnoresFlatRegions(t *testing.T) {
	img := testsupport.SolidFrame(100, 100, color.RGBA{R: 90, G: 90, B: 90, A: 255})
	features := ShiTomasiDetector{}.Detect(img, img.Bounds(), 100)
	if len(features) != 0 {
		t.Fatalf("found %d features on a flat frame", len(features))
	}
}

func TestShiTomasiHonorsRegion(t *testing.T) {
	img := testsupport.TexturedImage(200, 150, 4)
	region := image.Rect(150, 0, 200, 150)
	features := ShiTomasiDetector{}.Detect(img, region, 50)
	for _, f := range features {
		if f.X < 150 {
			t.Fatalf("feature at x=%v outside region", f.X)
		}
	}
}

func TestMatchRequiresMutualAgreement(t *testing.T) {
	a := Feature{X: 1, Y: 1, Descriptor: unitDescriptor(0)}
	b := Feature{X: 2, Y: 2, Descriptor: unitDescriptor(10)}
	// c is closest to a's descriptor but a is not closest to c.
	c := Feature{X: 3, Y: 3, Descriptor: unitDescriptor(1)}

	matches := Match([]Feature{a, b}, []Feature{c, withDescriptor(a, 0), withDescriptor(b, 10)}, 0.75)
	for _, m := range matches {
		if m.LeftX == a.X && m.RightX == c.X {
			t.Fatal("non-mutual match survived")
		}
	}
}

func unitDescriptor(hot int) []float64 {
	d := make([]float64, descriptorLen)
	d[hot%descriptorLen] = 1
	return d
}

func withDescriptor(f Feature, hot int) Feature {
	f.Descriptor = unitDescriptor(hot)
	return f
}
