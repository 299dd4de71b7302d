package stitch

import (
	"math"
	"testing"
)

func TestCurveByName(t *testing.T) {
	linear, err := CurveByName(CurveLinear)
	if err != nil {
		t.Fatalf("linear curve: %v", err)
	}
	if linear(0.25) != 0.25 {
		t.Fatalf("linear(0.25) = %v", linear(0.25))
	}

	smooth, err := CurveByName(CurveSmoothstep)
	if err != nil {
		t.Fatalf("smoothstep curve: %v", err)
	}
	if smooth(0) != 0 || smooth(1) != 1 {
		t.Fatalf("smoothstep endpoints = %v, %v", smooth(0), smooth(1))
	}
	if math.Abs(smooth(0.5)-0.5) > 1e-9 {
		t.Fatalf("smoothstep(0.5) = %v", smooth(0.5))
	}
	// Smoothstep eases in slower than linear.
	if smooth(0.1) >= 0.1 {
		t.Fatalf("smoothstep(0.1) = %v, want < 0.1", smooth(0.1))
	}

	if _, err := CurveByName("hermite"); err == nil {
		t.Fatal("unknown curve accepted")
	}
}

func TestColumnWeights(t *testing.T) {
	linear, _ := CurveByName(CurveLinear)
	weights := columnWeights(10, 4, 8, linear)
	if weights[0] != 0 || weights[3] != 0 {
		t.Fatal("weights left of the blend region must be 0")
	}
	if weights[8] != 1 || weights[9] != 1 {
		t.Fatal("weights right of the blend region must be 1")
	}
	if weights[4] != 0 || math.Abs(weights[6]-0.5) > 1e-9 {
		t.Fatalf("ramp weights = %v", weights[4:8])
	}
}
