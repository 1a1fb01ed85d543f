package behavior

import (
	"math"
	"testing"
)

func TestPercentDeviationIdentity(t *testing.T) {
	for _, x := range []float64{0.5, 5.5, 120, 9999} {
		if d := PercentDeviation(x, x); d != 0 {
			t.Errorf("deviation(%v, %v): got %v want 0", x, x, d)
		}
	}
}

func TestPercentDeviationZeroBaseline(t *testing.T) {
	if d := PercentDeviation(0, 0); d != 0 {
		t.Errorf("deviation(0, 0): got %v want 0", d)
	}
	if d := PercentDeviation(5, 0); d != 100 {
		t.Errorf("deviation(5, 0): got %v want 100", d)
	}
}

func TestPercentDeviationScaling(t *testing.T) {
	if d := PercentDeviation(150, 100); d != 50 {
		t.Errorf("deviation(150, 100): got %v want 50", d)
	}
	if d := PercentDeviation(50, 100); d != 50 {
		t.Errorf("deviation(50, 100): got %v want 50", d)
	}
	// Large deviations pass through uncapped; capping is the scorer's job.
	if d := PercentDeviation(1200, 120); d != 900 {
		t.Errorf("deviation(1200, 120): got %v want 900", d)
	}
}

func TestPercentDeviationFailsTowardSuspicion(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if d := PercentDeviation(bad, 10); d != 100 {
			t.Errorf("deviation(%v, 10): got %v want 100", bad, d)
		}
		if d := PercentDeviation(10, bad); d != 100 {
			t.Errorf("deviation(10, %v): got %v want 100", bad, d)
		}
	}
}
