package behavior

import "testing"

func TestSmoothExponentialUpdate(t *testing.T) {
	b := &Baseline{FlightMean: 10.0}
	b.Smooth(Sample{Flight: []float64{20, 20, 20}})
	if b.FlightMean != 10.2 {
		t.Errorf("smoothed flight mean: got %v want 10.2", b.FlightMean)
	}
}

func TestSmoothAllFields(t *testing.T) {
	b := &Baseline{
		FlightMean:      100,
		DwellMean:       50,
		MouseMean:       10,
		TouchMean:       4,
		ScrollMean:      10,
		ScrollSpeedMean: 2,
	}
	b.Smooth(Sample{
		Flight:      []float64{200},
		Dwell:       []float64{100},
		MouseSpeed:  20,
		TouchSpeed:  8,
		ScrollCount: 60,
		ScrollSpeed: 4,
	})
	if b.FlightMean != 102 {
		t.Errorf("flight: got %v want 102", b.FlightMean)
	}
	if b.DwellMean != 51 {
		t.Errorf("dwell: got %v want 51", b.DwellMean)
	}
	if b.MouseMean != 10.2 {
		t.Errorf("mouse: got %v want 10.2", b.MouseMean)
	}
	if b.TouchMean != 4.08 {
		t.Errorf("touch: got %v want 4.08", b.TouchMean)
	}
	// 0.98*10 + 0.02*60 = 11, rounded to the nearest integer.
	if b.ScrollMean != 11 {
		t.Errorf("scroll: got %v want 11", b.ScrollMean)
	}
	if b.ScrollSpeedMean != 2.04 {
		t.Errorf("scroll speed: got %v want 2.04", b.ScrollSpeedMean)
	}
}

func TestSeedBaselineFromSample(t *testing.T) {
	s := Sample{
		Flight:      []float64{120, 130, 110},
		Dwell:       []float64{80, 90, 85},
		MouseSpeed:  5.5,
		ScrollCount: 2,
	}
	b := SeedBaseline(s, 1700000000000)
	if b.FlightMean != 120.0 {
		t.Errorf("flight mean: got %v want 120.0", b.FlightMean)
	}
	if b.DwellMean != 85.0 {
		t.Errorf("dwell mean: got %v want 85.0", b.DwellMean)
	}
	if b.MouseMean != 5.5 {
		t.Errorf("mouse mean: got %v want 5.5", b.MouseMean)
	}
	if b.ScrollMean != 2 {
		t.Errorf("scroll mean: got %v want 2", b.ScrollMean)
	}
	if b.Status != StatusProfiled {
		t.Errorf("status: got %s want %s", b.Status, StatusProfiled)
	}
	if b.LockedUntil != 0 {
		t.Errorf("fresh baseline must not be locked, got %d", b.LockedUntil)
	}
}

func TestLockedAt(t *testing.T) {
	b := &Baseline{LockedUntil: 2000}
	if !b.LockedAt(1999) {
		t.Error("expected locked before expiry")
	}
	if b.LockedAt(2000) {
		t.Error("expected unlocked at expiry")
	}
	if (&Baseline{}).LockedAt(1) {
		t.Error("zero LockedUntil must never report locked")
	}
}
