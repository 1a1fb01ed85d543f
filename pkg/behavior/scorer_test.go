package behavior

import "testing"

func TestCombineScoreClampInvariant(t *testing.T) {
	huge := Deviations{Flight: 1e9, Dwell: 1e9, Mouse: 1e9, Scroll: 1e9, ScrollSpeed: 1e9, Touch: 1e9}
	lowEntropy := &PathMetrics{AngularEntropy: 0.1}
	score := CombineScore(huge, lowEntropy, lowEntropy, 100)
	if score < 0 || score > 100 {
		t.Fatalf("score out of range: %d", score)
	}
	if score != 100 {
		t.Errorf("saturated inputs should clamp to 100, got %d", score)
	}

	if score := CombineScore(Deviations{}, nil, nil, 0); score != 0 {
		t.Errorf("zero inputs should score 0, got %d", score)
	}
}

func TestCombineScoreCappedSum(t *testing.T) {
	// Every deviation saturates its cap: 40+30+20+10+10+8 = 118, blended
	// with aux 0 gives round(118 * 0.7) = 83.
	huge := Deviations{Flight: 1e6, Dwell: 1e6, Mouse: 1e6, Scroll: 1e6, ScrollSpeed: 1e6, Touch: 1e6}
	score := CombineScore(huge, nil, nil, 0)
	if score != 83 {
		t.Errorf("capped sum score: got %d want 83", score)
	}
	if score <= LockThreshold {
		t.Errorf("saturated score %d should exceed the lock threshold", score)
	}
}

func TestCombineScoreEntropyBonuses(t *testing.T) {
	flat := &PathMetrics{AngularEntropy: 0.2}
	diverse := &PathMetrics{AngularEntropy: 2.5}

	// Bonuses only, no deviations: (5+3) * 0.7 = 5.6 -> 6.
	if score := CombineScore(Deviations{}, flat, flat, 0); score != 6 {
		t.Errorf("both bonuses: got %d want 6", score)
	}
	// Diverse motion earns no bonus.
	if score := CombineScore(Deviations{}, diverse, diverse, 0); score != 0 {
		t.Errorf("diverse paths: got %d want 0", score)
	}
	// Missing paths contribute nothing.
	if score := CombineScore(Deviations{}, nil, nil, 0); score != 0 {
		t.Errorf("absent paths: got %d want 0", score)
	}
}

func TestCombineScoreAuxBlend(t *testing.T) {
	// Pure auxiliary signal: 0 * 0.7 + 100 * 0.3 = 30. An external signal can
	// raise suspicion but never dominate the behavioral score.
	if score := CombineScore(Deviations{}, nil, nil, 100); score != 30 {
		t.Errorf("aux blend: got %d want 30", score)
	}
}

func TestCombineScoreSmallDeviation(t *testing.T) {
	// A 2.22% flight deviation contributes 2.22*0.25*0.7, under a point.
	score := CombineScore(Deviations{Flight: 2.22}, nil, nil, 0)
	if score != 0 {
		t.Errorf("small deviation: got %d want 0", score)
	}
}

func TestStatusForScoreBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  Status
	}{
		{0, StatusAuthenticated},
		{39, StatusAuthenticated},
		{40, StatusSuspicious},
		{69, StatusSuspicious},
		{70, StatusFraudDetected},
		{100, StatusFraudDetected},
	}
	for _, tc := range cases {
		if got := StatusForScore(tc.score); got != tc.want {
			t.Errorf("status for %d: got %s want %s", tc.score, got, tc.want)
		}
	}
}
