package behavior

import "math"

// Deviations holds the per-feature percentage deviations of one sample from
// the identity baseline.
type Deviations struct {
	Flight      float64
	Dwell       float64
	Mouse       float64
	Scroll      float64
	ScrollSpeed float64
	Touch       float64
}

// ComputeDeviations measures each scalar feature against its baseline mean.
func ComputeDeviations(s Sample, b *Baseline) Deviations {
	return Deviations{
		Flight:      PercentDeviation(s.FlightMean(), b.FlightMean),
		Dwell:       PercentDeviation(s.DwellMean(), b.DwellMean),
		Mouse:       PercentDeviation(s.MouseSpeed, b.MouseMean),
		Scroll:      PercentDeviation(float64(s.ScrollCount), float64(b.ScrollMean)),
		ScrollSpeed: PercentDeviation(s.ScrollSpeed, b.ScrollSpeedMean),
		Touch:       PercentDeviation(s.TouchSpeed, b.TouchMean),
	}
}

// Per-feature contribution weights and caps, in percentage points of the
// final 0-100 score.
var scoreTerms = []struct {
	weight float64
	cap    float64
	pick   func(Deviations) float64
}{
	{0.25, 40, func(d Deviations) float64 { return d.Flight }},
	{0.20, 30, func(d Deviations) float64 { return d.Dwell }},
	{0.15, 20, func(d Deviations) float64 { return d.Mouse }},
	{0.10, 10, func(d Deviations) float64 { return d.Scroll }},
	{0.10, 10, func(d Deviations) float64 { return d.ScrollSpeed }},
	{0.08, 8, func(d Deviations) float64 { return d.Touch }},
}

const (
	lowEntropyThreshold = 1.0
	mouseEntropyBonus   = 5
	touchEntropyBonus   = 3
	auxBlendWeight      = 0.3
)

// CombineScore folds the feature deviations, the path anomaly signals, and
// the externally supplied auxiliary score into one bounded risk score.
// Each deviation term is weighted and capped; low angular entropy on either
// path adds a flat bonus; the raw sum is then blended 70/30 with the
// auxiliary score and clamped to [0,100].
func CombineScore(d Deviations, mouse, touch *PathMetrics, auxScore float64) int {
	raw := 0.0
	for _, term := range scoreTerms {
		raw += math.Min(term.pick(d)*term.weight, term.cap)
	}
	if mouse != nil && mouse.AngularEntropy < lowEntropyThreshold {
		raw += mouseEntropyBonus
	}
	if touch != nil && touch.AngularEntropy < lowEntropyThreshold {
		raw += touchEntropyBonus
	}

	blended := raw*(1-auxBlendWeight) + auxScore*auxBlendWeight
	if blended < 0 {
		blended = 0
	}
	if blended > 100 {
		blended = 100
	}
	return int(math.Round(blended))
}

// StatusForScore maps a non-locking score to its trust label. The lock
// decision uses a separate threshold and is taken before this mapping.
func StatusForScore(score int) Status {
	switch {
	case score < 40:
		return StatusAuthenticated
	case score < 70:
		return StatusSuspicious
	default:
		return StatusFraudDetected
	}
}
