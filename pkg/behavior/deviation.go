package behavior

import "math"

// PercentDeviation returns the normalized distance of an observed feature
// from its baseline, scaled to 0-100. A zero baseline gives no meaningful
// reference: a zero observation matches it (0), anything else is treated as
// fully anomalous (100). Non-finite inputs or results also come back as 100;
// the calculator fails toward suspicion, never toward trust.
func PercentDeviation(observed, baseline float64) float64 {
	if !finite(observed) || !finite(baseline) {
		return 100
	}
	if baseline == 0 {
		if observed == 0 {
			return 0
		}
		return 100
	}
	dev := math.Abs((observed-baseline)/baseline) * 100
	if !finite(dev) {
		return 100
	}
	return dev
}
