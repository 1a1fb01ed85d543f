package behavior

import "math"

// PathPoint is a single pointer or touch sample. T is a millisecond epoch
// timestamp from the client clock.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// PathMetrics describes movement quality over one pointer/touch path.
// AngularEntropy is the Shannon entropy (base 2) of the heading distribution;
// values under 1.0 indicate unnaturally uniform motion, typical of scripted
// input.
type PathMetrics struct {
	PathLength             float64 `json:"path_length"`
	AvgSpeed               float64 `json:"avg_speed"`
	SpeedVar               float64 `json:"speed_var"`
	DirectionChangesPerSec float64 `json:"direction_changes_per_sec"`
	AngularEntropy         float64 `json:"angular_entropy"`
}

const (
	headingBins     = 12
	turnThreshold   = math.Pi / 6
	minStepDuration = 0.001 // seconds, floor for zero-dt steps
)

// AnalyzePath computes movement metrics for an ordered path. It returns nil
// when the path has fewer than 2 points or contains non-finite coordinates;
// that is insufficient data, not an error, and contributes nothing to the
// risk score.
func AnalyzePath(path []PathPoint) *PathMetrics {
	if len(path) < 2 {
		return nil
	}
	for _, p := range path {
		if !finite(p.X) || !finite(p.Y) || !finite(p.T) {
			return nil
		}
	}

	steps := len(path) - 1
	speeds := make([]float64, 0, steps)
	angles := make([]float64, 0, steps)
	total := 0.0

	for i := 1; i < len(path); i++ {
		dx := path[i].X - path[i-1].X
		dy := path[i].Y - path[i-1].Y
		dt := (path[i].T - path[i-1].T) / 1000.0
		if dt == 0 {
			dt = minStepDuration
		}
		dist := math.Hypot(dx, dy)
		total += dist
		speeds = append(speeds, dist/dt)
		angles = append(angles, math.Atan2(dy, dx))
	}

	avg := mean(speeds)
	varSpeed := variance(speeds, avg)

	changes := 0.0
	for i := 1; i < len(angles); i++ {
		diff := math.Abs(angles[i] - angles[i-1])
		if wrapped := 2*math.Pi - diff; wrapped < diff {
			diff = wrapped
		}
		if diff > turnThreshold {
			changes++
		}
	}
	duration := (path[len(path)-1].T - path[0].T) / 1000.0
	dirChanges := changes / math.Max(duration, 1.0)

	return &PathMetrics{
		PathLength:             round2(total),
		AvgSpeed:               round2(avg),
		SpeedVar:               round2(varSpeed),
		DirectionChangesPerSec: round2(dirChanges),
		AngularEntropy:         round2(angularEntropy(angles)),
	}
}

// angularEntropy bins headings into 12 equal-width bins over (-pi, pi] and
// returns the Shannon entropy of the resulting distribution.
func angularEntropy(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	var counts [headingBins]int
	for _, a := range angles {
		idx := int((a + math.Pi) / (2 * math.Pi) * headingBins)
		if idx < 0 {
			idx = 0
		}
		if idx >= headingBins {
			idx = headingBins - 1
		}
		counts[idx]++
	}
	entropy := 0.0
	total := float64(len(angles))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
