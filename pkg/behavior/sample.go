package behavior

// Sample is the canonical form of one session's interaction telemetry.
// Every field is already validated: numeric fields default to zero and
// sequences to empty when the raw payload is absent or malformed, so a
// corrupt telemetry packet scores as neutral instead of crashing the
// pipeline.
type Sample struct {
	Flight         []float64
	Dwell          []float64
	MouseSpeed     float64
	MousePath      []PathPoint
	TouchSpeed     float64
	TouchPath      []PathPoint
	ScrollCount    int
	ScrollSpeed    float64
	ScrollSpeeds   []float64
	ClickCount     int
	ClickPositions []PathPoint
	AuxScore       float64 // externally computed risk signal, clamped to [0,100]
	EventTime      int64   // ms epoch; 0 means "use the server clock"
}

// FlightMean and DwellMean are the scalar features the scorer compares
// against the baseline.
func (s Sample) FlightMean() float64 { return mean(s.Flight) }
func (s Sample) DwellMean() float64  { return mean(s.Dwell) }

// NormalizeSample coerces a raw decoded JSON payload into a Sample. It never
// fails: unknown keys are ignored, wrong-typed values degrade to the zero
// default, negative speeds and counts clamp to zero.
func NormalizeSample(raw map[string]any) Sample {
	s := Sample{
		Flight:         asFloatSlice(raw["flight"]),
		Dwell:          asFloatSlice(raw["dwell"]),
		MouseSpeed:     clampNonNeg(asFloat(raw["mouse_speed"])),
		MousePath:      asPath(raw["mouse_path"]),
		TouchSpeed:     clampNonNeg(asFloat(raw["touch_speed"])),
		TouchPath:      asPath(raw["touch_path"]),
		ScrollCount:    asCount(raw["scrolls"]),
		ScrollSpeed:    clampNonNeg(asFloat(raw["scroll_speed"])),
		ScrollSpeeds:   asFloatSlice(raw["scroll_speeds"]),
		ClickCount:     asCount(raw["clicks"]),
		ClickPositions: asPath(raw["click_positions"]),
		EventTime:      int64(asFloat(raw["ts"])),
	}
	aux := asFloat(raw["fraud_score"])
	if aux < 0 {
		aux = 0
	}
	if aux > 100 {
		aux = 100
	}
	s.AuxScore = aux
	if s.EventTime < 0 {
		s.EventTime = 0
	}
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		if finite(n) {
			return n
		}
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asCount(v any) int {
	n := asFloat(v)
	if n < 0 {
		return 0
	}
	return int(n)
}

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func asFloatSlice(v any) []float64 {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		out = append(out, asFloat(item))
	}
	return out
}

func asPath(v any) []PathPoint {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]PathPoint, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, PathPoint{
			X: asFloat(m["x"]),
			Y: asFloat(m["y"]),
			T: asFloat(m["t"]),
		})
	}
	return out
}
