package behavior

import "math"

// Status labels an identity's trust state after a verification event.
type Status string

const (
	StatusRegistered    Status = "Registered"
	StatusProfiled      Status = "Profiled"
	StatusAuthenticated Status = "Authenticated"
	StatusSuspicious    Status = "Suspicious"
	StatusFraudDetected Status = "FraudDetected"
	StatusLocked        Status = "Locked"
)

// SmoothingAlpha is the EMA factor for baseline updates. 98% weight on
// history resists baseline poisoning by a single anomalous session while
// still tracking legitimate long-term drift.
const SmoothingAlpha = 0.02

// Baseline is the rolling behavioral profile of one identity. All mean
// fields are non-negative; FraudScore is in [0,100]; LockedUntil is a
// millisecond epoch, zero when not locked.
type Baseline struct {
	FlightMean      float64 `json:"flight_mean"`
	DwellMean       float64 `json:"dwell_mean"`
	MouseMean       float64 `json:"mouse_mean"`
	TouchMean       float64 `json:"touch_mean"`
	ScrollMean      int     `json:"scroll_mean"`
	ScrollSpeedMean float64 `json:"scroll_speed_mean"`
	FraudScore      int     `json:"fraud_score"`
	Status          Status  `json:"status"`
	LockedUntil     int64   `json:"locked_until"`
	LastUpdate      int64   `json:"last_update"`
}

// SeedBaseline builds the first baseline for an identity directly from the
// observed sample; there is no prior to smooth against.
func SeedBaseline(s Sample, nowMs int64) *Baseline {
	return &Baseline{
		FlightMean:      round2(s.FlightMean()),
		DwellMean:       round2(s.DwellMean()),
		MouseMean:       round2(s.MouseSpeed),
		TouchMean:       round2(s.TouchSpeed),
		ScrollMean:      s.ScrollCount,
		ScrollSpeedMean: round2(s.ScrollSpeed),
		Status:          StatusProfiled,
		LastUpdate:      nowMs,
	}
}

// Smooth folds the observed features into the rolling means with exponential
// smoothing. All six fields update together; callers persist the result as
// one write.
func (b *Baseline) Smooth(s Sample) {
	b.FlightMean = ema(b.FlightMean, s.FlightMean())
	b.DwellMean = ema(b.DwellMean, s.DwellMean())
	b.MouseMean = ema(b.MouseMean, s.MouseSpeed)
	b.TouchMean = ema(b.TouchMean, s.TouchSpeed)
	b.ScrollMean = int(math.Round((1-SmoothingAlpha)*float64(b.ScrollMean) + SmoothingAlpha*float64(s.ScrollCount)))
	b.ScrollSpeedMean = ema(b.ScrollSpeedMean, s.ScrollSpeed)
}

// LockedAt reports whether the identity is inside an active lock window.
func (b *Baseline) LockedAt(nowMs int64) bool {
	return b.LockedUntil != 0 && b.LockedUntil > nowMs
}

func ema(old, observed float64) float64 {
	return round2((1-SmoothingAlpha)*old + SmoothingAlpha*observed)
}
