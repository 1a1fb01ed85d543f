package behavior

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lockout parameters. The lock threshold (60) is deliberately lower than the
// FraudDetected label threshold (70): a session can lock without carrying the
// fraud label, and vice versa. Both are kept distinct on purpose.
const (
	LockThreshold = 60
	LockWindowMs  = 60_000
)

// Store is the persistence collaborator. LoadBaseline returns (nil, nil)
// for an unknown identity. The engine calls all three methods while holding
// the per-identity lock, so implementations see at most one in-flight
// verification per identity from a single process.
type Store interface {
	LoadBaseline(ctx context.Context, identity string) (*Baseline, error)
	SaveBaseline(ctx context.Context, identity string, b *Baseline) error
	AppendHistory(ctx context.Context, identity string, rec HistoryRecord) error
}

// HistoryRecord is the immutable audit record for one verification event.
// The engine creates it; the store owns it thereafter.
type HistoryRecord struct {
	ID             string       `json:"id"`
	Identity       string       `json:"username"`
	Timestamp      int64        `json:"ts"`
	FlightMean     float64      `json:"flight"`
	DwellMean      float64      `json:"dwell"`
	MouseSpeed     float64      `json:"mouse_speed"`
	TouchSpeed     float64      `json:"touch_speed"`
	ScrollCount    int          `json:"scrolls"`
	ScrollSpeed    float64      `json:"scroll_speed"`
	ScrollSpeeds   []float64    `json:"scroll_speeds,omitempty"`
	ClickCount     int          `json:"clicks"`
	ClickPositions []PathPoint  `json:"click_positions,omitempty"`
	MouseMetrics   *PathMetrics `json:"mouse_metrics,omitempty"`
	TouchMetrics   *PathMetrics `json:"touch_metrics,omitempty"`
	Score          int          `json:"fraud"`
	Status         Status       `json:"status"`
}

// VerifyResult is the outcome of one verification event.
type VerifyResult struct {
	Status      Status `json:"status"`
	Score       int    `json:"fraud_score"`
	Confidence  int    `json:"confidence"`
	LockedUntil int64  `json:"locked_until,omitempty"`
}

// Engine runs the risk-scoring pipeline. It holds no process-wide state
// beyond the per-identity lock table; persistence is delegated to the Store.
// Safe for concurrent use; verifications for the same identity serialize on
// a keyed mutex so the check-lock, compute, update sequence is atomic per
// identity.
type Engine struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) identityLock(identity string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		e.locks[identity] = l
	}
	return l
}

// Verify scores one session sample against the identity's baseline and
// applies the resulting state transition. Unknown identities get a baseline
// seeded from the sample and the Profiled status. Only store failures
// surface as errors; every internal computation has a defined fallback.
func (e *Engine) Verify(ctx context.Context, identity string, s Sample) (VerifyResult, error) {
	lock := e.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	nowMs := e.now().UnixMilli()
	eventTime := s.EventTime
	if eventTime == 0 {
		eventTime = nowMs
	}

	baseline, err := e.store.LoadBaseline(ctx, identity)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load baseline for %s: %w", identity, err)
	}

	// Active lock short-circuits: report the stored score, touch nothing.
	if baseline != nil && baseline.LockedAt(nowMs) {
		return VerifyResult{
			Status:      StatusLocked,
			Score:       baseline.FraudScore,
			LockedUntil: baseline.LockedUntil,
		}, nil
	}

	mouseMetrics := AnalyzePath(s.MousePath)
	touchMetrics := AnalyzePath(s.TouchPath)

	fresh := baseline == nil
	if fresh {
		baseline = SeedBaseline(s, eventTime)
	}

	devs := ComputeDeviations(s, baseline)
	score := CombineScore(devs, mouseMetrics, touchMetrics, s.AuxScore)

	rec := HistoryRecord{
		ID:             uuid.NewString(),
		Identity:       identity,
		Timestamp:      eventTime,
		FlightMean:     round2(s.FlightMean()),
		DwellMean:      round2(s.DwellMean()),
		MouseSpeed:     round2(s.MouseSpeed),
		TouchSpeed:     round2(s.TouchSpeed),
		ScrollCount:    s.ScrollCount,
		ScrollSpeed:    round2(s.ScrollSpeed),
		ScrollSpeeds:   s.ScrollSpeeds,
		ClickCount:     s.ClickCount,
		ClickPositions: s.ClickPositions,
		MouseMetrics:   mouseMetrics,
		TouchMetrics:   touchMetrics,
		Score:          score,
	}

	if score > LockThreshold {
		// A locking sample must not poison the rolling baseline: persist the
		// lock state and score, skip the smoothing update entirely.
		baseline.Status = StatusLocked
		baseline.FraudScore = score
		baseline.LockedUntil = nowMs + LockWindowMs
		baseline.LastUpdate = eventTime
		rec.Status = StatusLocked

		if err := e.store.SaveBaseline(ctx, identity, baseline); err != nil {
			return VerifyResult{}, fmt.Errorf("save baseline for %s: %w", identity, err)
		}
		if err := e.store.AppendHistory(ctx, identity, rec); err != nil {
			return VerifyResult{}, fmt.Errorf("append history for %s: %w", identity, err)
		}
		return VerifyResult{
			Status:      StatusLocked,
			Score:       score,
			LockedUntil: baseline.LockedUntil,
		}, nil
	}

	status := StatusForScore(score)
	if fresh {
		status = StatusProfiled
	} else {
		baseline.Smooth(s)
	}
	baseline.Status = status
	baseline.FraudScore = score
	baseline.LockedUntil = 0
	baseline.LastUpdate = eventTime
	rec.Status = status

	if err := e.store.SaveBaseline(ctx, identity, baseline); err != nil {
		return VerifyResult{}, fmt.Errorf("save baseline for %s: %w", identity, err)
	}
	if err := e.store.AppendHistory(ctx, identity, rec); err != nil {
		return VerifyResult{}, fmt.Errorf("append history for %s: %w", identity, err)
	}

	confidence := 100 - score
	if confidence < 0 {
		confidence = 0
	}
	return VerifyResult{Status: status, Score: score, Confidence: confidence}, nil
}
