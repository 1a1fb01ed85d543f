package behavior

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that tracks write activity.
type memStore struct {
	mu        sync.Mutex
	baselines map[string]*Baseline
	history   map[string][]HistoryRecord
	saves     int
	appends   int
}

func newMemStore() *memStore {
	return &memStore{
		baselines: make(map[string]*Baseline),
		history:   make(map[string][]HistoryRecord),
	}
}

func (m *memStore) LoadBaseline(_ context.Context, identity string) (*Baseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baselines[identity]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) SaveBaseline(_ context.Context, identity string, b *Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.baselines[identity] = &cp
	m.saves++
	return nil
}

func (m *memStore) AppendHistory(_ context.Context, identity string, rec HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[identity] = append(m.history[identity], rec)
	m.appends++
	return nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestVerifyNewIdentitySeedsProfile(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	sample := Sample{
		Flight:      []float64{120, 130, 110},
		Dwell:       []float64{80, 90, 85},
		MouseSpeed:  5.5,
		ScrollCount: 2,
	}
	res, err := engine.Verify(context.Background(), "alice", sample)
	require.NoError(t, err)
	assert.Equal(t, StatusProfiled, res.Status)

	b := store.baselines["alice"]
	require.NotNil(t, b)
	assert.Equal(t, 120.0, b.FlightMean)
	assert.Equal(t, 85.0, b.DwellMean)
	assert.Equal(t, 5.5, b.MouseMean)
	assert.Equal(t, 2, b.ScrollMean)
	assert.Equal(t, StatusProfiled, b.Status)
	assert.Len(t, store.history["alice"], 1)
	assert.Equal(t, StatusProfiled, store.history["alice"][0].Status)
}

func TestVerifyCloseMatchAuthenticates(t *testing.T) {
	store := newMemStore()
	store.baselines["bob"] = &Baseline{FlightMean: 120.0, Status: StatusProfiled}
	engine := NewEngine(store)

	res, err := engine.Verify(context.Background(), "bob", Sample{Flight: []float64{125, 128, 115}})
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, res.Status)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 100, res.Confidence)

	// 0.98*120 + 0.02*122.67 rounds to 120.05: the baseline drifts slowly.
	assert.Equal(t, 120.05, store.baselines["bob"].FlightMean)
}

func TestVerifyWildDeviationLocks(t *testing.T) {
	store := newMemStore()
	before := Baseline{
		FlightMean:      100,
		DwellMean:       80,
		MouseMean:       5,
		TouchMean:       3,
		ScrollMean:      4,
		ScrollSpeedMean: 2,
		Status:          StatusAuthenticated,
	}
	cp := before
	store.baselines["mallory"] = &cp

	engine := NewEngine(store)
	engine.now = fixedClock(1_000_000)

	// Every feature roughly 10x the baseline.
	sample := Sample{
		Flight:      []float64{1000},
		Dwell:       []float64{800},
		MouseSpeed:  50,
		TouchSpeed:  30,
		ScrollCount: 40,
		ScrollSpeed: 20,
	}
	res, err := engine.Verify(context.Background(), "mallory", sample)
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, res.Status)
	assert.Equal(t, 83, res.Score)
	assert.Equal(t, int64(1_000_000+LockWindowMs), res.LockedUntil)

	after := store.baselines["mallory"]
	assert.Equal(t, StatusLocked, after.Status)
	assert.Equal(t, res.LockedUntil, after.LockedUntil)

	// A locking sample must not poison the rolling means.
	assert.Equal(t, before.FlightMean, after.FlightMean)
	assert.Equal(t, before.DwellMean, after.DwellMean)
	assert.Equal(t, before.MouseMean, after.MouseMean)
	assert.Equal(t, before.TouchMean, after.TouchMean)
	assert.Equal(t, before.ScrollMean, after.ScrollMean)
	assert.Equal(t, before.ScrollSpeedMean, after.ScrollSpeedMean)
}

func TestVerifyActiveLockShortCircuits(t *testing.T) {
	store := newMemStore()
	store.baselines["carol"] = &Baseline{
		FlightMean:  100,
		FraudScore:  77,
		Status:      StatusLocked,
		LockedUntil: 2_000_000,
	}
	engine := NewEngine(store)
	engine.now = fixedClock(1_500_000)

	res, err := engine.Verify(context.Background(), "carol", Sample{Flight: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, res.Status)
	assert.Equal(t, 77, res.Score)
	assert.Equal(t, int64(2_000_000), res.LockedUntil)

	// Read-only check: no writes of any kind.
	assert.Zero(t, store.saves)
	assert.Zero(t, store.appends)
}

func TestVerifyExpiredLockResumesScoring(t *testing.T) {
	store := newMemStore()
	store.baselines["dave"] = &Baseline{
		FlightMean:  100,
		FraudScore:  77,
		Status:      StatusLocked,
		LockedUntil: 1_000_000,
	}
	engine := NewEngine(store)
	engine.now = fixedClock(1_000_001)

	res, err := engine.Verify(context.Background(), "dave", Sample{Flight: []float64{100}})
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, res.Status)
	assert.Zero(t, store.baselines["dave"].LockedUntil)
}

func TestVerifySerializesPerIdentity(t *testing.T) {
	store := newMemStore()
	store.baselines["erin"] = &Baseline{FlightMean: 100, Status: StatusAuthenticated}
	engine := NewEngine(store)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Sample matching the baseline: smoothing is a fixed point, so
			// any divergence would come from a lost read-modify-write.
			_, err := engine.Verify(context.Background(), "erin", Sample{Flight: []float64{100}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100.0, store.baselines["erin"].FlightMean)
	assert.Len(t, store.history["erin"], workers)
}

func TestVerifyEmptySampleIsNeutral(t *testing.T) {
	store := newMemStore()
	store.baselines["frank"] = &Baseline{Status: StatusAuthenticated}
	engine := NewEngine(store)

	// A fully empty sample against an empty baseline: all deviations are
	// zero-over-zero, nothing to flag.
	res, err := engine.Verify(context.Background(), "frank", Sample{})
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, res.Status)
	assert.Equal(t, 0, res.Score)
}
