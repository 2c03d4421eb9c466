package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Fakes
// =============================================================================

type refreshCall struct {
	principal   auth.Principal
	year, month int
}

type mockRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
	rows  int
	err   error
}

func (m *mockRefresher) RefreshHourSummaries(_ context.Context, p auth.Principal, year, month int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, refreshCall{principal: p, year: year, month: month})
	return m.rows, m.err
}

type mockObserver struct {
	errs []error
	at   []time.Time
}

func (m *mockObserver) SummaryRefresh(err error, at time.Time) {
	m.errs = append(m.errs, err)
	m.at = append(m.at, at)
}

// =============================================================================
// Test Configuration
// =============================================================================

func TestDefaultSummaryRefresherConfig(t *testing.T) {
	config := DefaultSummaryRefresherConfig()

	assert.Equal(t, "@hourly", config.Schedule)
	assert.Equal(t, 2*time.Minute, config.Timeout)
	assert.False(t, config.CurrentMonthOnly)
}

func TestNewSummaryRefresher_DefaultConfig(t *testing.T) {
	w := NewSummaryRefresher(&mockRefresher{}, nil, SummaryRefresherConfig{}, nil)

	assert.Equal(t, "@hourly", w.config.Schedule)
	assert.Equal(t, 2*time.Minute, w.config.Timeout)
	assert.Equal(t, DefaultSummaryRefresherConfig(), w.config)
}

func TestSummaryRefresher_ZeroConfigIncludesPreviousMonth(t *testing.T) {
	r := &mockRefresher{rows: 1}
	w := NewSummaryRefresher(r, nil, SummaryRefresherConfig{}, nil)
	w.now = func() time.Time { return time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC) }

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, r.calls, 2)
	assert.Equal(t, 2, r.calls[1].month)
}

// =============================================================================
// Test Cycle
// =============================================================================

func TestSummaryRefresher_RunOnce(t *testing.T) {
	r := &mockRefresher{rows: 3}
	obs := &mockObserver{}
	w := NewSummaryRefresher(r, obs, DefaultSummaryRefresherConfig(), zap.NewNop())
	w.now = func() time.Time { return time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC) }

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.Len(t, r.calls, 2)
	assert.Equal(t, refreshCall{principal: auth.System(), year: 2024, month: 1}, r.calls[0])
	assert.Equal(t, refreshCall{principal: auth.System(), year: 2023, month: 12}, r.calls[1])

	require.Len(t, obs.errs, 1)
	assert.NoError(t, obs.errs[0])
	assert.Equal(t, time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), obs.at[0])
}

func TestSummaryRefresher_RunOnceCurrentMonthOnly(t *testing.T) {
	r := &mockRefresher{rows: 2}
	w := NewSummaryRefresher(r, nil, SummaryRefresherConfig{Schedule: "@daily", CurrentMonthOnly: true}, nil)
	w.now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, r.calls, 1)
	assert.Equal(t, 6, r.calls[0].month)
}

func TestSummaryRefresher_RunOnceReportsError(t *testing.T) {
	r := &mockRefresher{err: errors.New("database is locked")}
	obs := &mockObserver{}
	w := NewSummaryRefresher(r, obs, DefaultSummaryRefresherConfig(), nil)

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)

	// The first failure stops the cycle.
	assert.Len(t, r.calls, 1)
	require.Len(t, obs.errs, 1)
	assert.EqualError(t, obs.errs[0], "database is locked")
}

// =============================================================================
// Test Lifecycle
// =============================================================================

func TestSummaryRefresher_StartStop(t *testing.T) {
	w := NewSummaryRefresher(&mockRefresher{}, nil, SummaryRefresherConfig{Schedule: "@every 1h"}, nil)

	require.NoError(t, w.Start())
	// A second Start is a no-op.
	require.NoError(t, w.Start())
	w.Stop()

	// Should be able to start again
	require.NoError(t, w.Start())
	w.Stop()
}

func TestSummaryRefresher_StopWithoutStart(t *testing.T) {
	w := NewSummaryRefresher(&mockRefresher{}, nil, SummaryRefresherConfig{}, nil)
	w.Stop()
}

func TestSummaryRefresher_InvalidSchedule(t *testing.T) {
	w := NewSummaryRefresher(&mockRefresher{}, nil, SummaryRefresherConfig{Schedule: "not a schedule"}, nil)
	assert.Error(t, w.Start())
	w.Stop()
}
