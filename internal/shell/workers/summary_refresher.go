// Package workers contains background workers for keyhours.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes the persisted monthly hour summaries.
// *workflow.Service satisfies it.
type Refresher interface {
	RefreshHourSummaries(ctx context.Context, p auth.Principal, year, month int) (int, error)
}

// Observer records the outcome of each refresh cycle.
// *metrics.Metrics satisfies it.
type Observer interface {
	SummaryRefresh(err error, at time.Time)
}

// SummaryRefresherConfig configures the summary refresher worker.
type SummaryRefresherConfig struct {
	// Schedule is a standard five-field cron spec or a descriptor such as
	// "@hourly". Default: "@hourly".
	Schedule string

	// Timeout bounds a single cycle.
	// Default: 2 minutes.
	Timeout time.Duration

	// CurrentMonthOnly skips the previous month. By default it is refreshed
	// too, so approvals that land after a month closes reach its summary.
	CurrentMonthOnly bool
}

// DefaultSummaryRefresherConfig returns the default configuration.
func DefaultSummaryRefresherConfig() SummaryRefresherConfig {
	return SummaryRefresherConfig{
		Schedule: "@hourly",
		Timeout:  2 * time.Minute,
	}
}

// SummaryRefresher periodically rewrites the HourSummary snapshots for the
// current month as the System principal.
type SummaryRefresher struct {
	refresher Refresher
	observer  Observer
	config    SummaryRefresherConfig
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSummaryRefresher creates a new summary refresher. observer may be nil.
func NewSummaryRefresher(r Refresher, observer Observer, config SummaryRefresherConfig, logger *zap.Logger) *SummaryRefresher {
	defaults := DefaultSummaryRefresherConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SummaryRefresher{
		refresher: r,
		observer:  observer,
		config:    config,
		logger:    logger.Named("summary_refresher"),
		now:       time.Now,
	}
}

// Start schedules the refresh job. It returns an error for an invalid
// schedule and does nothing if the worker is already running.
func (w *SummaryRefresher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(w.config.Schedule, w.runCycle); err != nil {
		return err
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.cron = c
	c.Start()

	w.logger.Info("summary refresher started",
		zap.String("schedule", w.config.Schedule),
		zap.Duration("timeout", w.config.Timeout),
	)
	return nil
}

// Stop cancels any running cycle and waits for it to return.
func (w *SummaryRefresher) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	w.logger.Info("summary refresher stopped")
}

func (w *SummaryRefresher) runCycle() {
	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	w.RunOnce(parent)
}

// RunOnce refreshes the configured months and reports the outcome. It
// returns the number of summary rows written.
func (w *SummaryRefresher) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	now := w.now().UTC()
	periods := []time.Time{now}
	if !w.config.CurrentMonthOnly {
		periods = append(periods, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0))
	}

	total := 0
	var err error
	for _, at := range periods {
		var n int
		n, err = w.refresher.RefreshHourSummaries(ctx, auth.System(), at.Year(), int(at.Month()))
		if err != nil {
			w.logger.Error("failed to refresh hour summaries",
				zap.Int("year", at.Year()),
				zap.Int("month", int(at.Month())),
				zap.Error(err),
			)
			break
		}
		total += n
	}

	if w.observer != nil {
		w.observer.SummaryRefresh(err, now)
	}
	if err == nil {
		w.logger.Debug("completed summary refresh cycle", zap.Int("rows", total))
	}
	return total, err
}
