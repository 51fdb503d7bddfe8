// Package schedule runs the cron-driven cache janitor.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/memohai/imgbot/internal/metrics"
)

// Sweeper removes staged artifacts older than maxAge.
type Sweeper interface {
	Sweep(maxAge time.Duration) (int, error)
}

// Janitor periodically sweeps stale staged files left behind by crashes.
type Janitor struct {
	store   Sweeper
	cron    *cron.Cron
	parser  cron.Parser
	pattern string
	maxAge  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// NewJanitor validates pattern up front. An empty pattern or non-positive maxAge
// yields a janitor whose Start is a no-op.
func NewJanitor(log *slog.Logger, store Sweeper, pattern string, maxAge time.Duration, m *metrics.Metrics) (*Janitor, error) {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	pattern = strings.TrimSpace(pattern)
	if pattern != "" {
		if _, err := parser.Parse(pattern); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", pattern, err)
		}
	}
	return &Janitor{
		store:   store,
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		pattern: pattern,
		maxAge:  maxAge,
		metrics: m,
		logger:  log.With(slog.String("service", "janitor")),
	}, nil
}

// Enabled reports whether Start schedules anything.
func (j *Janitor) Enabled() bool {
	return j.pattern != "" && j.maxAge > 0
}

// Start schedules the sweep and starts the cron loop.
func (j *Janitor) Start() error {
	if !j.Enabled() {
		j.logger.Info("cache janitor disabled")
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}
	entryID, err := j.cron.AddFunc(j.pattern, func() {
		_, _ = j.RunOnce()
	})
	if err != nil {
		return err
	}
	j.entryID = entryID
	j.started = true
	j.cron.Start()
	j.logger.Info("cache janitor started", slog.String("schedule", j.pattern), slog.Duration("max_age", j.maxAge))
	return nil
}

// Stop halts the cron loop and waits for a running sweep until ctx is done.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return nil
	}
	j.cron.Remove(j.entryID)
	j.started = false
	j.mu.Unlock()

	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time when not started.
func (j *Janitor) Next() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.started {
		return time.Time{}
	}
	return j.cron.Entry(j.entryID).Next
}

// RunOnce sweeps immediately.
func (j *Janitor) RunOnce() (int, error) {
	removed, err := j.store.Sweep(j.maxAge)
	j.metrics.ObserveCacheRemoval("sweep", removed)
	if err != nil {
		j.logger.Warn("cache sweep failed", slog.Int("removed", removed), slog.Any("error", err))
		return removed, err
	}
	if removed > 0 {
		j.logger.Info("cache swept", slog.Int("removed", removed))
	}
	return removed, nil
}
