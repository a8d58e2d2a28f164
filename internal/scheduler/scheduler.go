// Package scheduler runs the periodic collective weight recompute.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/logging"
	"github.com/SacredShifter/Navigator-sub000/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// WeightUpdater recomputes every intervention's learning weight.
type WeightUpdater interface {
	UpdateAllWeights(ctx context.Context) ([]collective.WeightUpdate, int, error)
}

// Scheduler owns the cron loop. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	updater WeightUpdater
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New schedules the recompute on spec (standard cron or @every). m may be nil.
func New(spec string, timeout time.Duration, updater WeightUpdater, m *metrics.Metrics, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		updater: updater,
		timeout: timeout,
		metrics: m,
		log:     logging.Component(log, "scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule weight recompute %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs one recompute and reports "ok", "partial" or "failed".
func (s *Scheduler) RunOnce(ctx context.Context) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	updates, failed, err := s.updater.UpdateAllWeights(ctx)

	applied := 0
	for _, u := range updates {
		if u.Applied {
			applied++
		}
	}
	result := "ok"
	switch {
	case err != nil && len(updates) == 0:
		result = "failed"
	case err != nil:
		result = "partial"
	}
	s.metrics.IncSchedulerRun(result)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("result", result).Int("applied", applied).Int("skipped", len(updates)-applied).
		Int("failed", failed).Dur("elapsed", time.Since(start)).Msg("weight recompute finished")
	return result
}
