/*
scheduler.go - Background jobs on cron schedules

PURPOSE:
  Runs the engine's periodic maintenance without an operator:
  - Monthly tick: gift catalog and bonus plans over the previous month
  - Deactivation: switches off bonus plans whose validity has ended
  - Cleanup: purges rejected customers older than the retention window

DESIGN:
  - robfig/cron with five-field specs, evaluated in UTC
  - Each job reads the service clock once and passes it explicitly
  - Every job is idempotent, so a missed or repeated run is harmless
  - The same job methods back the CLI subcommands

CONFIGURATION:
  [scheduler]
  enabled         = true
  monthly_spec    = "1 1 1 * *"   # 01:01 on the 1st
  deactivate_spec = "30 0 * * *"
  cleanup_spec    = "0 0 * * *"

USAGE:
  s, err := NewScheduler(svc, logger, cfg.Scheduler)
  s.Start(ctx)
  // ... later
  s.Stop()

SEE ALSO:
  - handlers.go: the same operations under /api/admin
  - portfolio/service.go: RunMonthlyTick, DeactivateExpiredPlans, PurgeRejected
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/rewards"
	"go.uber.org/zap"
)

// Scheduler drives the periodic service operations.
type Scheduler struct {
	Service *portfolio.Service

	cron    *cron.Cron
	log     *zap.Logger
	baseCtx context.Context

	mu      sync.Mutex
	running bool
}

// NewScheduler registers the three jobs. A malformed spec is an error.
func NewScheduler(svc *portfolio.Service, logger *zap.Logger, cfg config.SchedulerConfig) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		Service: svc,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		log:     logger.Named("scheduler"),
		baseCtx: context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"monthly_tick", cfg.MonthlySpec, func(ctx context.Context) error { _, err := s.RunMonthlyTick(ctx); return err }},
		{"deactivate_plans", cfg.DeactivateSpec, s.DeactivateExpired},
		{"purge_rejected", cfg.CleanupSpec, s.PurgeRejected},
	}
	for _, j := range jobs {
		if err := s.add(j.name, j.spec, j.run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.baseCtx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid %s spec %q: %w", name, spec, err)
	}
	return nil
}

// Start begins running jobs. Jobs receive ctx; Stop does not cancel it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	if ctx != nil {
		s.baseCtx = ctx
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("scheduler stopped")
}

// =============================================================================
// JOBS
// =============================================================================

// RunMonthlyTick evaluates incentives for the month before the current one.
func (s *Scheduler) RunMonthlyTick(ctx context.Context) ([]rewards.Grant, error) {
	period := generic.MonthOf(generic.DateOf(s.Service.Now())).Previous()
	return s.Service.RunMonthlyTick(ctx, period)
}

// DeactivateExpired switches off bonus plans whose validity has ended.
func (s *Scheduler) DeactivateExpired(ctx context.Context) error {
	_, err := s.Service.DeactivateExpiredPlans(ctx, s.Service.Now())
	return err
}

// PurgeRejected deletes rejected customers past the retention window.
func (s *Scheduler) PurgeRejected(ctx context.Context) error {
	_, err := s.Service.PurgeRejected(ctx, s.Service.Now())
	return err
}
