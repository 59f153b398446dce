// Package trigger polls schedule rules and fires due jobs.
//
// The loop ticks at the configured interval (one minute by default),
// evaluates every active rule against the current minute, and fires each
// matching rule at most once per minute. This is the duplicate-fire
// suppression the recurrence resolver itself deliberately does not do.
package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/runner"
)

// Orchestrator is the slice of runner.Orchestrator the loop drives.
type Orchestrator interface {
	EvaluateSchedules(now time.Time) ([]runner.Trigger, error)
	RunJob(ctx context.Context, jobID string, trigger runhistory.TriggerType, schedulerID string) (*runhistory.RunRecord, error)
	RefreshGlobalVariables() error
}

// Service is the schedule trigger loop.
type Service struct {
	orch            Orchestrator
	interval        time.Duration
	globalRefreshAt string // HH:MM, empty disables the daily refresh
	clock           runner.Clock
	log             *zap.Logger

	lastFired map[string]string // rule id -> last fired minute
}

func New(orch Orchestrator, interval time.Duration, globalRefreshAt string, clock runner.Clock, log *zap.Logger) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		orch:            orch,
		interval:        interval,
		globalRefreshAt: globalRefreshAt,
		clock:           clock,
		log:             log,
		lastFired:       make(map[string]string),
	}
}

// Run blocks until ctx is cancelled, evaluating schedules every tick.
// Due jobs run in their own goroutines so a slow copy never delays the
// next sweep.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Trigger loop started", zap.Duration("interval", s.interval))
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Trigger loop stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	now := s.clock.Now()
	minute := now.Format("2006-01-02 15:04")

	due, err := s.orch.EvaluateSchedules(now)
	if err != nil {
		s.log.Error("Schedule evaluation failed", zap.Error(err))
		return
	}
	for _, t := range due {
		if s.lastFired[t.ScheduleID] == minute {
			continue
		}
		s.lastFired[t.ScheduleID] = minute
		s.log.Info("Firing scheduled job",
			zap.String("job_id", t.JobID), zap.String("schedule_id", t.ScheduleID))
		go func(t runner.Trigger) {
			if _, err := s.orch.RunJob(ctx, t.JobID, runhistory.TriggerScheduled, t.ScheduleID); err != nil {
				s.log.Error("Scheduled run failed",
					zap.String("job_id", t.JobID), zap.Error(err))
			}
		}(t)
	}

	if s.globalRefreshAt != "" && now.Format("15:04") == s.globalRefreshAt {
		if s.lastFired["__global_refresh"] != minute {
			s.lastFired["__global_refresh"] = minute
			go func() {
				if err := s.orch.RefreshGlobalVariables(); err != nil {
					s.log.Error("Global variable refresh failed", zap.Error(err))
				} else {
					s.log.Info("Refreshed global variables")
				}
			}()
		}
	}
}
