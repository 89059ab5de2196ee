// Package scheduler runs trophy assignment on a cron schedule and guards
// every run with a distributed lock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/forum-trophies/internal/config"
	"github.com/aimd54/forum-trophies/internal/lock"
	"github.com/aimd54/forum-trophies/internal/mattermost"
	prommetrics "github.com/aimd54/forum-trophies/internal/metrics"
	"github.com/aimd54/forum-trophies/internal/service/trophies"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

// AssignmentLockKey is the Redis key serializing assignment runs.
const AssignmentLockKey = "trophies:assignment"

// Assigner runs trophy assignment.
type Assigner interface {
	AssignTrophies(ctx context.Context, maxAssigns int) (*trophies.AssignmentResult, error)
	OutstandingAssignmentCount(ctx context.Context) (int64, error)
}

// Locker acquires the assignment lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error)
}

// Notifier reports finished runs.
type Notifier interface {
	SendAssignmentSummary(ctx context.Context, summary mattermost.AssignmentSummary) error
}

// Service handles periodic trophy jobs.
type Service struct {
	config   *config.Config
	assigner Assigner
	locker   Locker
	notifier Notifier
	log      *logger.Logger
	cron     *cron.Cron
}

// NewService creates a new scheduler service. locker and notifier may be nil.
func NewService(
	cfg *config.Config,
	assigner Assigner,
	locker Locker,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		config:   cfg,
		assigner: assigner,
		locker:   locker,
		notifier: notifier,
		log:      log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	_, err = s.cron.AddFunc(s.config.Scheduler.AssignmentSchedule, func() {
		s.runAssignmentJob(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register assignment job: %w", err)
	}

	if s.config.Scheduler.OutstandingSchedule != "" {
		_, err = s.cron.AddFunc(s.config.Scheduler.OutstandingSchedule, func() {
			s.runOutstandingJob(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register outstanding count job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.Scheduler.OutstandingSchedule).
			Msg("Outstanding count job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", s.config.Scheduler.AssignmentSchedule).
		Str("timezone", s.config.Scheduler.Timezone).
		Int("max_assigns", s.config.Trophies.MaxAssigns).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// RunAssignment runs one assignment under the lock. It returns an error
// wrapping lock.ErrLocked without touching the store when another run holds
// the lock. maxAssigns <= 0 uses the configured cap.
func (s *Service) RunAssignment(ctx context.Context, maxAssigns int) (*trophies.AssignmentResult, error) {
	if maxAssigns <= 0 {
		maxAssigns = s.config.Trophies.MaxAssigns
	}

	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, AssignmentLockKey, s.config.Scheduler.LockTTLDuration())
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				prommetrics.RecordAssignmentRun(prommetrics.StatusLocked)
				s.log.Info().Msg("Assignment already running elsewhere, skipping")
				return nil, err
			}
			prommetrics.RecordAssignmentRun(prommetrics.StatusError)
			return nil, fmt.Errorf("failed to acquire assignment lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Str("lock_token", lease.Token()).Msg("Failed to release assignment lock")
			}
		}()
	} else {
		s.log.Warn().Msg("No lock configured, running assignment unguarded")
	}

	start := time.Now()
	result, err := s.assigner.AssignTrophies(ctx, maxAssigns)

	prommetrics.ObserveAssignmentDuration(time.Since(start).Seconds())
	prommetrics.SetAssignmentLastRun()

	if err != nil {
		prommetrics.RecordAssignmentRun(prommetrics.StatusError)
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Trophy assignment failed")
		// Awards committed before the failure are still worth reporting.
		s.notify(ctx, result)
		return result, err
	}

	prommetrics.RecordAssignmentRun(prommetrics.StatusSuccess)
	if result.CapReached {
		prommetrics.RecordAssignmentCapReached()
	}
	s.notify(ctx, result)

	return result, nil
}

// RefreshOutstanding recomputes the outstanding assignment count, which
// also updates its gauge.
func (s *Service) RefreshOutstanding(ctx context.Context) (int64, error) {
	return s.assigner.OutstandingAssignmentCount(ctx)
}

func (s *Service) runAssignmentJob(ctx context.Context) {
	s.log.Info().Msg("Running trophy assignment job")

	result, err := s.RunAssignment(ctx, 0)
	if err != nil {
		if !errors.Is(err, lock.ErrLocked) {
			s.log.Error().Err(err).Msg("Trophy assignment job failed")
		}
		return
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Int("trophies_awarded", result.Awarded).
		Bool("cap_reached", result.CapReached).
		Dur("duration", result.Duration).
		Msg("Trophy assignment job completed successfully")
}

func (s *Service) runOutstandingJob(ctx context.Context) {
	count, err := s.RefreshOutstanding(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count outstanding trophy assignments")
		return
	}
	s.log.Debug().Int64("outstanding", count).Msg("Outstanding trophy assignments refreshed")
}

func (s *Service) notify(ctx context.Context, result *trophies.AssignmentResult) {
	if s.notifier == nil || result == nil || result.Awarded == 0 {
		return
	}

	if err := s.notifier.SendAssignmentSummary(ctx, buildSummary(result)); err != nil {
		prommetrics.RecordNotificationFailed("mattermost_error")
		s.log.Error().
			Err(err).
			Str("run_id", result.RunID).
			Msg("Failed to send assignment summary")
	}
}

func buildSummary(result *trophies.AssignmentResult) mattermost.AssignmentSummary {
	summary := mattermost.AssignmentSummary{
		RunID:      result.RunID,
		Awarded:    result.Awarded,
		MaxAssigns: result.MaxAssigns,
		CapReached: result.CapReached,
		Duration:   result.Duration,
	}
	for _, pt := range result.PerTrophy {
		summary.Trophies = append(summary.Trophies, mattermost.TrophyCount{Title: pt.Title, Awarded: pt.Awarded})
	}
	return summary
}
