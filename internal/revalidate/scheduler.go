// Package revalidate periodically re-fetches the current user so a revoked
// or expired token is noticed without waiting for the next request.
package revalidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/securewatch/securewatch/internal/session"
)

// DefaultSchedule revalidates every fifteen minutes.
const DefaultSchedule = "*/15 * * * *"

// Refresher is the part of the session machine the scheduler drives.
type Refresher interface {
	Snapshot() session.State
	GetCurrentUser(ctx context.Context) error
}

// Scheduler wakes up every tick and revalidates when the cron schedule is due.
type Scheduler struct {
	refresher Refresher
	schedule  cron.Schedule
	expr      string
	logger    zerolog.Logger

	tick   time.Duration
	now    func() time.Time
	nextAt time.Time
}

// ParseSchedule accepts standard 5-field cron expressions and descriptors
// such as "@every 5m" or "@hourly".
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid revalidation schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// New creates a scheduler. An empty expr uses DefaultSchedule.
func New(refresher Refresher, expr string, logger zerolog.Logger) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		refresher: refresher,
		schedule:  schedule,
		expr:      expr,
		logger:    logger.With().Str("component", "revalidate").Logger(),
		tick:      time.Minute,
		now:       time.Now,
	}, nil
}

// Run checks once on startup and then every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.nextAt = s.schedule.Next(s.now())
	s.logger.Info().
		Str("schedule", s.expr).
		Time("next_revalidation_at", s.nextAt).
		Msg("Revalidation scheduler started")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.checkAndRevalidate(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.checkAndRevalidate(ctx)
		}
	}
}

// checkAndRevalidate reports whether a revalidation request was made.
func (s *Scheduler) checkAndRevalidate(ctx context.Context) bool {
	now := s.now()
	if !s.nextAt.IsZero() && s.nextAt.After(now) {
		s.logger.Debug().
			Time("next_revalidation_at", s.nextAt).
			Msg("Revalidation not due yet")
		return false
	}

	// Advance first so a slow or failing request is not retried every tick
	s.nextAt = s.schedule.Next(now)

	if !s.refresher.Snapshot().IsAuthenticated {
		s.logger.Debug().Msg("No authenticated session - skipping revalidation")
		return false
	}

	err := s.refresher.GetCurrentUser(ctx)
	switch {
	case err == nil:
		s.logger.Debug().Time("next_revalidation_at", s.nextAt).Msg("Session revalidated")
	case session.IsSessionExpired(err):
		s.logger.Info().Msg("Session expired during revalidation")
	case errors.Is(err, session.ErrSuperseded):
		s.logger.Debug().Msg("Revalidation superseded by a newer operation")
	default:
		s.logger.Warn().Err(err).Time("next_revalidation_at", s.nextAt).Msg("Failed to revalidate session")
	}
	return true
}
