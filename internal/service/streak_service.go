package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/database"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/streak"
)

const maxStreakAttempts = 5

// StreakService persists streak transitions with optimistic concurrency
type StreakService struct {
	db      database.DBTX
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// StreakStatus is a user's streak together with whether it breaks today
type StreakStatus struct {
	Streak *models.StreakState `json:"streak"`
	AtRisk bool                `json:"at_risk"`
}

// NewStreakService creates a new streak service
func NewStreakService(db database.DBTX, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *StreakService {
	return &StreakService{
		db:      db,
		loc:     loc,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordPractice applies a practice made at `at` to the user's streak.
// Lost races re-read the row and re-apply the transition.
func (s *StreakService) RecordPractice(ctx context.Context, userID string, at time.Time) (streak.Transition, error) {
	repo := repository.NewStreakRepository(s.db)
	today := models.DateOf(at, s.loc)

	for attempt := 1; attempt <= maxStreakAttempts; attempt++ {
		prev, err := repo.Get(ctx, userID)
		if err != nil {
			return streak.Transition{}, err
		}

		tr, err := streak.Advance(prev, today, userID)
		if err != nil {
			if errors.Is(err, streak.ErrClockSkew) {
				s.metrics.StreakTransition("skew")
			}
			return streak.Transition{}, err
		}
		if !tr.Changed() {
			s.metrics.StreakTransition(string(tr.Kind))
			return tr, nil
		}

		next := tr.State
		if prev == nil {
			err = repo.Insert(ctx, &next, s.now())
		} else {
			err = repo.CompareAndSwap(ctx, &next, s.now())
		}
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.StreakTransition("conflict")
			s.logger.Debug("streak write lost race, retrying",
				zap.String("user_id", userID),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return streak.Transition{}, err
		}

		tr.State = next
		s.metrics.StreakTransition(string(tr.Kind))
		return tr, nil
	}

	return streak.Transition{}, fmt.Errorf("streak update for %s gave up after %d attempts: %w",
		userID, maxStreakAttempts, repository.ErrConflict)
}

// Get returns the user's streak, or nil if they have never practiced
func (s *StreakService) Get(ctx context.Context, userID string) (*models.StreakState, error) {
	return repository.NewStreakRepository(s.db).Get(ctx, userID)
}

// Status returns the streak and whether it breaks unless the user practices today
func (s *StreakService) Status(ctx context.Context, userID string) (*StreakStatus, error) {
	state, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := models.DateOf(s.now(), s.loc)
	return &StreakStatus{Streak: state, AtRisk: streak.AtRisk(state, today)}, nil
}
