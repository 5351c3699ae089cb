package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"hanashite/internal/database"
	"hanashite/internal/engagement"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/streak"
)

// Dashboard is a student's own progress view
type Dashboard struct {
	Stats        engagement.DashboardStats `json:"stats"`
	Streak       *models.StreakState       `json:"streak"`
	StreakAtRisk bool                      `json:"streakAtRisk"`
}

// DashboardService builds student dashboards
type DashboardService struct {
	db  database.DBTX
	loc *time.Location
	now func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(db database.DBTX, loc *time.Location) *DashboardService {
	return &DashboardService{db: db, loc: loc, now: time.Now}
}

// Get loads the user's records and streak concurrently. Either failing fails the whole view.
func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	var (
		records []models.PracticeRecord
		state   *models.StreakState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = repository.NewPracticeRepository(s.db).ListByUser(gctx, userID, repository.PracticeFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		state, err = repository.NewStreakRepository(s.db).Get(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	clock := engagement.NewClock(s.now(), s.loc)
	return &Dashboard{
		Stats:        engagement.BuildDashboard(records, clock),
		Streak:       state,
		StreakAtRisk: streak.AtRisk(state, clock.Today()),
	}, nil
}
