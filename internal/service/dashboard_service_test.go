package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hanashite/internal/models"
)

func TestDashboardGet(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "u1", "")
	seedTopic(t, db)
	ctx := context.Background()

	svc := NewDashboardService(db, tokyo)
	svc.now = fixedClock(now)

	empty, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Stats.TotalPractices)
	assert.Nil(t, empty.Streak)
	assert.False(t, empty.StreakAtRisk)

	yesterday := now.AddDate(0, 0, -1)
	seedPractice(t, db, "p1", "u1", models.IntPtr(80), yesterday)
	seedPractice(t, db, "p2", "u1", nil, yesterday.Add(time.Minute))
	_, err = NewStreakService(db, tokyo, nil, zap.NewNop()).RecordPractice(ctx, "u1", yesterday)
	require.NoError(t, err)

	dash, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Stats.TotalPractices)
	assert.Equal(t, 80, dash.Stats.AverageScore)
	require.NotNil(t, dash.Streak)
	assert.Equal(t, 1, dash.Streak.CurrentStreak)
	assert.True(t, dash.StreakAtRisk)
}

func TestDashboardGetFailsWhenStoreFails(t *testing.T) {
	db := setupDB(t)
	svc := NewDashboardService(db, tokyo)
	require.NoError(t, db.Close())

	_, err := svc.Get(context.Background(), "u1")
	assert.Error(t, err)
}
