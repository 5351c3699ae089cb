package engagement

import (
	"sort"

	"hanashite/internal/models"
	"hanashite/internal/streak"
)

const (
	recentPracticeLimit = 10
	scoreTrendDays      = 30
)

// CategoryBreakdown is a per-category line in a teacher's view of one student
type CategoryBreakdown struct {
	Category      string  `json:"category"`
	AverageScore  float64 `json:"average_score"`
	PracticeCount int     `json:"practice_count"`
}

// ScorePoint is one scored practice on the score trend
type ScorePoint struct {
	Date  models.Date `json:"date"`
	Score int         `json:"score"`
}

// DetailStats are the headline numbers on a student's detail page
type DetailStats struct {
	TotalPractices       int                 `json:"total_practices"`
	TotalDurationMinutes int                 `json:"total_duration_minutes"`
	AverageScore         float64             `json:"average_score"`
	BestScore            int                 `json:"best_score"`
	CurrentStreak        int                 `json:"current_streak"`
	LongestStreak        int                 `json:"longest_streak"`
	ThisWeekPractices    int                 `json:"this_week_practices"`
	LastWeekPractices    int                 `json:"last_week_practices"`
	ThisMonthPractices   int                 `json:"this_month_practices"`
	LastMonthPractices   int                 `json:"last_month_practices"`
	CategoryStats        []CategoryBreakdown `json:"category_stats"`
}

// StudentDetails is a teacher's drill-down into one student
type StudentDetails struct {
	Student         models.User             `json:"student"`
	Status          Status                  `json:"status"`
	Stats           DetailStats             `json:"stats"`
	RecentPractices []models.PracticeRecord `json:"recent_practices"`
	ScoreTrend      []ScorePoint            `json:"score_trend"`
}

// BuildStudentDetails computes the drill-down from all of a student's records in any order
func BuildStudentDetails(user models.User, state *models.StreakState, records []models.PracticeRecord, clock Clock) StudentDetails {
	sorted := make([]models.PracticeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var acc scoreAcc
	totalSeconds := 0
	for _, r := range sorted {
		acc.add(r)
		totalSeconds += r.DurationSeconds
	}

	stats := DetailStats{
		TotalPractices:       len(sorted),
		TotalDurationMinutes: roundInt(float64(totalSeconds) / 60),
		AverageScore:         round1(acc.mean()),
		BestScore:            acc.best,
		ThisWeekPractices:    countIn(sorted, clock.trailing(week, 0)),
		LastWeekPractices:    countIn(sorted, clock.trailing(week, 1)),
		ThisMonthPractices:   countIn(sorted, clock.trailing(month, 0)),
		LastMonthPractices:   countIn(sorted, clock.trailing(month, 1)),
		CategoryStats:        []CategoryBreakdown{},
	}
	if state != nil {
		stats.CurrentStreak = state.CurrentStreak
		stats.LongestStreak = state.LongestStreak
	}

	names, groups := groupByCategory(sorted)
	for _, name := range names {
		g := groups[name]
		stats.CategoryStats = append(stats.CategoryStats, CategoryBreakdown{
			Category:      name,
			AverageScore:  round1(g.mean()),
			PracticeCount: g.count,
		})
	}

	recent := sorted
	if len(recent) > recentPracticeLimit {
		recent = recent[:recentPracticeLimit]
	}

	trendWindow := clock.trailing(scoreTrendDays*day, 0)
	trend := []ScorePoint{}
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		score, ok := r.Score()
		if !ok || !trendWindow.contains(r.CreatedAt) {
			continue
		}
		trend = append(trend, ScorePoint{Date: clock.DateOf(r.CreatedAt), Score: score})
	}

	return StudentDetails{
		Student:         user,
		Status:          Classify(streak.DaysSince(state, clock.Today())),
		Stats:           stats,
		RecentPractices: recent,
		ScoreTrend:      trend,
	}
}
