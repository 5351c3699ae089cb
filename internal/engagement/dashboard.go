package engagement

import (
	"hanashite/internal/models"
)

// DailyScore is one point of the seven-day trend
type DailyScore struct {
	Date  models.Date `json:"date"`
	Score int         `json:"score"`
	Count int         `json:"count"`
}

// CategoryStat summarises one topic category for a learner
type CategoryStat struct {
	Category string `json:"category"`
	AvgScore int    `json:"avgScore"`
	Count    int    `json:"count"`
}

// DashboardStats is a learner's personal dashboard
type DashboardStats struct {
	TotalPractices     int            `json:"totalPractices"`
	AverageScore       int            `json:"averageScore"`
	BestScore          int            `json:"bestScore"`
	ThisWeekPractices  int            `json:"thisWeekPractices"`
	LastWeekPractices  int            `json:"lastWeekPractices"`
	ThisMonthPractices int            `json:"thisMonthPractices"`
	LastMonthPractices int            `json:"lastMonthPractices"`
	RecentScores       []DailyScore   `json:"recentScores"`
	CategoryStats      []CategoryStat `json:"categoryStats"`
}

// BuildDashboard computes a learner's dashboard from all of their practice records
func BuildDashboard(records []models.PracticeRecord, clock Clock) DashboardStats {
	var all scoreAcc
	for _, r := range records {
		all.add(r)
	}

	stats := DashboardStats{
		TotalPractices:     len(records),
		AverageScore:       roundInt(all.mean()),
		BestScore:          all.best,
		ThisWeekPractices:  countIn(records, clock.trailing(week, 0)),
		LastWeekPractices:  countIn(records, clock.trailing(week, 1)),
		ThisMonthPractices: countIn(records, clock.trailing(month, 0)),
		LastMonthPractices: countIn(records, clock.trailing(month, 1)),
		RecentScores:       recentScores(records, clock, 7),
		CategoryStats:      []CategoryStat{},
	}

	names, groups := groupByCategory(records)
	for _, name := range names {
		acc := groups[name]
		stats.CategoryStats = append(stats.CategoryStats, CategoryStat{
			Category: name,
			AvgScore: roundInt(acc.mean()),
			Count:    acc.count,
		})
	}
	return stats
}

// recentScores returns one point per calendar day for the last n days, oldest first
func recentScores(records []models.PracticeRecord, clock Clock, n int) []DailyScore {
	today := clock.Today()
	first := today.AddDays(-(n - 1))

	byDay := make(map[models.Date]*scoreAcc, n)
	for _, r := range records {
		d := clock.DateOf(r.CreatedAt)
		if d.Before(first) || today.Before(d) {
			continue
		}
		acc, ok := byDay[d]
		if !ok {
			acc = &scoreAcc{}
			byDay[d] = acc
		}
		acc.add(r)
	}

	points := make([]DailyScore, n)
	for i := 0; i < n; i++ {
		d := first.AddDays(i)
		points[i] = DailyScore{Date: d}
		if acc, ok := byDay[d]; ok {
			points[i].Score = roundInt(acc.mean())
			points[i].Count = acc.count
		}
	}
	return points
}
