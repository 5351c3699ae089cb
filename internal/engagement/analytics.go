package engagement

import (
	"sort"
	"time"

	"hanashite/internal/models"
)

const (
	// DefaultPeriodDays is the analytics window when none is requested
	DefaultPeriodDays = 30
	// MaxPeriodDays bounds the analytics window
	MaxPeriodDays = 365

	topPerformerLimit = 5
	easyThreshold     = 80
	mediumThreshold   = 60
)

// Difficulty labels a category by its cohort average
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ClassifyDifficulty maps a category average to a label
func ClassifyDifficulty(avg float64) Difficulty {
	switch {
	case avg >= easyThreshold:
		return DifficultyEasy
	case avg >= mediumThreshold:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// AnalyticsSummary is the headline block of the analytics view
type AnalyticsSummary struct {
	TotalStudents      int     `json:"total_students"`
	ActiveRate         float64 `json:"active_rate"`
	AverageScore       float64 `json:"average_score"`
	TotalPractices     int     `json:"total_practices"`
	RetentionRate7Days float64 `json:"retention_rate_7days"`
}

// WeeklyPoint is one seven-day bucket of the trend, oldest first
type WeeklyPoint struct {
	WeekStart      models.Date `json:"week_start"`
	Practices      int         `json:"practices"`
	ActiveStudents int         `json:"active_students"`
	AverageScore   float64     `json:"average_score"`
}

// Performer is a student on the top-performers list for the current week
type Performer struct {
	StudentID    string  `json:"student_id"`
	Name         string  `json:"name"`
	Practices    int     `json:"practices"`
	AverageScore float64 `json:"average_score"`
}

// AtRiskStudent is a student in the warning or inactive bucket
type AtRiskStudent struct {
	StudentID             string      `json:"student_id"`
	Name                  string      `json:"name"`
	ClassName             string      `json:"class_name,omitempty"`
	Status                Status      `json:"status"`
	LastPracticeDate      models.Date `json:"last_practice_date"`
	DaysSinceLastPractice *int        `json:"days_since_last_practice"`
}

// CategoryDifficulty is a category's cohort-wide average and label
type CategoryDifficulty struct {
	Category     string     `json:"category"`
	AverageScore float64    `json:"average_score"`
	Practices    int        `json:"practices"`
	Difficulty   Difficulty `json:"difficulty"`
}

// Analytics is the teacher-facing cohort report
type Analytics struct {
	PeriodDays         int                  `json:"period_days"`
	Summary            AnalyticsSummary     `json:"summary"`
	WeeklyTrend        []WeeklyPoint        `json:"weekly_trend"`
	TopPerformers      []Performer          `json:"top_performers"`
	AtRisk             []AtRiskStudent      `json:"at_risk_students"`
	CategoryDifficulty []CategoryDifficulty `json:"category_difficulty"`
}

// ClampPeriod turns a requested period into a usable number of days
func ClampPeriod(days int) int {
	switch {
	case days <= 0:
		return DefaultPeriodDays
	case days > MaxPeriodDays:
		return MaxPeriodDays
	default:
		return days
	}
}

// BuildAnalytics computes the cohort report. students are the cohort's rows and
// records must cover at least the period and the two trailing weeks.
func BuildAnalytics(students []StudentSummary, records []models.PracticeRecord, periodDays int, clock Clock) Analytics {
	periodDays = ClampPeriod(periodDays)
	period := clock.trailing(time.Duration(periodDays)*day, 0)

	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.StudentID] = s.Name
	}

	inPeriod := make([]models.PracticeRecord, 0, len(records))
	for _, r := range records {
		if _, ok := names[r.UserID]; ok && period.contains(r.CreatedAt) {
			inPeriod = append(inPeriod, r)
		}
	}

	cohort := SummarizeCohort(students)
	summary := AnalyticsSummary{
		TotalStudents:      cohort.TotalStudents,
		AverageScore:       cohort.AverageScore,
		TotalPractices:     len(inPeriod),
		RetentionRate7Days: retention(records, names, clock),
	}
	if cohort.TotalStudents > 0 {
		summary.ActiveRate = round1(float64(cohort.ActiveStudents) * 100 / float64(cohort.TotalStudents))
	}

	return Analytics{
		PeriodDays:         periodDays,
		Summary:            summary,
		WeeklyTrend:        weeklyTrend(inPeriod, periodDays, clock),
		TopPerformers:      topPerformers(records, names, clock),
		AtRisk:             atRisk(students),
		CategoryDifficulty: categoryDifficulty(inPeriod),
	}
}

// retention is the percentage of students active in the prior week who were also active this week
func retention(records []models.PracticeRecord, cohort map[string]string, clock Clock) float64 {
	current := clock.trailing(week, 0)
	prior := clock.trailing(week, 1)

	inCurrent := map[string]bool{}
	inPrior := map[string]bool{}
	for _, r := range records {
		if _, ok := cohort[r.UserID]; !ok {
			continue
		}
		switch {
		case current.contains(r.CreatedAt):
			inCurrent[r.UserID] = true
		case prior.contains(r.CreatedAt):
			inPrior[r.UserID] = true
		}
	}

	if len(inPrior) == 0 {
		return 0
	}
	retained := 0
	for id := range inPrior {
		if inCurrent[id] {
			retained++
		}
	}
	return round1(float64(retained) * 100 / float64(len(inPrior)))
}

func weeklyTrend(records []models.PracticeRecord, periodDays int, clock Clock) []WeeklyPoint {
	buckets := (periodDays + 6) / 7
	points := make([]WeeklyPoint, buckets)
	accs := make([]scoreAcc, buckets)
	students := make([]map[string]bool, buckets)

	for i := range points {
		w := clock.trailing(week, buckets-1-i)
		points[i].WeekStart = clock.DateOf(w.from)
		students[i] = map[string]bool{}
	}

	for _, r := range records {
		age := clock.Now.Sub(r.CreatedAt)
		if age <= 0 {
			continue
		}
		idx := buckets - 1 - int((age-1)/week)
		if idx < 0 || idx >= buckets {
			continue
		}
		accs[idx].add(r)
		students[idx][r.UserID] = true
	}

	for i := range points {
		points[i].Practices = accs[i].count
		points[i].ActiveStudents = len(students[i])
		points[i].AverageScore = round1(accs[i].mean())
	}
	return points
}

func topPerformers(records []models.PracticeRecord, cohort map[string]string, clock Clock) []Performer {
	current := clock.trailing(week, 0)
	accs := map[string]*scoreAcc{}
	for _, r := range records {
		if _, ok := cohort[r.UserID]; !ok || !current.contains(r.CreatedAt) {
			continue
		}
		acc, ok := accs[r.UserID]
		if !ok {
			acc = &scoreAcc{}
			accs[r.UserID] = acc
		}
		acc.add(r)
	}

	performers := make([]Performer, 0, len(accs))
	for id, acc := range accs {
		performers = append(performers, Performer{
			StudentID:    id,
			Name:         cohort[id],
			Practices:    acc.count,
			AverageScore: round1(acc.mean()),
		})
	}
	sort.Slice(performers, func(i, j int) bool {
		a, b := performers[i], performers[j]
		if a.Practices != b.Practices {
			return a.Practices > b.Practices
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.StudentID < b.StudentID
	})
	if len(performers) > topPerformerLimit {
		performers = performers[:topPerformerLimit]
	}
	return performers
}

// atRisk lists warning and inactive students, never-practiced first, then longest gap
func atRisk(students []StudentSummary) []AtRiskStudent {
	list := []AtRiskStudent{}
	for _, s := range students {
		if s.Status == StatusActive {
			continue
		}
		list = append(list, AtRiskStudent{
			StudentID:             s.StudentID,
			Name:                  s.Name,
			ClassName:             s.ClassName,
			Status:                s.Status,
			LastPracticeDate:      s.LastPracticeDate,
			DaysSinceLastPractice: s.DaysSinceLastPractice,
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].DaysSinceLastPractice, list[j].DaysSinceLastPractice
		switch {
		case a == nil && b == nil:
			return list[i].Name < list[j].Name
		case a == nil:
			return true
		case b == nil:
			return false
		case *a != *b:
			return *a > *b
		default:
			return list[i].Name < list[j].Name
		}
	})
	return list
}

// categoryDifficulty lists categories with at least one scored practice, hardest first
func categoryDifficulty(records []models.PracticeRecord) []CategoryDifficulty {
	names, groups := groupByCategory(records)
	list := []CategoryDifficulty{}
	for _, name := range names {
		g := groups[name]
		if g.n == 0 {
			continue
		}
		avg := round1(g.mean())
		list = append(list, CategoryDifficulty{
			Category:     name,
			AverageScore: avg,
			Practices:    g.count,
			Difficulty:   ClassifyDifficulty(avg),
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].AverageScore < list[j].AverageScore
	})
	return list
}
