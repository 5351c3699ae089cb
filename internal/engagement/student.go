package engagement

import (
	"hanashite/internal/models"
	"hanashite/internal/streak"
)

// Status buckets a student by days since their last practice
type Status string

const (
	StatusActive   Status = "active"
	StatusWarning  Status = "warning"
	StatusInactive Status = "inactive"
)

const (
	warningAfterDays  = 4
	inactiveAfterDays = 8
)

// Classify maps days since the last practice to a status. nil means the
// student has never practiced. Negative values (a last practice dated in the
// future of the server's calendar) count as active.
func Classify(daysSince *int) Status {
	switch {
	case daysSince == nil:
		return StatusInactive
	case *daysSince >= inactiveAfterDays:
		return StatusInactive
	case *daysSince >= warningAfterDays:
		return StatusWarning
	default:
		return StatusActive
	}
}

// StudentSummary is one row of a teacher's student list
type StudentSummary struct {
	StudentID             string      `json:"id"`
	Name                  string      `json:"name"`
	Email                 string      `json:"email"`
	ClassID               string      `json:"class_id,omitempty"`
	ClassName             string      `json:"class_name,omitempty"`
	Status                Status      `json:"status"`
	CurrentStreak         int         `json:"current_streak"`
	LongestStreak         int         `json:"longest_streak"`
	ThisWeekPractices     int         `json:"this_week_practices"`
	ThisMonthPractices    int         `json:"this_month_practices"`
	TotalPractices        int         `json:"total_practices"`
	ScoredPractices       int         `json:"scored_practices"`
	AverageScore          float64     `json:"average_score"`
	BestScore             int         `json:"best_score"`
	LastPracticeDate      models.Date `json:"last_practice_date"`
	DaysSinceLastPractice *int        `json:"days_since_last_practice"`
}

// StudentInput is everything known about one student
type StudentInput struct {
	User      models.User
	Streak    *models.StreakState
	Records   []models.PracticeRecord
	ClassID   string
	ClassName string
}

// BuildStudentSummary computes a student's row. Records must be all of the student's practices.
func BuildStudentSummary(in StudentInput, clock Clock) StudentSummary {
	var acc scoreAcc
	for _, r := range in.Records {
		acc.add(r)
	}

	days := streak.DaysSince(in.Streak, clock.Today())
	s := StudentSummary{
		StudentID:             in.User.ID,
		Name:                  in.User.Name(),
		Email:                 in.User.Email,
		ClassID:               in.ClassID,
		ClassName:             in.ClassName,
		Status:                Classify(days),
		ThisWeekPractices:     countIn(in.Records, clock.trailing(week, 0)),
		ThisMonthPractices:    countIn(in.Records, clock.trailing(month, 0)),
		TotalPractices:        len(in.Records),
		ScoredPractices:       acc.n,
		AverageScore:          round1(acc.mean()),
		BestScore:             acc.best,
		DaysSinceLastPractice: days,
	}
	if in.Streak != nil {
		s.CurrentStreak = in.Streak.CurrentStreak
		s.LongestStreak = in.Streak.LongestStreak
		s.LastPracticeDate = in.Streak.LastPracticeDate
	}
	return s
}

// BuildStudentSummaries computes rows for a set of students, splitting a
// combined record set by owner.
func BuildStudentSummaries(inputs []StudentInput, records []models.PracticeRecord, clock Clock) []StudentSummary {
	byUser := make(map[string][]models.PracticeRecord, len(inputs))
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	summaries := make([]StudentSummary, 0, len(inputs))
	for _, in := range inputs {
		if in.Records == nil {
			in.Records = byUser[in.User.ID]
		}
		summaries = append(summaries, BuildStudentSummary(in, clock))
	}
	return summaries
}
