// Package streak holds the consecutive-practice-day rules. Everything here is
// pure: callers load the stored state, call Advance and persist the result.
package streak

import (
	"errors"
	"fmt"

	"hanashite/internal/models"
)

// ErrClockSkew is returned when a practice is dated before the last recorded practice day
var ErrClockSkew = errors.New("practice date is before the last practice date")

// Kind names what a practice did to a streak
type Kind string

const (
	Created   Kind = "created"
	Extended  Kind = "extended"
	Reset     Kind = "reset"
	Unchanged Kind = "unchanged"
)

// Transition is the outcome of applying one practice day to a streak
type Transition struct {
	Kind  Kind
	State models.StreakState
}

// Changed reports whether the state must be persisted
func (t Transition) Changed() bool {
	return t.Kind != Unchanged
}

// Advance applies a practice on day today to prev, which is nil for a user
// who has never practiced. prev is not modified.
func Advance(prev *models.StreakState, today models.Date, userID string) (Transition, error) {
	if today.IsZero() {
		return Transition{}, fmt.Errorf("practice date is required")
	}

	if prev == nil || prev.LastPracticeDate.IsZero() {
		next := models.StreakState{UserID: userID}
		if prev != nil {
			next = *prev
		}
		next.CurrentStreak = 1
		next.LongestStreak = max(next.LongestStreak, 1)
		next.LastPracticeDate = today
		next.TotalPracticeDays++
		return Transition{Kind: Created, State: next}, nil
	}

	gap := prev.LastPracticeDate.DaysUntil(today)
	switch {
	case gap == 0:
		return Transition{Kind: Unchanged, State: *prev}, nil
	case gap < 0:
		return Transition{}, fmt.Errorf("%w: last %s, got %s", ErrClockSkew, prev.LastPracticeDate, today)
	}

	next := *prev
	kind := Reset
	if gap == 1 {
		kind = Extended
		next.CurrentStreak++
	} else {
		next.CurrentStreak = 1
	}
	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	next.TotalPracticeDays++
	next.LastPracticeDate = today

	return Transition{Kind: kind, State: next}, nil
}

// AtRisk reports whether a live streak will break unless the user practices today
func AtRisk(state *models.StreakState, today models.Date) bool {
	if state == nil || state.CurrentStreak == 0 || state.LastPracticeDate.IsZero() {
		return false
	}
	return state.LastPracticeDate.DaysUntil(today) >= 1
}

// DaysSince returns whole calendar days from the last practice to today,
// or nil if the user has never practiced.
func DaysSince(state *models.StreakState, today models.Date) *int {
	if state == nil || state.LastPracticeDate.IsZero() {
		return nil
	}
	d := state.LastPracticeDate.DaysUntil(today)
	return &d
}
