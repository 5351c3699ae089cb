package models

import "time"

// StreakState tracks consecutive practice days for one user.
// Version increases by one on every persisted change and guards concurrent updates.
type StreakState struct {
	UserID            string    `json:"user_id"`
	CurrentStreak     int       `json:"current_streak"`
	LongestStreak     int       `json:"longest_streak"`
	LastPracticeDate  Date      `json:"last_practice_date"`
	TotalPracticeDays int       `json:"total_practice_days"`
	Version           int64     `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
