package models

import "time"

// Outbox event kinds
const (
	EventStreakRecordPractice = "streak.record_practice"
)

// Outbox event states
const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxFailed  = "failed"
	OutboxSkipped = "skipped"
)

// OutboxEvent is a side effect queued in the same transaction as the write that caused it
type OutboxEvent struct {
	ID   int64
	Kind string
	// OrderingKey serialises events: one key's events apply strictly in id order
	OrderingKey   string
	Payload       string
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	LockedUntil   *time.Time
}

// StreakEventPayload is the payload of EventStreakRecordPractice
type StreakEventPayload struct {
	UserID     string    `json:"user_id"`
	PracticeID string    `json:"practice_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
