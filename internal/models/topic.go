package models

import "time"

// Topic is a speaking prompt students choose before recording
type Topic struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Hints        []string  `json:"hints"`
	TargetLevel  string    `json:"target_level"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// CategorySummary counts active topics per category
type CategorySummary struct {
	Category   string `json:"category"`
	TopicCount int    `json:"topic_count"`
}
