package models

import "time"

// Feedback is the AI-generated assessment attached to a practice record.
// Score is nil until the attempt has been scored; 0 is a real score.
type Feedback struct {
	Score         *int     `json:"score"`
	GoodPoints    []string `json:"goodPoints"`
	Improvements  []string `json:"improvements"`
	CorrectedText string   `json:"correctedText"`
}

// Scored reports whether the feedback carries a score
func (f Feedback) Scored() bool {
	return f.Score != nil
}

// PracticeRecord is one completed speech-practice attempt
type PracticeRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TopicID         string    `json:"topic_id"`
	TopicTitle      string    `json:"topic_title"`
	TopicCategory   string    `json:"topic_category"`
	AudioURL        string    `json:"audio_url,omitempty"`
	Transcription   string    `json:"transcription"`
	Feedback        Feedback  `json:"feedback"`
	DurationSeconds int       `json:"duration"`
	CreatedAt       time.Time `json:"created_at"`
}

// Score returns the record's score and whether it has one
func (p PracticeRecord) Score() (int, bool) {
	if p.Feedback.Score == nil {
		return 0, false
	}
	return *p.Feedback.Score, true
}

// PracticeWithNotes is a practice record as shown to a teacher
type PracticeWithNotes struct {
	Practice PracticeRecord `json:"practice"`
	Student  *User          `json:"student"`
	Notes    []TeacherNote  `json:"notes"`
}

// IntPtr is a small helper for optional integer fields
func IntPtr(v int) *int {
	return &v
}
