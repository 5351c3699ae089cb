package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hanashite/internal/database"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/validation"
)

// Transcriber turns a recording into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// FeedbackGenerator reviews a transcript
type FeedbackGenerator interface {
	Generate(ctx context.Context, transcription, topicTitle string) (models.Feedback, error)
}

// AudioStore keeps uploaded recordings
type AudioStore interface {
	Save(ctx context.Context, userID, practiceID string, r io.Reader) (string, error)
	Delete(key string) error
	URL(key string) string
}

// Notifier is woken after new outbox events are committed
type Notifier interface {
	Notify()
}

// SubmitRequest is one uploaded practice attempt
type SubmitRequest struct {
	TopicID  string `validate:"required"`
	Duration int    `validate:"gte=0,lte=3600"`
	Audio    []byte `validate:"required,min=1"`
}

// PracticeService records practice attempts
type PracticeService struct {
	db          *database.DB
	audio       AudioStore
	transcriber Transcriber
	feedback    FeedbackGenerator
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewPracticeService creates a new practice service
func NewPracticeService(db *database.DB, audio AudioStore, transcriber Transcriber, feedback FeedbackGenerator,
	notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *PracticeService {
	return &PracticeService{
		db:          db,
		audio:       audio,
		transcriber: transcriber,
		feedback:    feedback,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit stores the recording, transcribes and reviews it, then saves the
// record together with its streak event. The streak itself is updated later
// by the outbox dispatcher.
func (s *PracticeService) Submit(ctx context.Context, id models.Identity, req SubmitRequest) (*models.PracticeRecord, error) {
	if err := validation.Struct(req); err != nil {
		s.metrics.Submission("invalid")
		return nil, err
	}

	topic, err := repository.NewTopicRepository(s.db).GetByID(ctx, req.TopicID)
	if err != nil {
		s.metrics.Submission("error")
		return nil, err
	}
	if topic == nil || !topic.IsActive {
		s.metrics.Submission("invalid")
		return nil, fmt.Errorf("topic %s: %w", req.TopicID, ErrNotFound)
	}

	practiceID := uuid.NewString()
	key, err := s.audio.Save(ctx, id.UserID, practiceID, bytes.NewReader(req.Audio))
	if err != nil {
		s.metrics.Submission("error")
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}

	rec, err := s.process(ctx, id, topic, practiceID, key, req)
	if err != nil {
		if delErr := s.audio.Delete(key); delErr != nil {
			s.logger.Warn("failed to remove audio after failed submission",
				zap.String("key", key), zap.Error(delErr))
		}
		s.metrics.Submission("error")
		return nil, err
	}

	s.notifier.Notify()
	s.metrics.Submission("ok")
	s.logger.Info("practice submitted",
		zap.String("practice_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("topic_id", rec.TopicID))
	return rec, nil
}

func (s *PracticeService) process(ctx context.Context, id models.Identity, topic *models.Topic, practiceID, key string, req SubmitRequest) (*models.PracticeRecord, error) {
	transcript, err := s.transcriber.Transcribe(ctx, req.Audio)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	fb, err := s.feedback.Generate(ctx, transcript, topic.Title)
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}

	rec := &models.PracticeRecord{
		ID:              practiceID,
		UserID:          id.UserID,
		TopicID:         topic.ID,
		TopicTitle:      topic.Title,
		TopicCategory:   topic.Category,
		AudioURL:        s.audio.URL(key),
		Transcription:   transcript,
		Feedback:        fb,
		DurationSeconds: req.Duration,
		CreatedAt:       s.now().UTC(),
	}

	payload, err := json.Marshal(models.StreakEventPayload{
		UserID:     rec.UserID,
		PracticeID: rec.ID,
		OccurredAt: rec.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := repository.NewPracticeRepository(tx).Create(ctx, rec); err != nil {
			return err
		}
		_, err := repository.NewOutboxRepository(tx).Enqueue(ctx, models.EventStreakRecordPractice, rec.UserID, string(payload), rec.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the user's practices, newest first
func (s *PracticeService) List(ctx context.Context, userID string, filter repository.PracticeFilter) ([]models.PracticeRecord, error) {
	return repository.NewPracticeRepository(s.db).ListByUser(ctx, userID, filter)
}

// Get returns one of the user's own practices
func (s *PracticeService) Get(ctx context.Context, userID, practiceID string) (*models.PracticeRecord, error) {
	rec, err := repository.NewPracticeRepository(s.db).GetByID(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != userID {
		return nil, ErrNotFound
	}
	return rec, nil
}
