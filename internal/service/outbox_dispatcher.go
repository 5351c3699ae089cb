package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/database"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/streak"
)

const (
	maxOutboxBackoff   = 5 * time.Minute
	defaultOutboxLease = 2 * time.Minute
)

// StreakRecorder applies one practice to a user's streak
type StreakRecorder interface {
	RecordPractice(ctx context.Context, userID string, at time.Time) (streak.Transition, error)
}

// DispatcherConfig tunes the outbox dispatcher
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease is how long a claimed batch stays invisible to other dispatchers
	Lease time.Duration
}

// DrainResult counts what a single pass did
type DrainResult struct {
	Done    int `json:"done"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// Deferred events wait behind an earlier event of the same user that is being retried
	Deferred int `json:"deferred"`
}

// OutboxDispatcher applies queued side effects at least once
type OutboxDispatcher struct {
	db      database.DBTX
	streaks StreakRecorder
	cfg     DispatcherConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	wake    chan struct{}
	now     func() time.Time
}

// NewOutboxDispatcher creates a dispatcher
func NewOutboxDispatcher(db database.DBTX, streaks StreakRecorder, cfg DispatcherConfig, m *metrics.Metrics, logger *zap.Logger) *OutboxDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultOutboxLease
	}
	return &OutboxDispatcher{
		db:      db,
		streaks: streaks,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Notify asks a running dispatcher to drain now instead of at the next tick
func (d *OutboxDispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the outbox until ctx is cancelled
func (d *OutboxDispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox dispatcher started",
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("batch_size", d.cfg.BatchSize))

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DrainOnce processes up to one batch of due events. A user's events apply
// in submission order: once one is rescheduled, the rest of that user's
// events wait for it.
func (d *OutboxDispatcher) DrainOnce(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	repo := repository.NewOutboxRepository(d.db)

	events, err := repo.ClaimDue(ctx, d.now(), d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	held := map[string]bool{}
	for _, e := range events {
		if e.OrderingKey != "" && held[e.OrderingKey] {
			if err := repo.Release(ctx, e.ID); err != nil {
				return result, err
			}
			result.Deferred++
			continue
		}

		status, err := d.process(ctx, repo, e)
		if err != nil {
			return result, err
		}
		d.metrics.OutboxProcessed(status)
		if status == models.OutboxPending && e.OrderingKey != "" {
			held[e.OrderingKey] = true
		}
		switch status {
		case models.OutboxDone:
			result.Done++
		case models.OutboxFailed:
			result.Failed++
		case models.OutboxSkipped:
			result.Skipped++
		default:
			result.Retried++
		}
	}

	if counts, err := repo.CountByStatus(ctx); err == nil {
		d.metrics.SetOutboxPending(counts[models.OutboxPending])
	}
	return result, nil
}

// process applies one event and records its outcome. The returned error is
// only set when the outcome itself could not be stored.
func (d *OutboxDispatcher) process(ctx context.Context, repo *repository.OutboxRepository, e models.OutboxEvent) (string, error) {
	attempts := e.Attempts + 1
	applyErr := d.apply(ctx, e)
	now := d.now()

	fields := []zap.Field{
		zap.Int64("event_id", e.ID),
		zap.String("kind", e.Kind),
		zap.Int("attempts", attempts),
	}

	switch {
	case applyErr == nil:
		return models.OutboxDone, repo.MarkDone(ctx, e.ID, attempts, now)

	case errors.Is(applyErr, streak.ErrClockSkew):
		d.logger.Warn("outbox event skipped", append(fields, zap.Error(applyErr))...)
		return models.OutboxSkipped, repo.MarkParked(ctx, e.ID, models.OutboxSkipped, attempts, applyErr.Error(), now)

	case errors.Is(applyErr, errPermanent) || attempts >= d.cfg.MaxAttempts:
		d.logger.Error("outbox event failed permanently", append(fields, zap.Error(applyErr))...)
		return models.OutboxFailed, repo.MarkParked(ctx, e.ID, models.OutboxFailed, attempts, applyErr.Error(), now)

	default:
		next := now.Add(OutboxBackoff(attempts))
		d.logger.Warn("outbox event will be retried", append(fields, zap.Time("next_attempt_at", next), zap.Error(applyErr))...)
		return models.OutboxPending, repo.MarkRetry(ctx, e.ID, attempts, next, applyErr.Error())
	}
}

var errPermanent = errors.New("permanent outbox failure")

func (d *OutboxDispatcher) apply(ctx context.Context, e models.OutboxEvent) error {
	switch e.Kind {
	case models.EventStreakRecordPractice:
		var p models.StreakEventPayload
		if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
			return fmt.Errorf("%w: bad payload: %v", errPermanent, err)
		}
		if p.UserID == "" || p.OccurredAt.IsZero() {
			return fmt.Errorf("%w: payload missing user or time", errPermanent)
		}
		_, err := d.streaks.RecordPractice(ctx, p.UserID, p.OccurredAt)
		return err
	default:
		return fmt.Errorf("%w: unknown event kind %q", errPermanent, e.Kind)
	}
}

// OutboxBackoff is the delay before retry number attempts: 2^attempts seconds, capped at five minutes
func OutboxBackoff(attempts int) time.Duration {
	if attempts >= 9 {
		return maxOutboxBackoff
	}
	return min(time.Duration(1<<attempts)*time.Second, maxOutboxBackoff)
}
