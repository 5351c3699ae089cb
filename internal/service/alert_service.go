package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hanashite/internal/database"
	"hanashite/internal/engagement"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/repository"
)

// AlertMailer delivers a teacher's new alerts
type AlertMailer interface {
	SendAlertDigest(ctx context.Context, toEmail, teacherName string, alerts []models.TeacherAlert) error
}

// ScanResult counts what one alert scan did
type ScanResult struct {
	Teachers int `json:"teachers"`
	Created  int `json:"created"`
	Emailed  int `json:"emailed"`
}

// AlertService raises alerts for students who stopped practicing
type AlertService struct {
	db       database.DBTX
	teachers *TeacherService
	mailer   AlertMailer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAlertService creates an alert service. mailer may be nil.
func NewAlertService(db database.DBTX, teachers *TeacherService, mailer AlertMailer, m *metrics.Metrics, logger *zap.Logger) *AlertService {
	return &AlertService{
		db:       db,
		teachers: teachers,
		mailer:   mailer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Scan raises an alert for every warning or inactive student that has no
// unread alert of the same type yet.
func (s *AlertService) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	teachers, err := repository.NewTeacherRepository(s.db).List(ctx)
	if err != nil {
		return result, err
	}

	for i := range teachers {
		t := &teachers[i]
		created, err := s.scanTeacher(ctx, t)
		if err != nil {
			return result, fmt.Errorf("alert scan for teacher %s: %w", t.ID, err)
		}
		result.Teachers++
		result.Created += len(created)

		if len(created) == 0 || s.mailer == nil {
			continue
		}
		if err := s.mailer.SendAlertDigest(ctx, t.Email, t.Name, created); err != nil {
			s.logger.Warn("failed to send alert digest",
				zap.String("teacher_id", t.ID), zap.Error(err))
			continue
		}
		result.Emailed++
	}

	s.logger.Info("alert scan finished",
		zap.Int("teachers", result.Teachers),
		zap.Int("created", result.Created),
		zap.Int("emailed", result.Emailed))
	return result, nil
}

func (s *AlertService) scanTeacher(ctx context.Context, t *models.Teacher) ([]models.TeacherAlert, error) {
	list, err := s.teachers.AllStudents(ctx, t, "")
	if err != nil {
		return nil, err
	}

	repo := repository.NewAlertRepository(s.db)
	created := []models.TeacherAlert{}
	for _, st := range list.Students {
		alertType, ok := alertTypeFor(st.Status)
		if !ok {
			continue
		}
		exists, err := repo.HasUnread(ctx, t.ID, st.StudentID, alertType)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		alert := models.TeacherAlert{
			ID:          uuid.NewString(),
			TeacherID:   t.ID,
			StudentID:   st.StudentID,
			StudentName: st.Name,
			AlertType:   alertType,
			Message:     alertMessage(st),
			CreatedAt:   s.now(),
		}
		if err := repo.Create(ctx, &alert); err != nil {
			return nil, err
		}
		s.metrics.AlertCreated(alertType)
		created = append(created, alert)
	}
	return created, nil
}

// Run scans every interval until ctx is cancelled
func (s *AlertService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn("alert scanner disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("alert scan failed", zap.Error(err))
			}
		}
	}
}

func alertTypeFor(status engagement.Status) (string, bool) {
	switch status {
	case engagement.StatusInactive:
		return models.AlertInactiveStudent, true
	case engagement.StatusWarning:
		return models.AlertWarningStudent, true
	default:
		return "", false
	}
}

func alertMessage(st engagement.StudentSummary) string {
	if st.DaysSinceLastPractice == nil {
		return fmt.Sprintf("%sさんはまだ一度も練習していません", st.Name)
	}
	return fmt.Sprintf("%sさんは%d日間練習していません", st.Name, *st.DaysSinceLastPractice)
}
