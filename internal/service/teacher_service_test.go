package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hanashite/internal/engagement"
	"hanashite/internal/models"
	"hanashite/internal/repository"
)

func newTeacherFixture(t *testing.T) (*TeacherService, *models.Teacher, func(id, user string, score *int, at time.Time)) {
	db := setupDB(t)
	teacher := seedSchool(t, db)
	svc := NewTeacherService(db, tokyo)
	svc.now = fixedClock(now)

	practice := func(id, user string, score *int, at time.Time) {
		seedPractice(t, db, id, user, score, at)
		_, err := NewStreakService(db, tokyo, nil, zap.NewNop()).RecordPractice(context.Background(), user, at)
		require.NoError(t, err)
	}
	return svc, teacher, practice
}

func TestCurrentTeacher(t *testing.T) {
	svc, teacher, _ := newTeacherFixture(t)
	ctx := context.Background()

	got, err := svc.CurrentTeacher(ctx, "teach")
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, got.ID)

	_, err = svc.CurrentTeacher(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotTeacher)
}

func TestAllStudentsDeduplicates(t *testing.T) {
	svc, teacher, practice := newTeacherFixture(t)
	ctx := context.Background()
	practice("p1", "s1", models.IntPtr(80), now.Add(-time.Hour))
	practice("p2", "s2", models.IntPtr(60), now.AddDate(0, 0, -5))

	list, err := svc.AllStudents(ctx, teacher, "")
	require.NoError(t, err)
	require.Len(t, list.Students, 3, "s2 appears once, s4 is not visible")

	byID := map[string]engagement.StudentSummary{}
	for _, s := range list.Students {
		byID[s.StudentID] = s
	}
	assert.Equal(t, "C1", byID["s2"].ClassID, "reported under the first class")
	assert.Equal(t, engagement.StatusActive, byID["s1"].Status)
	assert.Equal(t, engagement.StatusWarning, byID["s2"].Status)
	assert.Equal(t, engagement.StatusInactive, byID["s3"].Status)
	assert.Equal(t, 70.0, list.Summary.AverageScore)

	c2, err := svc.AllStudents(ctx, teacher, "C2")
	require.NoError(t, err)
	assert.Len(t, c2.Students, 2)
}

func TestClassStudentsAndClasses(t *testing.T) {
	svc, teacher, practice := newTeacherFixture(t)
	ctx := context.Background()
	practice("p1", "s3", models.IntPtr(90), now.Add(-time.Hour))

	list, err := svc.ClassStudents(ctx, teacher, "C2")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Summary.TotalStudents)
	assert.Equal(t, 1, list.Summary.ActiveStudents)

	_, err = svc.ClassStudents(ctx, teacher, "C3")
	assert.ErrorIs(t, err, ErrForbidden)

	classes, err := svc.Classes(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	stats := map[string]engagement.ClassWithStats{}
	for _, c := range classes {
		stats[c.ID] = c
	}
	assert.Equal(t, 2, stats["C1"].StudentCount)
	// s2 is counted under C1 only
	assert.Equal(t, 1, stats["C2"].StudentCount)
	assert.Equal(t, 1, stats["C2"].ThisWeekPractices)
}

func TestStudentDetailsAuthorisation(t *testing.T) {
	svc, teacher, practice := newTeacherFixture(t)
	ctx := context.Background()
	practice("p1", "s1", models.IntPtr(75), now.Add(-time.Hour))

	details, err := svc.StudentDetails(ctx, teacher, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, details.Stats.TotalPractices)
	assert.Equal(t, 1, details.Stats.CurrentStreak)
	assert.Len(t, details.RecentPractices, 1)

	_, err = svc.StudentDetails(ctx, teacher, "s4")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPracticeNotes(t *testing.T) {
	svc, teacher, practice := newTeacherFixture(t)
	ctx := context.Background()
	practice("p1", "s1", models.IntPtr(75), now.Add(-time.Hour))
	practice("p4", "s4", nil, now.Add(-time.Hour))

	first, err := svc.SaveNote(ctx, teacher, NoteRequest{PracticeID: "p1", Note: "助詞に注意"})
	require.NoError(t, err)
	second, err := svc.SaveNote(ctx, teacher, NoteRequest{PracticeID: "p1", Note: "よくできました"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	withNotes, err := svc.Practice(ctx, teacher, "p1")
	require.NoError(t, err)
	require.Len(t, withNotes.Notes, 1)
	assert.Equal(t, "よくできました", withNotes.Notes[0].Note)
	assert.Equal(t, "s1", withNotes.Student.ID)

	_, err = svc.Practice(ctx, teacher, "p4")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Practice(ctx, teacher, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SaveNote(ctx, teacher, NoteRequest{PracticeID: "p1"})
	assert.Error(t, err)
}

func TestMarkAlertRead(t *testing.T) {
	svc, teacher, _ := newTeacherFixture(t)
	ctx := context.Background()

	require.NoError(t, repository.NewAlertRepository(svc.db).Create(ctx, &models.TeacherAlert{
		ID: "a1", TeacherID: teacher.ID, StudentID: "s1", AlertType: models.AlertInactiveStudent, Message: "m", CreatedAt: now,
	}))

	unread, err := svc.Alerts(ctx, teacher, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	require.NoError(t, svc.MarkAlertRead(ctx, teacher, "a1"))
	unread, err = svc.Alerts(ctx, teacher, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, svc.MarkAlertRead(ctx, teacher, "nope"), repository.ErrNotFound)
}

func TestAnalytics(t *testing.T) {
	svc, teacher, practice := newTeacherFixture(t)
	ctx := context.Background()
	practice("p1", "s1", models.IntPtr(90), now.AddDate(0, 0, -8))
	practice("p2", "s1", models.IntPtr(70), now.Add(-time.Hour))
	practice("p3", "s2", models.IntPtr(50), now.AddDate(0, 0, -9))

	a, err := svc.Analytics(ctx, teacher, 0)
	require.NoError(t, err)
	assert.Equal(t, engagement.DefaultPeriodDays, a.PeriodDays)
	assert.Equal(t, 3, a.Summary.TotalStudents)
	assert.Equal(t, 3, a.Summary.TotalPractices)
	assert.Equal(t, 50.0, a.Summary.RetentionRate7Days)
	require.Len(t, a.TopPerformers, 1)
	assert.Equal(t, "s1", a.TopPerformers[0].StudentID)
}

func TestCanAccessStudent(t *testing.T) {
	db := setupDB(t)
	seedSchool(t, db)
	svc := NewTeacherService(db, tokyo)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    string
		student string
		want    bool
	}{
		{"own recordings", "s1", "s1", true},
		{"teacher of the class", "teach", "s3", true},
		{"student outside the teacher's classes", "teach", "s4", false},
		{"another student", "s1", "s2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.CanAccessStudent(ctx, tt.user, tt.student)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
