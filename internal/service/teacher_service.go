package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hanashite/internal/database"
	"hanashite/internal/engagement"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/validation"
)

const alertListLimit = 50

// TeacherService answers teacher questions about the students in their classes
type TeacherService struct {
	db  database.DBTX
	loc *time.Location
	now func() time.Time
}

// NewTeacherService creates a new teacher service
func NewTeacherService(db database.DBTX, loc *time.Location) *TeacherService {
	return &TeacherService{db: db, loc: loc, now: time.Now}
}

// StudentList is a set of student rows with their cohort summary
type StudentList struct {
	Students []engagement.StudentSummary `json:"students"`
	Summary  engagement.CohortSummary    `json:"summary"`
}

// NoteRequest creates or replaces the teacher's note on a practice
type NoteRequest struct {
	PracticeID string `json:"practice_id" validate:"required"`
	Note       string `json:"note" validate:"required,max=2000"`
}

func (s *TeacherService) clock() engagement.Clock {
	return engagement.NewClock(s.now(), s.loc)
}

// CurrentTeacher returns the teacher record for a user, or ErrNotTeacher
func (s *TeacherService) CurrentTeacher(ctx context.Context, userID string) (*models.Teacher, error) {
	t, err := repository.NewTeacherRepository(s.db).GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotTeacher
	}
	return t, nil
}

// Classes lists the teacher's active classes with per-class statistics
func (s *TeacherService) Classes(ctx context.Context, teacher *models.Teacher) ([]engagement.ClassWithStats, error) {
	repo := repository.NewTeacherRepository(s.db)
	classes, err := repo.ListClasses(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	assignments, err := repo.StudentAssignments(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}

	students, err := s.summaries(ctx, assignments)
	if err != nil {
		return nil, err
	}
	byClass := make(map[string][]engagement.StudentSummary)
	for _, st := range students {
		byClass[st.ClassID] = append(byClass[st.ClassID], st)
	}

	out := make([]engagement.ClassWithStats, 0, len(classes))
	for _, c := range classes {
		out = append(out, engagement.BuildClassStats(c, byClass[c.ID]))
	}
	return out, nil
}

// ClassStudents lists the students of one class the teacher teaches
func (s *TeacherService) ClassStudents(ctx context.Context, teacher *models.Teacher, classID string) (*StudentList, error) {
	repo := repository.NewTeacherRepository(s.db)
	ok, err := repo.TeachesClass(ctx, teacher.ID, classID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	assignments, err := repo.StudentAssignments(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	return s.studentList(ctx, filterClass(assignments, classID))
}

// AllStudents lists every student across the teacher's classes once,
// optionally limited to one class.
func (s *TeacherService) AllStudents(ctx context.Context, teacher *models.Teacher, classID string) (*StudentList, error) {
	assignments, err := repository.NewTeacherRepository(s.db).StudentAssignments(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	if classID != "" {
		assignments = filterClass(assignments, classID)
	}
	return s.studentList(ctx, assignments)
}

func (s *TeacherService) studentList(ctx context.Context, assignments []models.StudentAssignment) (*StudentList, error) {
	students, err := s.summaries(ctx, assignments)
	if err != nil {
		return nil, err
	}
	return &StudentList{Students: students, Summary: engagement.SummarizeCohort(students)}, nil
}

// summaries builds one row per distinct student. A student in several
// classes is reported under the first.
func (s *TeacherService) summaries(ctx context.Context, assignments []models.StudentAssignment) ([]engagement.StudentSummary, error) {
	seen := make(map[string]bool, len(assignments))
	unique := make([]models.StudentAssignment, 0, len(assignments))
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if seen[a.StudentID] {
			continue
		}
		seen[a.StudentID] = true
		unique = append(unique, a)
		ids = append(ids, a.StudentID)
	}
	if len(ids) == 0 {
		return []engagement.StudentSummary{}, nil
	}

	users, err := repository.NewUserRepository(s.db).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	streaks, err := repository.NewStreakRepository(s.db).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	records, err := repository.NewPracticeRepository(s.db).ListByUsers(ctx, ids, repository.PracticeFilter{})
	if err != nil {
		return nil, err
	}

	inputs := make([]engagement.StudentInput, 0, len(unique))
	for _, a := range unique {
		u := users[a.StudentID]
		if u == nil {
			continue
		}
		inputs = append(inputs, engagement.StudentInput{
			User:      *u,
			Streak:    streaks[a.StudentID],
			ClassID:   a.ClassID,
			ClassName: a.ClassName,
		})
	}
	return engagement.BuildStudentSummaries(inputs, records, s.clock()), nil
}

func filterClass(assignments []models.StudentAssignment, classID string) []models.StudentAssignment {
	out := make([]models.StudentAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out
}

func (s *TeacherService) authorize(ctx context.Context, teacher *models.Teacher, studentID string) error {
	ok, err := repository.NewTeacherRepository(s.db).TeachesStudent(ctx, teacher.ID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// CanAccessStudent reports whether userID may see studentID's recordings:
// the student themself, or a teacher of one of the student's classes.
func (s *TeacherService) CanAccessStudent(ctx context.Context, userID, studentID string) (bool, error) {
	if userID == studentID {
		return true, nil
	}
	teacher, err := s.CurrentTeacher(ctx, userID)
	if errors.Is(err, ErrNotTeacher) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return repository.NewTeacherRepository(s.db).TeachesStudent(ctx, teacher.ID, studentID)
}

// StudentDetails returns the detail view of a student in one of the teacher's classes
func (s *TeacherService) StudentDetails(ctx context.Context, teacher *models.Teacher, studentID string) (*engagement.StudentDetails, error) {
	if err := s.authorize(ctx, teacher, studentID); err != nil {
		return nil, err
	}

	user, err := repository.NewUserRepository(s.db).GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	state, err := repository.NewStreakRepository(s.db).Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := repository.NewPracticeRepository(s.db).ListByUser(ctx, studentID, repository.PracticeFilter{})
	if err != nil {
		return nil, err
	}

	details := engagement.BuildStudentDetails(*user, state, records, s.clock())
	return &details, nil
}

// Practice returns a student's practice with every teacher note on it
func (s *TeacherService) Practice(ctx context.Context, teacher *models.Teacher, practiceID string) (*models.PracticeWithNotes, error) {
	rec, err := s.practice(ctx, teacher, practiceID)
	if err != nil {
		return nil, err
	}

	student, err := repository.NewUserRepository(s.db).GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	notes, err := repository.NewNoteRepository(s.db).ListForPractice(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &models.PracticeWithNotes{Practice: *rec, Student: student, Notes: notes}, nil
}

func (s *TeacherService) practice(ctx context.Context, teacher *models.Teacher, practiceID string) (*models.PracticeRecord, error) {
	rec, err := repository.NewPracticeRepository(s.db).GetByID(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if err := s.authorize(ctx, teacher, rec.UserID); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveNote creates the teacher's note on a practice or replaces its text
func (s *TeacherService) SaveNote(ctx context.Context, teacher *models.Teacher, req NoteRequest) (*models.TeacherNote, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	rec, err := s.practice(ctx, teacher, req.PracticeID)
	if err != nil {
		return nil, err
	}

	note := &models.TeacherNote{
		ID:         uuid.NewString(),
		TeacherID:  teacher.ID,
		StudentID:  rec.UserID,
		PracticeID: rec.ID,
		Note:       req.Note,
	}
	notes := repository.NewNoteRepository(s.db)
	if err := notes.Upsert(ctx, note, s.now()); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	// an update keeps the original row, so return what is stored
	stored, err := notes.ListForPractice(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for i := range stored {
		if stored[i].TeacherID == teacher.ID {
			return &stored[i], nil
		}
	}
	return note, nil
}

// Alerts lists the teacher's most recent alerts
func (s *TeacherService) Alerts(ctx context.Context, teacher *models.Teacher, unreadOnly bool) ([]models.TeacherAlert, error) {
	return repository.NewAlertRepository(s.db).List(ctx, teacher.ID, unreadOnly, alertListLimit)
}

// MarkAlertRead marks one of the teacher's alerts as read
func (s *TeacherService) MarkAlertRead(ctx context.Context, teacher *models.Teacher, alertID string) error {
	return repository.NewAlertRepository(s.db).MarkRead(ctx, teacher.ID, alertID)
}

// Analytics builds the cohort report over the teacher's students
func (s *TeacherService) Analytics(ctx context.Context, teacher *models.Teacher, periodDays int) (*engagement.Analytics, error) {
	list, err := s.AllStudents(ctx, teacher, "")
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(list.Students))
	for i, st := range list.Students {
		ids[i] = st.StudentID
	}

	periodDays = engagement.ClampPeriod(periodDays)
	lookback := max(periodDays, 14)
	clock := s.clock()
	records := []models.PracticeRecord{}
	if len(ids) > 0 {
		records, err = repository.NewPracticeRepository(s.db).ListByUsers(ctx, ids, repository.PracticeFilter{
			From: clock.Now.AddDate(0, 0, -lookback),
		})
		if err != nil {
			return nil, err
		}
	}

	a := engagement.BuildAnalytics(list.Students, records, periodDays, clock)
	return &a, nil
}
