package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

var base = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), nil))
	return db
}

func seedUserAndTopic(t *testing.T, db *database.DB, userID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, NewUserRepository(db).Upsert(ctx, userID, userID+"@example.com", "", base))
	require.NoError(t, NewTopicRepository(db).Upsert(ctx, &models.Topic{
		ID: "t1", Category: "日常会話", Title: "週末の予定", Hints: []string{"いつ", "どこで"}, IsActive: true,
	}, base))
}

func TestPracticeRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedUserAndTopic(t, db, "u1")
	repo := NewPracticeRepository(db)

	for i, score := range []*int{models.IntPtr(80), nil, models.IntPtr(0)} {
		rec := &models.PracticeRecord{
			ID:            "p" + string(rune('1'+i)),
			UserID:        "u1",
			TopicID:       "t1",
			Transcription: "こんにちは",
			Feedback:      models.Feedback{Score: score, GoodPoints: []string{"明瞭"}},
			CreatedAt:     base.Add(time.Duration(i) * 24 * time.Hour),
		}
		require.NoError(t, repo.Create(ctx, rec))
	}

	t.Run("get by id joins topic", func(t *testing.T) {
		rec, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "週末の予定", rec.TopicTitle)
		assert.Equal(t, "日常会話", rec.TopicCategory)
		assert.Equal(t, 80, *rec.Feedback.Score)
		assert.Equal(t, []string{"明瞭"}, rec.Feedback.GoodPoints)
		assert.Equal(t, []string{}, rec.Feedback.Improvements)
	})

	t.Run("missing id", func(t *testing.T) {
		rec, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("null and zero scores survive", func(t *testing.T) {
		unscored, err := repo.GetByID(ctx, "p2")
		require.NoError(t, err)
		assert.Nil(t, unscored.Feedback.Score)

		zero, err := repo.GetByID(ctx, "p3")
		require.NoError(t, err)
		require.NotNil(t, zero.Feedback.Score)
		assert.Equal(t, 0, *zero.Feedback.Score)
	})

	t.Run("list newest first with window", func(t *testing.T) {
		all, err := repo.ListByUser(ctx, "u1", PracticeFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "p3", all[0].ID)

		windowed, err := repo.ListByUser(ctx, "u1", PracticeFilter{From: base.Add(24 * time.Hour), To: base.Add(48 * time.Hour)})
		require.NoError(t, err)
		require.Len(t, windowed, 1)
		assert.Equal(t, "p2", windowed[0].ID)

		limited, err := repo.ListByUser(ctx, "u1", PracticeFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("list by users", func(t *testing.T) {
		none, err := repo.ListByUsers(ctx, nil, PracticeFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)

		some, err := repo.ListByUsers(ctx, []string{"u1", "u9"}, PracticeFilter{TopicID: "t1"})
		require.NoError(t, err)
		assert.Len(t, some, 3)
	})

	t.Run("delete all", func(t *testing.T) {
		n, err := repo.DeleteAllForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestStreakRepositoryCompareAndSwap(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedUserAndTopic(t, db, "u1")
	repo := NewStreakRepository(db)

	missing, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	day := models.DateOf(base, time.UTC)
	state := &models.StreakState{UserID: "u1", CurrentStreak: 1, LongestStreak: 1, LastPracticeDate: day, TotalPracticeDays: 1}
	require.NoError(t, repo.Insert(ctx, state, base))
	assert.Equal(t, int64(1), state.Version)

	dup := &models.StreakState{UserID: "u1", CurrentStreak: 1}
	assert.ErrorIs(t, repo.Insert(ctx, dup, base), ErrConflict)

	stale := *state
	state.CurrentStreak = 2
	state.LastPracticeDate = day.AddDays(1)
	require.NoError(t, repo.CompareAndSwap(ctx, state, base.Add(24*time.Hour)))
	assert.Equal(t, int64(2), state.Version)

	stale.CurrentStreak = 99
	assert.ErrorIs(t, repo.CompareAndSwap(ctx, &stale, base), ErrConflict)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, day.AddDays(1), got.LastPracticeDate)

	many, err := repo.GetMany(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
	assert.Contains(t, many, "u1")
}

func TestTeacherRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	for _, id := range []string{"teach", "s1", "s2", "s3"} {
		require.NoError(t, users.Upsert(ctx, id, id+"@example.com", "", base))
	}
	repo := NewTeacherRepository(db)

	require.NoError(t, repo.Create(ctx, &models.Teacher{ID: "T1", UserID: "teach", Name: "佐藤先生"}, base))
	require.NoError(t, repo.CreateClass(ctx, &models.Class{ID: "C1", Name: "初級A", IsActive: true}, base))
	require.NoError(t, repo.CreateClass(ctx, &models.Class{ID: "C2", Name: "中級B", IsActive: true}, base))
	require.NoError(t, repo.AssignTeacher(ctx, "T1", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, "s1", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, "s2", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, "s3", "C2"))

	teacher, err := repo.GetByUserID(ctx, "teach")
	require.NoError(t, err)
	require.NotNil(t, teacher)
	assert.Equal(t, "T1", teacher.ID)

	notTeacher, err := repo.GetByUserID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, notTeacher)

	classes, err := repo.ListClasses(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "初級A", classes[0].Name)

	ok, err := repo.TeachesClass(ctx, "T1", "C2")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := repo.ClassStudentIDs(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)

	assignments, err := repo.StudentAssignments(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, assignments, 2)

	ok, err = repo.TeachesStudent(ctx, "T1", "s3")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.TeachesStudent(ctx, "T1", "s2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoteAndAlertRepositories(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedUserAndTopic(t, db, "s1")
	require.NoError(t, NewUserRepository(db).Upsert(ctx, "teach", "teach@example.com", "先生", base))
	require.NoError(t, NewTeacherRepository(db).Create(ctx, &models.Teacher{ID: "T1", UserID: "teach", Name: "先生"}, base))
	require.NoError(t, NewPracticeRepository(db).Create(ctx, &models.PracticeRecord{
		ID: "p1", UserID: "s1", TopicID: "t1", Transcription: "x", CreatedAt: base,
	}))

	notes := NewNoteRepository(db)
	require.NoError(t, notes.Upsert(ctx, &models.TeacherNote{ID: "n1", TeacherID: "T1", StudentID: "s1", PracticeID: "p1", Note: "good"}, base))
	require.NoError(t, notes.Upsert(ctx, &models.TeacherNote{ID: "n2", TeacherID: "T1", StudentID: "s1", PracticeID: "p1", Note: "better"}, base.Add(time.Hour)))

	list, err := notes.ListForPractice(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "better", list[0].Note)
	assert.Equal(t, "n1", list[0].ID)

	alerts := NewAlertRepository(db)
	require.NoError(t, alerts.Create(ctx, &models.TeacherAlert{
		ID: "a1", TeacherID: "T1", StudentID: "s1", AlertType: models.AlertInactiveStudent, Message: "m", CreatedAt: base,
	}))

	has, err := alerts.HasUnread(ctx, "T1", "s1", models.AlertInactiveStudent)
	require.NoError(t, err)
	assert.True(t, has)

	listed, err := alerts.List(ctx, "T1", true, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "s1", listed[0].StudentName)

	require.NoError(t, alerts.MarkRead(ctx, "T1", "a1"))
	require.NoError(t, alerts.MarkRead(ctx, "T1", "a1"))
	assert.ErrorIs(t, alerts.MarkRead(ctx, "T2", "a1"), ErrNotFound)

	listed, err = alerts.List(ctx, "T1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestOutboxRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewOutboxRepository(db)

	id1, err := repo.Enqueue(ctx, models.EventStreakRecordPractice, "u1", `{"user_id":"u1"}`, base)
	require.NoError(t, err)
	id2, err := repo.Enqueue(ctx, models.EventStreakRecordPractice, "u2", `{"user_id":"u2"}`, base)
	require.NoError(t, err)

	due, err := repo.ClaimDue(ctx, base, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, id1, due[0].ID)
	assert.Equal(t, "u1", due[0].OrderingKey)
	require.NotNil(t, due[0].LockedUntil)

	require.NoError(t, repo.MarkRetry(ctx, id1, 1, base.Add(2*time.Second), "db locked"))
	require.NoError(t, repo.MarkDone(ctx, id2, 1, base))

	due, err = repo.ClaimDue(ctx, base.Add(time.Second), time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ClaimDue(ctx, base.Add(3*time.Second), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "db locked", due[0].LastError)

	require.NoError(t, repo.MarkParked(ctx, id1, models.OutboxFailed, 2, "gave up", base))
	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{models.OutboxDone: 1, models.OutboxFailed: 1}, counts)
}

func TestOutboxClaimLeasesAndOrdering(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewOutboxRepository(db)

	enqueue := func(key string) int64 {
		id, err := repo.Enqueue(ctx, models.EventStreakRecordPractice, key, "{}", base)
		require.NoError(t, err)
		return id
	}
	ids := func(events []models.OutboxEvent) []int64 {
		out := make([]int64, len(events))
		for i, e := range events {
			out[i] = e.ID
		}
		return out
	}

	u1a := enqueue("u1")
	u1b := enqueue("u1")
	u2 := enqueue("u2")
	free := enqueue("")

	// a leased batch is invisible to a second claimer
	first, err := repo.ClaimDue(ctx, base, time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{u1a, u1b, u2, free}, ids(first))

	second, err := repo.ClaimDue(ctx, base, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, second)

	// u1's head waits on a retry, so u1's later event stays queued
	require.NoError(t, repo.MarkRetry(ctx, u1a, 1, base.Add(time.Hour), "boom"))
	require.NoError(t, repo.Release(ctx, u1b))
	require.NoError(t, repo.Release(ctx, u2))
	due, err := repo.ClaimDue(ctx, base, time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{u2}, ids(due))

	// an expired lease can be claimed again
	due, err = repo.ClaimDue(ctx, base.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{u2, free}, ids(due))

	// the retry coming due releases the whole key in order
	require.NoError(t, repo.MarkDone(ctx, u2, 1, base))
	require.NoError(t, repo.MarkDone(ctx, free, 1, base))
	due, err = repo.ClaimDue(ctx, base.Add(time.Hour), time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{u1a, u1b}, ids(due))
}

func TestTopicRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewTopicRepository(db)

	require.NoError(t, repo.Upsert(ctx, &models.Topic{ID: "a", Category: "旅行", Title: "京都", IsActive: true, DisplayOrder: 2}, base))
	require.NoError(t, repo.Upsert(ctx, &models.Topic{ID: "b", Category: "旅行", Title: "大阪", IsActive: true, DisplayOrder: 1}, base))
	require.NoError(t, repo.Upsert(ctx, &models.Topic{ID: "c", Category: "仕事", Title: "会議", IsActive: false}, base))

	topics, err := repo.ListActive(ctx, "旅行")
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "b", topics[0].ID)
	assert.Equal(t, []string{}, topics[0].Hints)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategorySummary{{Category: "旅行", TopicCount: 2}}, categories)

	inactive, err := repo.GetByID(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, inactive)
	assert.False(t, inactive.IsActive)
}
