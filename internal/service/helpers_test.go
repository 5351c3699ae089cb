package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hanashite/internal/database"
	"hanashite/internal/models"
	"hanashite/internal/repository"
)

var tokyo = mustLoad("Asia/Tokyo")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// noon in Tokyo on 2024-04-10
var now = time.Date(2024, 4, 10, 12, 0, 0, 0, tokyo)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), nil))
	return db
}

func seedUser(t *testing.T, db *database.DB, id, name string) {
	t.Helper()
	require.NoError(t, repository.NewUserRepository(db).Upsert(context.Background(), id, id+"@example.com", name, now))
}

func seedTopic(t *testing.T, db *database.DB) {
	t.Helper()
	require.NoError(t, repository.NewTopicRepository(db).Upsert(context.Background(), &models.Topic{
		ID: "t1", Category: "日常・趣味", Title: "趣味について話してください", IsActive: true,
	}, now))
}

func seedPractice(t *testing.T, db *database.DB, id, userID string, score *int, at time.Time) {
	t.Helper()
	require.NoError(t, repository.NewPracticeRepository(db).Create(context.Background(), &models.PracticeRecord{
		ID: id, UserID: userID, TopicID: "t1", Transcription: "テスト",
		Feedback: models.Feedback{Score: score}, CreatedAt: at,
	}))
}

// seedSchool creates teacher T1 teaching class C1 (s1, s2) and C2 (s2, s3),
// plus class C3 with s4 that T1 does not teach.
func seedSchool(t *testing.T, db *database.DB) *models.Teacher {
	t.Helper()
	ctx := context.Background()
	seedTopic(t, db)
	for _, id := range []string{"teach", "s1", "s2", "s3", "s4"} {
		seedUser(t, db, id, "")
	}

	repo := repository.NewTeacherRepository(db)
	teacher := &models.Teacher{ID: "T1", UserID: "teach", Name: "佐藤先生", Email: "teach@example.com"}
	require.NoError(t, repo.Create(ctx, teacher, now))
	for _, c := range []string{"C1", "C2", "C3"} {
		require.NoError(t, repo.CreateClass(ctx, &models.Class{ID: c, Name: "クラス" + c, IsActive: true}, now))
	}
	require.NoError(t, repo.AssignTeacher(ctx, "T1", "C1"))
	require.NoError(t, repo.AssignTeacher(ctx, "T1", "C2"))
	require.NoError(t, repo.AssignStudent(ctx, "s1", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, "s2", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, "s2", "C2"))
	require.NoError(t, repo.AssignStudent(ctx, "s3", "C2"))
	require.NoError(t, repo.AssignStudent(ctx, "s4", "C3"))
	return teacher
}
