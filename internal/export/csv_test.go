package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanashite/internal/engagement"
)

func intPtr(v int) *int { return &v }

func TestWriteStudentsCSV(t *testing.T) {
	students := []engagement.StudentSummary{
		{
			Name: "Aiko", Email: "aiko@example.com", ClassName: "N3",
			Status: engagement.StatusActive, CurrentStreak: 3,
			ThisWeekPractices: 2, ThisMonthPractices: 5, TotalPractices: 9,
			AverageScore: 78.26, BestScore: 92, DaysSinceLastPractice: intPtr(1),
		},
		{Name: "Ben", Email: "ben@example.com", Status: engagement.StatusInactive},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStudentsCSV(&buf, students))
	require.True(t, strings.HasPrefix(buf.String(), utf8BOM))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "名前", rows[0][0])
	assert.Equal(t, []string{"Aiko", "aiko@example.com", "N3", "アクティブ", "3日", "2回", "5回", "9回", "78.3点", "92点", "昨日"}, rows[1])
	assert.Equal(t, "-", rows[2][2])
	assert.Equal(t, "停滞", rows[2][3])
	assert.Equal(t, noPractice, rows[2][10])
}

func TestWriteAnalyticsCSV(t *testing.T) {
	a := engagement.Analytics{
		Summary: engagement.AnalyticsSummary{TotalStudents: 4, ActiveRate: 75, AverageScore: 81.5, TotalPractices: 12, RetentionRate7Days: 50},
		TopPerformers: []engagement.Performer{
			{Name: "Aiko", Practices: 4, AverageScore: 90},
		},
		AtRisk: []engagement.AtRiskStudent{
			{Name: "Ben", Status: engagement.StatusWarning, DaysSinceLastPractice: intPtr(5)},
		},
		CategoryDifficulty: []engagement.CategoryDifficulty{
			{Category: "日常会話", AverageScore: 55, Practices: 3, Difficulty: engagement.DifficultyHard},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalyticsCSV(&buf, a))
	out := buf.String()

	assert.Contains(t, out, "アクティブ率,75%")
	assert.Contains(t, out, "7日間継続率,50%")
	assert.Contains(t, out, "1,Aiko,4回,90.0点")
	assert.Contains(t, out, "Ben,要注意,5日前")
	assert.Contains(t, out, "日常会話,55.0点,難しい,3回")
}

func TestFilenames(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "生徒一覧_N3_20250309.csv", StudentsFilename("N3", now))
	assert.Equal(t, "全生徒一覧_20250309.csv", StudentsFilename("", now))
	assert.Equal(t, "統計分析_20250309.csv", AnalyticsFilename(now))
}
