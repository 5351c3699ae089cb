// Package export renders teacher reports as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"hanashite/internal/engagement"
)

// utf8BOM makes Excel detect the encoding of Japanese headers
const utf8BOM = "\uFEFF"

const noPractice = "練習なし"

// StudentsFilename names a student export, scoped to a class when className is set
func StudentsFilename(className string, now time.Time) string {
	if className != "" {
		return fmt.Sprintf("生徒一覧_%s_%s.csv", className, now.Format("20060102"))
	}
	return fmt.Sprintf("全生徒一覧_%s.csv", now.Format("20060102"))
}

// AnalyticsFilename names an analytics export
func AnalyticsFilename(now time.Time) string {
	return fmt.Sprintf("統計分析_%s.csv", now.Format("20060102"))
}

// WriteStudentsCSV writes one row per student
func WriteStudentsCSV(w io.Writer, students []engagement.StudentSummary) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"名前", "メールアドレス", "クラス", "状態", "ストリーク", "今週練習", "今月練習", "総練習回数", "平均スコア", "最高スコア", "最終練習日"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range students {
		class := s.ClassName
		if class == "" {
			class = "-"
		}
		row := []string{
			s.Name,
			s.Email,
			class,
			StatusLabel(s.Status),
			days(s.CurrentStreak),
			times(s.ThisWeekPractices),
			times(s.ThisMonthPractices),
			times(s.TotalPractices),
			points(s.AverageScore),
			strconv.Itoa(s.BestScore) + "点",
			lastPractice(s.DaysSinceLastPractice),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAnalyticsCSV writes the report as labelled sections separated by blank rows
func WriteAnalyticsCSV(w io.Writer, a engagement.Analytics) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"=== サマリー ==="},
		{"項目", "値"},
		{"総生徒数", fmt.Sprintf("%d名", a.Summary.TotalStudents)},
		{"アクティブ率", percent(a.Summary.ActiveRate)},
		{"平均スコア", points(a.Summary.AverageScore)},
		{"総練習回数", times(a.Summary.TotalPractices)},
		{"7日間継続率", percent(a.Summary.RetentionRate7Days)},
		{},
		{"=== トップパフォーマー（今週） ==="},
		{"順位", "名前", "練習回数", "平均スコア"},
	}
	for i, p := range a.TopPerformers {
		rows = append(rows, []string{strconv.Itoa(i + 1), p.Name, times(p.Practices), points(p.AverageScore)})
	}

	rows = append(rows, []string{}, []string{"=== 要注意・停滞生徒 ==="}, []string{"名前", "状態", "最終練習"})
	for _, s := range a.AtRisk {
		rows = append(rows, []string{s.Name, StatusLabel(s.Status), lastPractice(s.DaysSinceLastPractice)})
	}

	rows = append(rows, []string{}, []string{"=== カテゴリ別難易度 ==="}, []string{"カテゴリ", "平均スコア", "難易度", "練習回数"})
	for _, c := range a.CategoryDifficulty {
		rows = append(rows, []string{c.Category, points(c.AverageScore), DifficultyLabel(c.Difficulty), times(c.Practices)})
	}

	// blank rows separate sections
	for _, row := range rows {
		if len(row) == 0 {
			row = []string{""}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StatusLabel is the Japanese label shown for a status
func StatusLabel(s engagement.Status) string {
	switch s {
	case engagement.StatusActive:
		return "アクティブ"
	case engagement.StatusWarning:
		return "要注意"
	case engagement.StatusInactive:
		return "停滞"
	default:
		return string(s)
	}
}

// DifficultyLabel is the Japanese label shown for a difficulty
func DifficultyLabel(d engagement.Difficulty) string {
	switch d {
	case engagement.DifficultyEasy:
		return "簡単"
	case engagement.DifficultyMedium:
		return "普通"
	case engagement.DifficultyHard:
		return "難しい"
	default:
		return string(d)
	}
}

func lastPractice(daysSince *int) string {
	switch {
	case daysSince == nil:
		return noPractice
	case *daysSince <= 0:
		return "今日"
	case *daysSince == 1:
		return "昨日"
	default:
		return fmt.Sprintf("%d日前", *daysSince)
	}
}

func days(n int) string  { return strconv.Itoa(n) + "日" }
func times(n int) string { return strconv.Itoa(n) + "回" }

func points(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "点"
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64) + "%"
}
