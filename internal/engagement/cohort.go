package engagement

import "hanashite/internal/models"

// CohortSummary aggregates a list of students
type CohortSummary struct {
	TotalStudents          int     `json:"total_students"`
	ActiveStudents         int     `json:"active_students"`
	WarningStudents        int     `json:"warning_students"`
	InactiveStudents       int     `json:"inactive_students"`
	AverageScore           float64 `json:"average_score"`
	ThisWeekTotalPractices int     `json:"this_week_total_practices"`
}

// SummarizeCohort counts students per status and averages their per-student
// averages. Students with no scored practice have no average and are left out
// of the mean rather than counted as zero.
func SummarizeCohort(students []StudentSummary) CohortSummary {
	summary := CohortSummary{TotalStudents: len(students)}

	var sum float64
	var scored int
	for _, s := range students {
		switch s.Status {
		case StatusActive:
			summary.ActiveStudents++
		case StatusWarning:
			summary.WarningStudents++
		case StatusInactive:
			summary.InactiveStudents++
		}
		summary.ThisWeekTotalPractices += s.ThisWeekPractices
		if s.ScoredPractices > 0 {
			sum += s.AverageScore
			scored++
		}
	}
	if scored > 0 {
		summary.AverageScore = round1(sum / float64(scored))
	}
	return summary
}

// ClassWithStats is a class as listed on a teacher's overview
type ClassWithStats struct {
	models.Class
	StudentCount       int     `json:"student_count"`
	ActiveStudentCount int     `json:"active_student_count"`
	AverageScore       float64 `json:"average_score"`
	ThisWeekPractices  int     `json:"this_week_practices"`
}

// BuildClassStats summarises a class from its students' rows
func BuildClassStats(class models.Class, students []StudentSummary) ClassWithStats {
	summary := SummarizeCohort(students)
	return ClassWithStats{
		Class:              class,
		StudentCount:       summary.TotalStudents,
		ActiveStudentCount: summary.ActiveStudents,
		AverageScore:       summary.AverageScore,
		ThisWeekPractices:  summary.ThisWeekTotalPractices,
	}
}
