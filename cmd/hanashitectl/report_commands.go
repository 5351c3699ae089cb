package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hanashite/internal/engagement"
	"hanashite/internal/export"
	"hanashite/internal/service"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Teacher alert maintenance",
	}
	alertsCmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Raise alerts for students who stopped practicing and email digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.cfg
			mailer, err := service.NewEmailService(cmd.Context(), cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug, ctx.logger)
			if err != nil {
				return err
			}
			res, err := service.NewAlertService(ctx.db, ctx.teachers(), mailer, nil, ctx.logger).Scan(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d teachers: %d alerts created, %d digests emailed\n",
				res.Teachers, res.Created, res.Emailed)
			return nil
		},
	})
	return alertsCmd
}

func newStudentsCommand(ctx *commandContext) *cobra.Command {
	var teacherUserID, classID string
	studentsCmd := &cobra.Command{
		Use:   "students",
		Short: "List a teacher's students with engagement status",
		RunE: func(cmd *cobra.Command, args []string) error {
			teacher, err := ctx.teacher(cmd.Context(), teacherUserID)
			if err != nil {
				return err
			}
			list, err := ctx.teachers().AllStudents(cmd.Context(), teacher, classID)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, list)
			}
			if len(list.Students) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No students")
				return nil
			}

			rows := make([][]string, 0, len(list.Students))
			for _, st := range list.Students {
				rows = append(rows, []string{
					st.Name,
					st.ClassName,
					export.StatusLabel(st.Status),
					strconv.Itoa(st.CurrentStreak),
					strconv.Itoa(st.ThisWeekPractices),
					strconv.Itoa(st.TotalPractices),
					formatScore(st.AverageScore, st.ScoredPractices),
					lastSeen(st.LastPracticeDate.IsZero(), st.LastPracticeDate.In(ctx.cfg.Timezone)),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Class", "Status", "Streak", "Week", "Total", "Avg", "Last practice"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			s := list.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "%d students: %d active, %d warning, %d inactive\n",
				s.TotalStudents, s.ActiveStudents, s.WarningStudents, s.InactiveStudents)
			return nil
		},
	}
	studentsCmd.Flags().StringVar(&teacherUserID, "teacher", "", "User ID of the teacher")
	studentsCmd.Flags().StringVar(&classID, "class-id", "", "Only students of this class")
	_ = studentsCmd.MarkFlagRequired("teacher")
	return studentsCmd
}

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var teacherUserID string
	var period int
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show the cohort analytics report for a teacher",
		RunE: func(cmd *cobra.Command, args []string) error {
			teacher, err := ctx.teacher(cmd.Context(), teacherUserID)
			if err != nil {
				return err
			}
			a, err := ctx.teachers().Analytics(cmd.Context(), teacher, period)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, a)
			}
			printAnalytics(cmd, a)
			return nil
		},
	}
	analyticsCmd.Flags().StringVar(&teacherUserID, "teacher", "", "User ID of the teacher")
	analyticsCmd.Flags().IntVar(&period, "period", engagement.DefaultPeriodDays, "Report period in days")
	_ = analyticsCmd.MarkFlagRequired("teacher")
	return analyticsCmd
}

func printAnalytics(cmd *cobra.Command, a *engagement.Analytics) {
	out := cmd.OutOrStdout()
	s := a.Summary
	fmt.Fprintf(out, "Last %d days\n", a.PeriodDays)
	fmt.Fprint(out, renderTable([]string{"Metric", "Value"}, [][]string{
		{"Students", strconv.Itoa(s.TotalStudents)},
		{"Active rate", fmt.Sprintf("%.0f%%", s.ActiveRate)},
		{"Average score", fmt.Sprintf("%.1f", s.AverageScore)},
		{"Practices", humanize.Comma(int64(s.TotalPractices))},
		{"7-day retention", fmt.Sprintf("%.0f%%", s.RetentionRate7Days)},
	}, []columnAlignment{alignLeft, alignRight}))

	if len(a.TopPerformers) > 0 {
		rows := make([][]string, 0, len(a.TopPerformers))
		for i, p := range a.TopPerformers {
			rows = append(rows, []string{humanize.Ordinal(i + 1), p.Name, strconv.Itoa(p.Practices), fmt.Sprintf("%.1f", p.AverageScore)})
		}
		fmt.Fprintln(out, "Top performers this week")
		fmt.Fprint(out, renderTable([]string{"Rank", "Name", "Practices", "Avg"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
	}

	if len(a.AtRisk) > 0 {
		rows := make([][]string, 0, len(a.AtRisk))
		for _, st := range a.AtRisk {
			since := "never"
			if st.DaysSinceLastPractice != nil {
				since = strconv.Itoa(*st.DaysSinceLastPractice) + " days"
			}
			rows = append(rows, []string{st.Name, st.ClassName, export.StatusLabel(st.Status), since})
		}
		fmt.Fprintln(out, "Students needing attention")
		fmt.Fprint(out, renderTable([]string{"Name", "Class", "Status", "Since last practice"}, rows, nil))
	}

	if len(a.CategoryDifficulty) > 0 {
		rows := make([][]string, 0, len(a.CategoryDifficulty))
		for _, c := range a.CategoryDifficulty {
			rows = append(rows, []string{c.Category, fmt.Sprintf("%.1f", c.AverageScore), strconv.Itoa(c.Practices), export.DifficultyLabel(c.Difficulty)})
		}
		fmt.Fprintln(out, "Category difficulty")
		fmt.Fprint(out, renderTable([]string{"Category", "Avg", "Practices", "Difficulty"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var teacherUserID, classID, output string
	var period int

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write teacher reports as CSV files",
	}
	exportCmd.PersistentFlags().StringVar(&teacherUserID, "teacher", "", "User ID of the teacher")
	exportCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output path (default: the download filename in the current directory)")
	_ = exportCmd.MarkPersistentFlagRequired("teacher")

	studentsCmd := &cobra.Command{
		Use:   "students",
		Short: "Export the student list",
		RunE: func(cmd *cobra.Command, args []string) error {
			teacher, err := ctx.teacher(cmd.Context(), teacherUserID)
			if err != nil {
				return err
			}
			list, err := ctx.teachers().AllStudents(cmd.Context(), teacher, classID)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := export.WriteStudentsCSV(&buf, list.Students); err != nil {
				return err
			}
			className := ""
			if classID != "" && len(list.Students) > 0 {
				className = list.Students[0].ClassName
			}
			return writeExport(cmd, output, export.StudentsFilename(className, time.Now()), buf.Bytes())
		},
	}
	studentsCmd.Flags().StringVar(&classID, "class-id", "", "Only students of this class")

	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Export the analytics report",
		RunE: func(cmd *cobra.Command, args []string) error {
			teacher, err := ctx.teacher(cmd.Context(), teacherUserID)
			if err != nil {
				return err
			}
			a, err := ctx.teachers().Analytics(cmd.Context(), teacher, period)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := export.WriteAnalyticsCSV(&buf, *a); err != nil {
				return err
			}
			return writeExport(cmd, output, export.AnalyticsFilename(time.Now()), buf.Bytes())
		},
	}
	analyticsCmd.Flags().IntVar(&period, "period", engagement.DefaultPeriodDays, "Report period in days")

	exportCmd.AddCommand(studentsCmd, analyticsCmd)
	return exportCmd
}

func writeExport(cmd *cobra.Command, output, defaultName string, data []byte) error {
	if output == "" {
		output = defaultName
	}
	if dir := filepath.Dir(output); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, humanize.Bytes(uint64(len(data))))
	return nil
}

func formatScore(avg float64, scored int) string {
	if scored == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", avg)
}

func lastSeen(never bool, at time.Time) string {
	if never {
		return "never"
	}
	return humanize.Time(at)
}
