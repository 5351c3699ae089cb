package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hanashite/internal/metrics"
	"hanashite/internal/repository"
	"hanashite/internal/service"
)

// maxDrainBatches bounds one drain so a poison batch cannot loop forever
const maxDrainBatches = 1000

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.db.RunMigrations(cmd.Context(), ctx.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", ctx.cfg.DatabaseType)
			return nil
		},
	}
}

func newSeedTopicsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-topics",
		Short: "Insert or refresh the built-in speaking topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := service.NewTopicService(ctx.db, ctx.logger).SeedDefaultTopics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d topics\n", n)
			return nil
		},
	}
}

func newOutboxCommand(ctx *commandContext) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain queued side effects",
	}
	outboxCmd.AddCommand(newOutboxStatusCommand(ctx))
	outboxCmd.AddCommand(newOutboxDrainCommand(ctx))
	return outboxCmd
}

func newOutboxStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count outbox events by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := repository.NewOutboxRepository(ctx.db).CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, counts)
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty")
				return nil
			}

			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				rows = append(rows, []string{s, humanize.Comma(int64(counts[s]))})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Events"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newOutboxDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Apply every due outbox event now",
		Long:  "Runs the same dispatcher the server runs until no due events remain. Safe to run while the server is up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			dispatcher := service.NewOutboxDispatcher(ctx.db, ctx.streaks(), service.DispatcherConfig{
				BatchSize:   ctx.cfg.OutboxBatchSize,
				MaxAttempts: ctx.cfg.OutboxMaxAttempts,
			}, m, ctx.logger)

			start := time.Now()
			var total service.DrainResult
			for i := 0; i < maxDrainBatches; i++ {
				res, err := dispatcher.DrainOnce(cmd.Context())
				if err != nil {
					return err
				}
				total.Done += res.Done
				total.Retried += res.Retried
				total.Failed += res.Failed
				total.Skipped += res.Skipped
				total.Deferred += res.Deferred
				if res.Done+res.Retried+res.Failed+res.Skipped == 0 {
					break
				}
			}

			if ctx.json() {
				return writeJSON(cmd, total)
			}
			rows := [][]string{
				{"done", strconv.Itoa(total.Done)},
				{"retried", strconv.Itoa(total.Retried)},
				{"failed", strconv.Itoa(total.Failed)},
				{"skipped", strconv.Itoa(total.Skipped)},
				{"deferred", strconv.Itoa(total.Deferred)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Outcome", "Events"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Drained in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newStreakCommand(ctx *commandContext) *cobra.Command {
	var userID string
	streakCmd := &cobra.Command{
		Use:   "streak",
		Short: "Show a user's practice streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.streaks().Status(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, status)
			}
			if status.Streak == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has never practiced\n", userID)
				return nil
			}

			s := status.Streak
			rows := [][]string{
				{"Current streak", strconv.Itoa(s.CurrentStreak) + " days"},
				{"Longest streak", strconv.Itoa(s.LongestStreak) + " days"},
				{"Practice days", strconv.Itoa(s.TotalPracticeDays)},
				{"Last practice", s.LastPracticeDate.String() + " (" + humanize.Time(s.LastPracticeDate.In(ctx.cfg.Timezone)) + ")"},
				{"At risk today", strconv.FormatBool(status.AtRisk)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	streakCmd.Flags().StringVar(&userID, "user-id", "", "User whose streak to show")
	_ = streakCmd.MarkFlagRequired("user-id")
	return streakCmd
}
