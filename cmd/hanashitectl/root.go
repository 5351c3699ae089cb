package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var jsonFlag bool
	ctx := newCommandContext(&jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "hanashitectl",
		Short:         "Operate a Hanashite deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipOpen(cmd) {
				return nil
			}
			return ctx.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print machine-readable JSON instead of tables")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newSeedTopicsCommand(ctx))
	rootCmd.AddCommand(newOutboxCommand(ctx))
	rootCmd.AddCommand(newStreakCommand(ctx))
	rootCmd.AddCommand(newAlertsCommand(ctx))
	rootCmd.AddCommand(newStudentsCommand(ctx))
	rootCmd.AddCommand(newAnalyticsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}

// shouldSkipOpen reports commands that never touch config or the database
func shouldSkipOpen(cmd *cobra.Command) bool {
	if cmd == cmd.Root() || !cmd.Runnable() {
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return true
		}
	}
	return false
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
