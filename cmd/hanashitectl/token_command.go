package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hanashite/internal/models"
	"hanashite/internal/security"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}

	var id models.Identity
	var ttl time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a user",
		Long:  "Signs a token with AUTH_TOKEN_SECRET. Intended for local testing and service accounts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := security.NewTokenManager(ctx.cfg.AuthTokenSecret, ctx.cfg.AuthTokenIssuer)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(id, ttl)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, map[string]string{
					"token":      token,
					"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&id.UserID, "user-id", "", "Subject user ID")
	issueCmd.Flags().StringVar(&id.Email, "email", "", "Email claim")
	issueCmd.Flags().StringVar(&id.Name, "name", "", "Display name claim")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("user-id")
	_ = issueCmd.MarkFlagRequired("email")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
