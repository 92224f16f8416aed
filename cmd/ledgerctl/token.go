package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ledgerlens/internal/auth"
	"ledgerlens/internal/config"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API access tokens",
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a bearer token for the expense API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tokens, err := auth.NewTokenManager(&cfg.JWT)
			if err != nil {
				return err
			}
			token, expiresAt, err := tokens.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: configured access expiry)")
	cmd.AddCommand(issue)
	return cmd
}
