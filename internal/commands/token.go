package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"babybudget/internal/auth"
	"babybudget/internal/config"
)

func newTokenCommand() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.JWTTTL
			}
			tokens, err := auth.NewTokens(cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (googleId) to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: JWT_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
