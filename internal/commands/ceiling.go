package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"babybudget/internal/ceiling"
	"babybudget/internal/config"
	"babybudget/internal/core"
)

func newCeilingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ceiling",
		Short: "Inspect or seed users' monthly budget ceilings in Redis",
	}
	cmd.AddCommand(newCeilingSetCommand(), newCeilingGetCommand())
	return cmd
}

func redisLookup() *ceiling.RedisLookup {
	cfg := config.Load()
	return ceiling.NewRedisLookup(ceiling.NewRedisClient(ceiling.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	}))
}

func newCeilingSetCommand() *cobra.Command {
	var user, amount string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write monthlyBudget into the user:<id> record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			lookup := redisLookup()
			defer lookup.Close()

			if err := lookup.SetCeiling(cmd.Context(), user, value); err != nil {
				return fmt.Errorf("setting ceiling for %s: %w", user, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monthly budget for %s set to %s\n", user, value)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (googleId)")
	cmd.Flags().StringVar(&amount, "amount", "", "monthly budget amount")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCeilingGetCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a user's monthly budget ceiling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup := redisLookup()
			defer lookup.Close()

			value, err := lookup.GetCeiling(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (googleId)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
