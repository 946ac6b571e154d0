package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kirinyoku/amparena/internal/app"
	"github.com/kirinyoku/amparena/internal/config"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/observability"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "amparenactl",
		Short:         "Operator commands for the Amp Arena backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(statsCmd())

	return root
}

// withCore loads configuration from the environment, opens storage and runs fn.
func withCore(ctx context.Context, fn func(*app.Core) error) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	core, err := app.NewCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	return fn(core)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd.Context(), func(*app.Core) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func notifyCmd() *cobra.Command {
	var (
		template string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Email signups that have not been notified yet",
		Long: `Send the welcome or reminder template to signups.

Examples:
  amparenactl notify --template welcome
  amparenactl notify --template reminder --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd.Context(), func(core *app.Core) error {
				sum, err := core.Services.Signups.NotifyPending(cmd.Context(), template, all)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", notify.TemplateWelcome, "email template (welcome, reminder)")
	cmd.Flags().BoolVar(&all, "all", false, "include signups that were already notified")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print confirmed ticket and signup counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd.Context(), func(core *app.Core) error {
				ctx := cmd.Context()

				sold, err := core.Services.Tickets.CountConfirmed(ctx)
				if err != nil {
					return err
				}

				signedUp, err := core.Services.Signups.Count(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), map[string]int64{
					"tickets": sold,
					"signups": signedUp,
				})
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
