package main

import (
	"github.com/smallbiznis/coverdesk/internal/migration"
	"github.com/smallbiznis/coverdesk/internal/scheduler"
	"github.com/smallbiznis/coverdesk/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. The schema is migrated and the bootstrap admin seeded
before the listener starts. With --scheduler the alert loop runs in the same
process, gated by SCHEDULER_ENABLED.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				infrastructure(),
				migration.Module,
				server.Module,
			}
			if withScheduler {
				opts = append(opts, scheduler.Module, fx.Invoke(scheduler.StartLoop))
			}
			fx.New(opts...).Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "Run the alert scheduler alongside the API")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the alert scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(
				infrastructure(),
				server.Services,
				scheduler.Module,
				fx.Invoke(scheduler.StartLoop),
			).Run()
			return nil
		},
	}
}
