package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/coverdesk/internal/scheduler"
	"github.com/smallbiznis/coverdesk/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect and trigger scheduled alerts",
	}
	cmd.AddCommand(newAlertsRunOnceCmd())
	return cmd
}

func newAlertsRunOnceCmd() *cobra.Command {
	var jobs []string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run every alert job a single time and exit",
		Long: `Run every enabled alert job once. The leader lock still applies, so a
replica that does not hold it exits without sending anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			opts := []fx.Option{
				infrastructure(),
				server.Services,
				scheduler.Module,
				fx.Populate(&sched),
			}
			if len(jobs) > 0 {
				opts = append(opts, fx.Decorate(func(cfg scheduler.Config) scheduler.Config {
					cfg.EnabledJobs = jobs
					return cfg
				}))
			}

			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			return runOnce(cmd.Context(), app, func(ctx context.Context) error {
				if err := sched.RunOnce(ctx); err != nil {
					return fmt.Errorf("alerts run-once: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&jobs, "job", nil, "Limit the run to these jobs (repeatable)")
	return cmd
}
