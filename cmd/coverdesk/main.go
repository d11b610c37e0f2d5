package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/observability"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "coverdesk",
		Short: "Insurance back office: policies, claims, settlements and alerts",
		Long: `coverdesk runs the insurance back-office API.

Configuration is read from the environment and an optional .env file.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newAlertsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// infrastructure is shared by every command.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		db.RedisModule,
		clock.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}

// runOnce starts app, calls fn and stops the app again.
func runOnce(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
