package main

import (
	"context"

	"github.com/smallbiznis/coverdesk/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed the bootstrap admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			// migration.Module does its work in an fx.Invoke during construction.
			app := fx.New(
				infrastructure(),
				migration.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			return runOnce(cmd.Context(), app, func(context.Context) error { return nil })
		},
	}
}
