package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/authz/internal/infrastructure/persistence/postgres"
)

func newMigrateCmd(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			if err := requireDatabase(c); err != nil {
				return err
			}

			applied, err := postgres.Migrate(ctx, c.DB, c.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", applied)
			return nil
		},
	}
}
