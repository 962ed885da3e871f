package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/authz/internal/application/dto"
)

func newTokenCmd(opts *adminOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and maintain issued access tokens",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "revoke <jti>",
			Short: "Revoke a tracked token by its jti",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := contextOf(cmd)
				c, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer c.Close(ctx)

				revoked, err := c.Service.RevokeByJTI(ctx, args[0])
				if err != nil {
					return err
				}
				if !revoked {
					fmt.Fprintf(cmd.OutOrStdout(), "token %s is not tracked\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "token %s revoked\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Delete tracking records of expired tokens",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := contextOf(cmd)
				c, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer c.Close(ctx)

				report, err := c.Service.CleanUpExpiredTokens(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d deleted=%d failed=%d\n", report.Scanned, report.Deleted, report.Failed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "introspect <jwt>",
			Short: "Validate a token against the configured keys and tracker",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := contextOf(cmd)
				c, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer c.Close(ctx)

				result, err := c.Service.Introspect(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(dto.NewIntrospectionResponse(result))
			},
		},
	)
	return cmd
}
