package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/auth"
)

func newUserCmd(opts *adminOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage resource owner accounts",
	}
	cmd.AddCommand(newUserCreateCmd(opts))
	return cmd
}

func newUserCreateCmd(opts *adminOptions) *cobra.Command {
	var (
		user          models.User
		authorities   string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a resource owner account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("a password is required, use --password or --password-stdin")
			}

			hash, err := auth.HashSecret(password)
			if err != nil {
				return err
			}
			if user.ID == "" {
				user.ID = uuid.NewString()
			}
			user.PasswordHash = hash
			user.Authorities = models.ParseScopes(authorities)
			user.Enabled = true

			ctx := contextOf(cmd)
			c, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			if err := requireDatabase(c); err != nil {
				return err
			}

			existing, err := c.Users.FindByUsername(ctx, user.Username)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("username %q is taken by %s", user.Username, existing.ID)
			}
			if err := c.Users.Save(ctx, &user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user_id: %s\n", user.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&user.ID, "id", "", "user id (default: random uuid)")
	f.StringVar(&user.Username, "username", "", "login name")
	f.StringVar(&user.Email, "email", "", "email address")
	f.StringVar(&user.Role, "role", "", "role embedded in issued tokens")
	f.StringVar(&authorities, "authorities", "", "space separated scopes the user may grant")
	f.StringVar(&password, "password", "", "password")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
