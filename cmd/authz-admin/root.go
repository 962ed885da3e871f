package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/turtacn/authz/internal/bootstrap"
	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/pkg/constants"
)

type adminOptions struct {
	configPath string
	verbose    bool
}

// newRootCmd 构建 authz-admin 根命令及全部子命令。
func newRootCmd() *cobra.Command {
	opts := &adminOptions{}
	root := &cobra.Command{
		Use:           "authz-admin",
		Short:         "Administer the authz authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newMigrateCmd(opts),
		newClientCmd(opts),
		newUserCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// open loads the configuration and builds the container with quiet logging.
func (o *adminOptions) open(ctx context.Context) (*bootstrap.Container, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Format = "console"
	cfg.Log.OutputPath = "stderr"
	cfg.Log.Level = string(constants.LogLevelWarn)
	if o.verbose {
		cfg.Log.Level = string(constants.LogLevelDebug)
	}
	cfg.Tracing.Enabled = false

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return bootstrap.New(ctx, cfg, log)
}

func requireDatabase(c *bootstrap.Container) error {
	if c.DB == nil {
		return fmt.Errorf("database.driver is not configured")
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
