// Command authctl runs maintenance tasks against the auth database:
// schema migrations and superuser bootstrap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/logger"
)

// env is what every subcommand needs; it is filled in PersistentPreRunE.
type env struct {
	cfg config.Config
	log *logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Maintenance commands for the auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, DevMode: true})
			if err != nil {
				return err
			}
			e.cfg, e.log = cfg, log
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(e), newCreateSuperuserCmd(e))
	return root
}

func (e *env) openDB(ctx context.Context) (*sqlx.DB, error) {
	return database.Open(ctx, database.Options{
		User:     e.cfg.DBUser,
		Pass:     e.cfg.DBPass,
		Host:     e.cfg.DBHost,
		Port:     e.cfg.DBPort,
		Name:     e.cfg.DBName,
		MaxRetry: e.cfg.DBConnectRetry,
	}, e.log)
}
