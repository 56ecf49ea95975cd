// Package cli wires configuration, storage and the HTTP server into the
// collybrix-admin command.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Manumac86/collybrix-admin-sub001/internal/config"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage/mongo"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage/sqlite"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "collybrix-admin",
		Short:         "Collybrix agency admin: projects, estimations and project management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				if _, err := config.ParseLevel(a.logLevel); err != nil {
					return err
				}
				cfg.Log.Level = a.logLevel
			}
			a.cfg = cfg
			a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
			a.logger.Debug("configuration loaded", "command", cmd.Name(), "driver", cfg.Storage.Driver)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the YAML config file (default "+config.DefaultPath+" when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.seedCmd())
	root.AddCommand(a.fixStatusesCmd())
	return root
}

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

// openRepository opens the configured backend and prepares its indexes.
// The returned func closes the backend.
func (a *app) openRepository(ctx context.Context) (*repository.Repository, func(), error) {
	var (
		backend storage.Backend
		err     error
	)
	switch a.cfg.Storage.Driver {
	case config.DriverMongo:
		backend, err = mongo.Open(ctx, mongo.Options{
			URI:         a.cfg.Storage.MongoURI,
			Database:    a.cfg.Storage.MongoDatabase,
			MaxPoolSize: a.cfg.Storage.MongoMaxPoolSize,
		}, a.logger)
	default:
		backend, err = sqlite.Open(a.cfg.Storage.SQLitePath, a.logger)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	closeFn := func() {
		if err := backend.Close(context.Background()); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	}

	repo := repository.New(backend, a.logger, repository.WithUserIDPrefix(a.cfg.Identity.UserIDPrefix))
	if err := repo.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, closeFn, nil
}
