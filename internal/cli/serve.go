package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Manumac86/collybrix-admin-sub001/internal/identity"
	"github.com/Manumac86/collybrix-admin-sub001/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and serve the admin UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func (a *app) serverOptions() ([]server.Option, error) {
	var opts []server.Option
	if a.cfg.Auth.Enabled {
		verifier, err := identity.NewVerifier(identity.VerifierConfig{
			Secret:   a.cfg.Auth.JWTSecret,
			Issuer:   a.cfg.Auth.Issuer,
			Audience: a.cfg.Auth.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("session verifier: %w", err)
		}
		opts = append(opts, server.WithVerifier(verifier))
	} else {
		a.logger.Warn("authentication disabled; requests run as a development user")
	}
	if a.cfg.Identity.APIURL != "" {
		dir, err := identity.NewDirectory(a.cfg.Identity.APIURL, a.cfg.Identity.APIKey, a.cfg.Identity.Timeout)
		if err != nil {
			return nil, fmt.Errorf("identity directory: %w", err)
		}
		opts = append(opts, server.WithDirectory(dir))
	}
	return opts, nil
}

func (a *app) serve(ctx context.Context) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	opts, err := a.serverOptions()
	if err != nil {
		return err
	}
	srv := server.New(repo, a.logger, a.cfg.Server.StaticDir, opts...)

	httpServer := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: srv.Engine(),
	}

	failed := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", httpServer.Addr, "storage", a.cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-failed:
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown server", "error", err)
	}
	a.logger.Info("server stopped")
	return nil
}
