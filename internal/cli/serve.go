package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/api"
	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/session"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := &api.Dependencies{
				NewDataset:     func() *dataset.Dataset { return a.newDataset() },
				Version:        Version,
				Logger:         a.logger,
				Development:    a.cfg.Log.Development,
				RequestTimeout: time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
			}
			sessionOpts := []session.Option{
				session.WithMaxSessions(a.cfg.Server.MaxSessions),
				session.WithLogger(a.logger),
			}
			if a.cfg.Store.Enabled {
				store, err := a.openStore()
				if err != nil {
					return fmt.Errorf("failed to open report store: %w", err)
				}
				defer store.Close()
				deps.Store = store
				sessionOpts = append(sessionOpts, session.WithSaver(store))
			}
			deps.Sessions = session.NewManager(deps.NewDataset, sessionOpts...)

			e := api.NewServer(deps)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if interval := a.cfg.CleanupInterval(); interval > 0 {
				go deps.Sessions.RunCleanup(ctx, interval, a.cfg.SessionTimeout())
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", zap.String("addr", a.cfg.ServerAddr()))
				errCh <- e.Start(a.cfg.ServerAddr())
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("bind", "", "listen address")
	cmd.Flags().Int("port", 0, "listen port")
	_ = a.v.BindPFlag("server.bind", cmd.Flags().Lookup("bind"))
	_ = a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}
