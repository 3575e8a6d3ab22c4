package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/replybot/internal/httpserver"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var autostart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger; GET / starts the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			limiter, release := a.limiter()
			defer release()

			store, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			var history httpserver.History
			if store != nil {
				defer store.Close()
				history = store
			}

			b, err := a.newBot(cmd.OutOrStdout(), limiter, store)
			if err != nil {
				return err
			}
			defer b.Stop()

			srv := &http.Server{
				Addr:              a.cfg.Addr(),
				Handler:           httpserver.New(ctx, b, history, a.logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			a.logger.InfoContext(ctx, "server listening", "addr", srv.Addr)
			if autostart {
				b.Start(ctx)
			}

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve http: %w", err)
				}
				return nil
			}

			a.logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&autostart, "autostart", false, "start the bot without waiting for GET /")
	return cmd
}
