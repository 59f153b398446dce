package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/internal/observability"
	"github.com/lakeferry/lakeferry/internal/server"
	"github.com/lakeferry/lakeferry/internal/trigger"
	"github.com/lakeferry/lakeferry/pkg/expreval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP surface and schedule trigger loop",
	Long: `Start the lakeferry service: the HTTP API for manual runs, history
reads, and schedule pause/resume, plus the minute-granular trigger loop
that fires scheduled jobs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := observability.ServerLogger

	a, err := buildApp(appConfig, log)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build service", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := trigger.New(a.orch, a.cfg.Trigger.Interval, a.cfg.Trigger.GlobalRefreshAt, expreval.SystemClock{}, log)
	go loop.Run(ctx)

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      server.New(a.orch, a.schedules, log).Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "HTTP server failed", err)
	}
}
