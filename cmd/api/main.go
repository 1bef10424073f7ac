package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"permit-backend/internal/bootstrap"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/server"
	"permit-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	if err := telemetry.InitSentry(cfg.SentryDSN, cfg.Env, "api"); err != nil {
		telemetry.Warn("api.sentry.disabled", map[string]any{"error": err.Error()})
	}
	defer telemetry.FlushSentry(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("api.bootstrap.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.listening", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		telemetry.Info("api.shutdown", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
		httpErr := srv.Shutdown(shutdownCtx)
		// In-flight analyses get the rest of the window to write their outcome.
		drainErr := app.Shutdown(shutdownCtx)
		if app.DB != nil {
			_ = app.DB.Close()
		}
		return errors.Join(httpErr, drainErr)
	})

	if err := g.Wait(); err != nil {
		telemetry.Error("api.stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
