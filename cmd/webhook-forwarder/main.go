package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"permit-backend/internal/shared/telemetry"
	"permit-backend/internal/webhooks"
)

func main() {
	backendURL := strings.TrimSpace(os.Getenv("BACKEND_API_URL"))
	if backendURL == "" {
		telemetry.Error("forwarder.config.missing", map[string]any{"key": "BACKEND_API_URL"})
		os.Exit(1)
	}
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8787"
	}

	fwd := webhooks.NewForwarder(backendURL, os.Getenv("API_SECRET"))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           fwd.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("forwarder.listening", map[string]any{"addr": srv.Addr, "backend": backendURL})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		telemetry.Error("forwarder.stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
