package telemetry

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled atomic.Bool

// InitSentry configures error reporting. An empty DSN leaves reporting disabled.
func InitSentry(dsn, env, release string) error {
	if strings.TrimSpace(dsn) == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	sentryEnabled.Store(true)
	Info("sentry.enabled", map[string]any{"environment": env})
	return nil
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry(timeout time.Duration) {
	if !sentryEnabled.Load() {
		return
	}
	sentry.Flush(timeout)
}

// CaptureError reports err with tags. It is a no-op when Sentry is not configured.
func CaptureError(err error, tags map[string]string) {
	if err == nil || !sentryEnabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(rec any, tags map[string]string) {
	if rec == nil || !sentryEnabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CurrentHub().Recover(rec)
	})
}
