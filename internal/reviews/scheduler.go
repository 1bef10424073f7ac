package reviews

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"permit-backend/internal/queue"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/telemetry"
)

// Runner processes one scheduled review. *Worker implements it.
type Runner interface {
	Run(ctx context.Context, reviewID string) error
}

// GoroutineScheduler runs each review on its own goroutine in this process.
// In-flight runs are tracked so shutdown can wait for them.
type GoroutineScheduler struct {
	runner Runner

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewGoroutineScheduler(runner Runner) *GoroutineScheduler {
	return &GoroutineScheduler{runner: runner}
}

// Schedule starts the run and returns immediately. The run does not inherit
// ctx's cancellation.
func (s *GoroutineScheduler) Schedule(ctx context.Context, reviewID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	runCtx := detach(ctx)
	go func() {
		defer s.wg.Done()
		defer s.recover(reviewID)
		if err := s.runner.Run(runCtx, reviewID); err != nil {
			telemetry.Error("review.run_failed", map[string]any{
				"request_id": RequestIDFromContext(runCtx),
				"review_id":  reviewID,
				"error":      err,
			})
		}
	}()
	return nil
}

func (s *GoroutineScheduler) recover(reviewID string) {
	if r := recover(); r != nil {
		telemetry.Error("review.run_panic", map[string]any{
			"review_id": reviewID,
			"panic":     fmt.Sprint(r),
			"stack":     string(debug.Stack()),
		})
		telemetry.CapturePanic(r, map[string]string{"review_id": reviewID})
	}
}

// Shutdown stops accepting reviews and waits for in-flight runs or ctx.
func (s *GoroutineScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain review runs: %w", ctx.Err())
	}
}

// Wait blocks until every scheduled run has returned.
func (s *GoroutineScheduler) Wait() {
	s.wg.Wait()
}

// QueueScheduler hands reviews to an out-of-process worker through a queue.
type QueueScheduler struct {
	Queue queue.Client
	Now   func() time.Time
}

func (s *QueueScheduler) Schedule(ctx context.Context, reviewID string) error {
	if s.Queue == nil {
		return fmt.Errorf("review queue not configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	msg := queue.Message{
		ReviewID:   reviewID,
		RequestID:  RequestIDFromContext(ctx),
		EnqueuedAt: now().UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue review %s: %w", reviewID, err)
	}
	metrics.IncJob("enqueued")
	return nil
}

var (
	_ Scheduler = (*GoroutineScheduler)(nil)
	_ Scheduler = (*QueueScheduler)(nil)
	_ Runner    = (*Worker)(nil)
)
