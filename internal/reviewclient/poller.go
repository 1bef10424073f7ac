package reviewclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"permit-backend/internal/reviews"
)

// DefaultMaxAttempts and DefaultInterval give a submitter about a minute.
const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 2 * time.Second
)

// ErrPollTimeout is matched by every *TimeoutError.
var ErrPollTimeout = errors.New("review did not finish before polling gave up")

// TimeoutError reports that polling ran out of attempts. The review may still finish later.
type TimeoutError struct {
	ReviewID   string
	Attempts   int
	LastStatus reviews.Status
}

func (e *TimeoutError) Error() string {
	if e.ReviewID == "" {
		return fmt.Sprintf("%s after %d attempts", ErrPollTimeout, e.Attempts)
	}
	return fmt.Sprintf("%s: review %s still %s after %d attempts", ErrPollTimeout, e.ReviewID, e.LastStatus, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrPollTimeout }

// Poller submits a plan and waits for its review to reach a terminal state.
type Poller struct {
	Boundary Boundary
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt, when set, is called after every fetch.
	OnAttempt func(attempt int, review reviews.Review)
}

// UploadAndAwait submits image and polls up to maxAttempts times, sleeping
// interval between non-terminal fetches. A failed review is returned as a
// review, not an error.
func (p *Poller) UploadAndAwait(ctx context.Context, image []byte, fileName, city string, maxAttempts int, interval time.Duration) (reviews.Review, error) {
	if maxAttempts < 0 {
		return reviews.Review{}, fmt.Errorf("maxAttempts must not be negative, got %d", maxAttempts)
	}
	if interval < 0 {
		return reviews.Review{}, fmt.Errorf("interval must not be negative, got %s", interval)
	}
	if maxAttempts == 0 {
		return reviews.Review{}, &TimeoutError{Attempts: 0}
	}

	id, err := p.Boundary.SubmitReview(ctx, image, fileName, city)
	if err != nil {
		return reviews.Review{}, fmt.Errorf("submit plan: %w", err)
	}
	return p.Await(ctx, id, maxAttempts, interval)
}

// Await polls an already submitted review.
func (p *Poller) Await(ctx context.Context, id string, maxAttempts int, interval time.Duration) (reviews.Review, error) {
	if maxAttempts <= 0 {
		return reviews.Review{}, &TimeoutError{ReviewID: id, Attempts: 0}
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last reviews.Review
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		review, err := p.Boundary.GetReview(ctx, id)
		if err != nil {
			return reviews.Review{}, fmt.Errorf("poll review %s (attempt %d): %w", id, attempt, err)
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, review)
		}
		if review.Status().Terminal() {
			return review, nil
		}
		last = review
		if attempt < maxAttempts {
			if err := sleep(ctx, interval); err != nil {
				return reviews.Review{}, err
			}
		}
	}
	return last, &TimeoutError{ReviewID: id, Attempts: maxAttempts, LastStatus: last.Status()}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
