package reviews

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"permit-backend/internal/analysis"
	"permit-backend/internal/extract"
	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/storage/object"
	"permit-backend/internal/shared/telemetry"
)

const (
	DefaultAnalysisTimeout = 2 * time.Minute
	maxErrorMessageRunes   = 500
)

// Worker runs the analysis for one review and records its terminal state.
type Worker struct {
	Store    Store
	Objects  object.ObjectStore
	Analyzer analysis.Analyzer
	// Timeout bounds a single analysis. Zero means DefaultAnalysisTimeout.
	Timeout time.Duration
	Clock   clock.Clock
}

// Run analyzes the review and writes completed or failed. Analysis failures are
// recorded on the review, not returned. Run returns an error only when the review
// cannot be read or the terminal state cannot be saved.
func (w *Worker) Run(ctx context.Context, reviewID string) error {
	review, err := w.Store.Get(ctx, reviewID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			missing := fmt.Errorf("%w: %s", ErrReviewMissing, reviewID)
			telemetry.Error("review.worker.missing", map[string]any{
				"request_id": RequestIDFromContext(ctx),
				"review_id":  reviewID,
			})
			telemetry.CaptureError(missing, map[string]string{"review_id": reviewID})
			return missing
		}
		return fmt.Errorf("load review %s: %w", reviewID, err)
	}
	if review.Status().Terminal() {
		telemetry.Info("review.worker.skip_terminal", map[string]any{
			"review_id": reviewID,
			"status":    review.Status(),
		})
		return nil
	}

	started := w.now()
	result, analyzeErr := w.analyze(ctx, review)

	var updated Review
	if analyzeErr == nil {
		updated, err = review.Complete(result)
	} else {
		updated, err = review.Fail(failureMessage(analyzeErr, w.timeout()))
	}
	if err != nil {
		return err
	}

	// The analysis may have consumed ctx's deadline; the terminal write must still land.
	if err := w.Store.Put(context.WithoutCancel(ctx), updated); err != nil {
		telemetry.Error("review.worker.save_failed", map[string]any{"review_id": reviewID, "error": err})
		telemetry.CaptureError(err, map[string]string{"review_id": reviewID})
		return fmt.Errorf("save review %s: %w", reviewID, err)
	}

	elapsed := w.now().Sub(started)
	metrics.ObserveAnalysisDuration(elapsed)
	fields := map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"review_id":         reviewID,
		"status":            updated.Status(),
		"status_transition": fmt.Sprintf("%s->%s", review.Status(), updated.Status()),
		"duration_ms":       float64(elapsed.Microseconds()) / 1000.0,
	}
	if analyzeErr != nil {
		metrics.IncReviewFailed()
		fields["error"] = analyzeErr
		telemetry.Warn("review.status", fields)
		return nil
	}
	metrics.IncReviewCompleted()
	fields["compliance_score"] = result.ComplianceScore
	telemetry.Info("review.status", fields)
	return nil
}

func (w *Worker) analyze(ctx context.Context, review Review) (result analysis.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.CapturePanic(r, map[string]string{"review_id": review.ID})
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()

	image, err := w.loadImage(ctx, review.ImageKey)
	if err != nil {
		return analysis.Analysis{}, fmt.Errorf("load plan image: %w", err)
	}
	if w.Analyzer == nil {
		return analysis.Analysis{}, errors.New("no analyzer configured")
	}

	actx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()
	result, err = w.Analyzer.Analyze(actx, analysis.Input{
		Image:    image,
		MimeType: extract.DetectMime(image, review.ImageSource),
		City:     review.City,
	})
	if err != nil {
		return analysis.Analysis{}, err
	}
	if err := result.Validate(); err != nil {
		return analysis.Analysis{}, err
	}
	return result, nil
}

func (w *Worker) loadImage(ctx context.Context, key string) ([]byte, error) {
	if w.Objects == nil || key == "" {
		return nil, errors.New("plan image unavailable")
	}
	body, err := w.Objects.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("plan image is empty")
	}
	return data, nil
}

func (w *Worker) timeout() time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return DefaultAnalysisTimeout
}

func (w *Worker) now() time.Time {
	if w.Clock != nil {
		return w.Clock.Now()
	}
	return time.Now()
}

func failureMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("analysis timed out after %s", timeout)
	}
	return sanitizeError(err)
}

// sanitizeError flattens err to one line of at most maxErrorMessageRunes.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) > maxErrorMessageRunes {
		msg = string([]rune(msg)[:maxErrorMessageRunes])
	}
	if msg == "" {
		msg = "analysis failed"
	}
	return msg
}
