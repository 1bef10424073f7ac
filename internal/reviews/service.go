package reviews

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"permit-backend/internal/extract"
	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/storage/object"
	"permit-backend/internal/shared/telemetry"
	"permit-backend/internal/shared/util"
)

const (
	DefaultListCount = 10
	MaxListCount     = 100

	defaultImageSource = "upload"
)

// Scheduler hands a review to the analysis worker without waiting for it.
type Scheduler interface {
	Schedule(ctx context.Context, reviewID string) error
}

// SubmissionRecorder is told about reviews submitted by a signed-in user.
type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, userID string, review Review) error
}

// SubmitRequest is one plan upload.
type SubmitRequest struct {
	Image    []byte
	FileName string
	City     string
	// UserID is set when the uploader is signed in.
	UserID string
}

// Service accepts plan submissions and serves review state.
type Service struct {
	Store     Store
	Objects   object.ObjectStore
	Scheduler Scheduler
	Clock     clock.Clock
	NewID     func() string
	Recorder  SubmissionRecorder
}

// Submit stores the plan, records the review as analyzing and schedules its
// analysis. It returns before analysis starts. A scheduling failure is written
// to the review as a failure rather than returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Review, error) {
	if len(req.Image) == 0 {
		return Review{}, invalid("imageBase64", "required", "image data is required")
	}

	source := defaultImageSource
	if strings.TrimSpace(req.FileName) != "" {
		name, err := util.SanitizeFileName(req.FileName)
		if err != nil {
			return Review{}, invalid("fileName", "invalid", "file name is not allowed")
		}
		source = name
	}

	review := Review{
		ID:          s.newID(),
		CreatedAt:   s.now(),
		Outcome:     Analyzing{},
		ImageSource: source,
		City:        strings.TrimSpace(req.City),
	}
	review.ImageKey = path.Join("reviews", review.ID, imageObjectName(source, req.Image))

	mime := extract.DetectMime(req.Image, source)
	if _, err := s.Objects.SaveWithKey(ctx, review.ImageKey, mime, bytes.NewReader(req.Image)); err != nil {
		return Review{}, fmt.Errorf("store plan image: %w", err)
	}
	if err := s.Store.Put(ctx, review); err != nil {
		return Review{}, fmt.Errorf("save review: %w", err)
	}
	metrics.IncReviewSubmitted()
	telemetry.Info("review.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"review_id":         review.ID,
		"user_id":           req.UserID,
		"status":            StatusAnalyzing,
		"status_transition": "->analyzing",
		"bytes":             len(req.Image),
		"mime":              mime,
	})

	if req.UserID != "" && s.Recorder != nil {
		if err := s.Recorder.RecordSubmission(ctx, req.UserID, review); err != nil {
			telemetry.Warn("review.record_submission_failed", map[string]any{
				"review_id": review.ID,
				"user_id":   req.UserID,
				"error":     err,
			})
		}
	}

	if err := s.Scheduler.Schedule(ctx, review.ID); err != nil {
		s.failUnscheduled(ctx, review, err)
	}
	return review, nil
}

func (s *Service) failUnscheduled(ctx context.Context, review Review, cause error) {
	failed, err := review.Fail("analysis could not be started: " + sanitizeError(cause))
	if err != nil {
		return
	}
	if err := s.Store.Put(context.WithoutCancel(ctx), failed); err != nil {
		telemetry.Error("review.schedule_failed.update", map[string]any{"review_id": review.ID, "error": err})
		return
	}
	metrics.IncReviewFailed()
	telemetry.Error("review.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"review_id":         review.ID,
		"status":            StatusFailed,
		"status_transition": "analyzing->failed",
		"error":             cause,
	})
}

// Get returns the current state of a review.
func (s *Service) Get(ctx context.Context, id string) (Review, error) {
	if strings.TrimSpace(id) == "" {
		return Review{}, ErrNotFound
	}
	return s.Store.Get(ctx, id)
}

// ListRecent returns the newest reviews. count must be within 1..MaxListCount.
func (s *Service) ListRecent(ctx context.Context, count int) ([]Review, error) {
	if count < 1 || count > MaxListCount {
		return nil, invalid("count", "out_of_range", fmt.Sprintf("count must be between 1 and %d", MaxListCount))
	}
	return s.Store.ListRecent(ctx, count)
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// now is truncated to microseconds, the precision Postgres keeps, so the
// snapshot Submit returns matches what Get reads back from any store.
func (s *Service) now() time.Time {
	var c clock.Clock = clock.System{}
	if s.Clock != nil {
		c = s.Clock
	}
	return c.Now().Truncate(time.Microsecond)
}

// imageObjectName keeps the extension when the source names a file, and
// otherwise derives one from the sniffed content.
func imageObjectName(source string, data []byte) string {
	if source != defaultImageSource {
		return source
	}
	switch extract.DetectMime(data, "") {
	case extract.MimePNG:
		return "plan.png"
	case extract.MimeJPEG:
		return "plan.jpg"
	case extract.MimePDF:
		return "plan.pdf"
	case extract.MimeWebP:
		return "plan.webp"
	}
	return "plan.bin"
}
