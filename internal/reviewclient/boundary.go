package reviewclient

import (
	"context"

	"permit-backend/internal/reviews"
)

// Boundary is what the poller needs from the review service, local or remote.
type Boundary interface {
	SubmitReview(ctx context.Context, image []byte, fileName, city string) (string, error)
	GetReview(ctx context.Context, id string) (reviews.Review, error)
}

// Local adapts an in-process reviews.Service to Boundary.
type Local struct {
	Svc *reviews.Service
}

func (l Local) SubmitReview(ctx context.Context, image []byte, fileName, city string) (string, error) {
	r, err := l.Svc.Submit(ctx, reviews.SubmitRequest{Image: image, FileName: fileName, City: city})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (l Local) GetReview(ctx context.Context, id string) (reviews.Review, error) {
	return l.Svc.Get(ctx, id)
}

var _ Boundary = Local{}
