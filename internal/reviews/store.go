package reviews

import "context"

// Store persists reviews. It is the single source of truth for review state.
type Store interface {
	// Put inserts or replaces the review with the same ID.
	Put(ctx context.Context, review Review) error
	// Get returns ErrNotFound when no review has the ID.
	Get(ctx context.Context, id string) (Review, error)
	// ListRecent returns at most n reviews, newest first. Reviews created at the
	// same instant keep insertion order.
	ListRecent(ctx context.Context, n int) ([]Review, error)
}
