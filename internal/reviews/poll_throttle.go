package reviews

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// PollThrottle rejects status polls for the same review from the same client
// that arrive closer together than the window.
type PollThrottle struct {
	window time.Duration
	hits   *cache.Cache
}

// NewPollThrottle returns nil for a non-positive window, which allows everything.
func NewPollThrottle(window time.Duration) *PollThrottle {
	if window <= 0 {
		return nil
	}
	return &PollThrottle{
		window: window,
		hits:   cache.New(window, 10*window),
	}
}

// Allow records a poll and reports whether it may proceed.
func (t *PollThrottle) Allow(client, reviewID string) bool {
	if t == nil {
		return true
	}
	return t.hits.Add(client+"|"+reviewID, struct{}{}, t.window) == nil
}

// RetryAfterSeconds is the Retry-After hint sent with a rejected poll.
func (t *PollThrottle) RetryAfterSeconds() int {
	if t == nil {
		return 1
	}
	secs := int((t.window + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
