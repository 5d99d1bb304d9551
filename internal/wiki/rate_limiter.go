package wiki

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum gap between API requests. The wiki's usage
// terms want bot requests serialized, so callers queue on the mutex and
// sleep inside it.
type RateLimiter struct {
	mu     sync.Mutex
	last   time.Time
	minGap time.Duration
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &RateLimiter{minGap: time.Second / time.Duration(requestsPerSecond)}
}

func (r *RateLimiter) WaitTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wait := r.minGap - time.Since(r.last); wait > 0 {
		time.Sleep(wait)
	}
	r.last = time.Now()
}
