package http

import (
	"sync"
	"time"
)

// rateLimiter caps attempts per minute. Zero or negative limit disables it.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	counter int
	reset   *time.Ticker

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{limit: 0}
	}
	return &rateLimiter{
		limit: limit,
		reset: time.NewTicker(time.Minute),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	return r.counter <= r.limit
}

func (r *rateLimiter) startReset() {
	if r == nil || r.reset == nil {
		return
	}
	go func() {
		defer close(r.done)
		for {
			select {
			case <-r.reset.C:
				r.mu.Lock()
				r.counter = 0
				r.mu.Unlock()
			case <-r.stop:
				r.reset.Stop()
				return
			}
		}
	}()
}

// stopReset ends the reset goroutine. Safe to call more than once.
func (r *rateLimiter) stopReset() {
	if r == nil || r.reset == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stop) })
}
