package http

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	r := newRateLimiter(2)

	if !r.allow() || !r.allow() {
		t.Fatal("expected first two attempts to pass")
	}
	if r.allow() {
		t.Fatal("expected third attempt to be rejected")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	r := newRateLimiter(0)

	for i := 0; i < 100; i++ {
		if !r.allow() {
			t.Fatal("disabled limiter must always allow")
		}
	}
	// No goroutine to start or stop when disabled.
	r.startReset()
	r.stopReset()
}

func TestRateLimiter_StopEndsResetGoroutine(t *testing.T) {
	r := newRateLimiter(5)
	r.startReset()

	r.stopReset()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("reset goroutine did not exit after stop")
	}

	// Stopping again must not panic.
	r.stopReset()
}
