package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a token budget per minute, on top of any per-request
// limiter. Wait blocks until the requested amount fits in the current window.
type TokenLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	used         int
	windowStart  time.Time
}

// NewTokenLimiter creates a limiter allowing maxPerMinute tokens per minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		maxPerMinute: maxPerMinute,
		windowStart:  time.Now(),
	}
}

// GetRemaining returns the tokens left in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotateWindow(time.Now())
	return l.maxPerMinute - l.used
}

// Wait blocks until n tokens are available or the context is done. Requests
// larger than the full budget are admitted alone in a fresh window.
func (l *TokenLimiter) Wait(ctx context.Context, n int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.rotateWindow(now)

		if l.used+n <= l.maxPerMinute || (l.used == 0 && n > l.maxPerMinute) {
			l.used += n
			l.mu.Unlock()
			return nil
		}

		wait := l.windowStart.Add(time.Minute).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *TokenLimiter) rotateWindow(now time.Time) {
	if now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.used = 0
	}
}
