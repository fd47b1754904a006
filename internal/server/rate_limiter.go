package server

import (
	"sync"
	"time"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
)

// triggerLimiter is a fixed-window per-client limiter guarding the trigger
// endpoint. A kiosk pad mashing the button should queue countdowns at human
// speed, not flood the capture pipeline.
type triggerLimiter struct {
	limit  int
	window time.Duration
	clk    clock.Clock

	mu      sync.Mutex
	windows map[string]*triggerWindow
}

type triggerWindow struct {
	start time.Time
	count int
}

func newTriggerLimiter(limit int, window time.Duration, clk clock.Clock) *triggerLimiter {
	return &triggerLimiter{
		limit:   limit,
		window:  window,
		clk:     clk,
		windows: make(map[string]*triggerWindow),
	}
}

// Allow reports whether the client identified by key may trigger a capture
// now, counting the attempt if so.
func (l *triggerLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := l.clk.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.start) > l.window {
		l.pruneLocked(now)
		w = &triggerWindow{start: now}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// pruneLocked drops expired windows so one-off clients do not accumulate.
func (l *triggerLimiter) pruneLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) > l.window {
			delete(l.windows, key)
		}
	}
}
