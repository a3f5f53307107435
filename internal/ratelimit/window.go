package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// Window is an in-process per-key limiter over a trailing time window.
// It keeps the timestamps of recent allowed requests per key; entries older
// than the window are dropped before the ceiling is tested, and a rejected
// attempt is not recorded. State lives only in this process: a restart resets
// every counter. The limiter is a soft anti-abuse guard in front of the chat
// pipeline, not a durable ledger.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

// WindowOption customizes a Window.
type WindowOption func(*Window)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) WindowOption {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindow creates a limiter allowing at most limit requests per key within
// the trailing window.
func NewWindow(limit int, window time.Duration, options ...WindowOption) (*Window, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	w := &Window{
		limit:   limit,
		window:  window,
		now:     time.Now,
		history: make(map[string][]time.Time),
	}
	for _, option := range options {
		if option != nil {
			option(w)
		}
	}
	return w, nil
}

// Allow reports whether the key may proceed, recording the attempt when it
// may. Calls for the same key serialize their read-modify-write of that
// key's history.
func (w *Window) Allow(key string) bool {
	if w == nil {
		return false
	}
	now := w.now()
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	recent := w.history[key][:0]
	for _, ts := range w.history[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= w.limit {
		w.history[key] = recent
		return false
	}
	w.history[key] = append(recent, now)
	return true
}
