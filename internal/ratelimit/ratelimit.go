// Package ratelimit implements a fixed-window per-session request
// limiter for the chat endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// AnonymousSession is the bucket used when a request carries no
// session identifier. All anonymous callers share it.
const AnonymousSession = "anonymous"

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter allows up to limit requests per session within a fixed
// window. The first request in a window starts it; when the window
// expires the count resets on the next request.
type Limiter struct {
	mu       sync.Mutex
	sessions map[string]*entry
	limit    int
	window   time.Duration

	now func() time.Time // overridable in tests
}

// New creates a limiter allowing limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		sessions: make(map[string]*entry),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the session may make another request, and
// counts it if so. An empty sessionID falls into the shared
// anonymous bucket.
func (l *Limiter) Allow(sessionID string) bool {
	if sessionID == "" {
		sessionID = AnonymousSession
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.sessions[sessionID]
	if !ok || now.After(e.resetAt) {
		l.sessions[sessionID] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.limit {
		return false
	}
	e.count++
	return true
}

// Remaining reports how many requests the session has left in its
// current window.
func (l *Limiter) Remaining(sessionID string) int {
	if sessionID == "" {
		sessionID = AnonymousSession
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.sessions[sessionID]
	if !ok || l.now().After(e.resetAt) {
		return l.limit
	}
	if e.count >= l.limit {
		return 0
	}
	return l.limit - e.count
}
