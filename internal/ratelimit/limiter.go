package ratelimit

import (
	"sync"
	"time"
)

// Rule caps the number of events per key within a fixed window.
type Rule struct {
	Limit  int
	Window time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter counts events per opaque key over fixed windows. A key's
// window opens on its first event and resets once the window elapses;
// exceeding Limit inside a window rejects instead of queueing.
type Limiter struct {
	mu sync.Mutex

	clock   Clock
	rule    Rule
	windows map[string]*window
}

func NewLimiter(clock Clock, rule Rule) *Limiter {
	if clock == nil {
		clock = RealClock{}
	}
	return &Limiter{
		clock:   clock,
		rule:    rule,
		windows: make(map[string]*window),
	}
}

// Allow reports whether one more event is permitted for the key and, if
// so, records it.
func (l *Limiter) Allow(key string) bool {
	if l.rule.Limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	w, exist := l.windows[key]
	if !exist || now.Sub(w.start) >= l.rule.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true
	}

	if w.count >= l.rule.Limit {
		return false
	}
	w.count++
	return true
}

// SweepStale drops windows that already elapsed so idle keys do not
// accumulate.
func (l *Limiter) SweepStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.rule.Window {
			delete(l.windows, key)
		}
	}
}

func (l *Limiter) trackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
