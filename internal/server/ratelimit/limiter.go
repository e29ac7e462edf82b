// Package ratelimit counts operations per client in fixed hourly windows.
// Counters live in an expirable LRU so idle clients fall out on their own.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxClients = 100_000

// Decision is the answer to one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter allows up to limit operations per key per window.
type Limiter struct {
	class  string
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithPeriod changes the window length from one hour.
func WithPeriod(d time.Duration) Option {
	return func(l *Limiter) { l.period = d }
}

// New returns a limiter for one traffic class (e.g. "downloads").
// A non-positive limit disables limiting.
func New(class string, limit int, opts ...Option) *Limiter {
	l := &Limiter{
		class:  class,
		limit:  limit,
		period: time.Hour,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	l.windows = expirable.NewLRU[string, *window](defaultMaxClients, nil, l.period)
	return l
}

// Allow records one operation for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true, Limit: l.limit, Remaining: -1}
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows.Add(key, w)
	}

	if w.count >= l.limit {
		rejections.WithLabelValues(l.class).Inc()
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: w.start.Add(l.period).Sub(now),
		}
	}

	w.count++
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - w.count}
}
