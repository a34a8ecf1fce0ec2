// Package ratelimit enforces per-client request budgets such as "10/minute".
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Rule allows Count requests per Period.
type Rule struct {
	Count  int
	Period time.Duration
}

var periods = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRule parses "N/unit" or "N per unit" where unit is second, minute, hour or day.
func ParseRule(s string) (Rule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	count, unit, ok := strings.Cut(s, "/")
	if !ok {
		count, unit, ok = strings.Cut(s, " per ")
	}
	if !ok {
		return Rule{}, fmt.Errorf("rate limit %q: want N/unit", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("rate limit %q: count must be a positive integer", s)
	}
	unit = strings.TrimSuffix(strings.TrimSpace(unit), "s")
	period, ok := periods[unit]
	if !ok {
		return Rule{}, fmt.Errorf("rate limit %q: unknown unit %q", s, unit)
	}
	return Rule{Count: n, Period: period}, nil
}

func (r Rule) String() string {
	for name, d := range periods {
		if d == r.Period {
			return fmt.Sprintf("%d per %s", r.Count, name)
		}
	}
	return fmt.Sprintf("%d per %s", r.Count, r.Period)
}

// Limiter hands out one token bucket per key. A bucket is evicted once the ttl
// given to New has passed since it was created, whether or not it was used in
// between, and the next request for that key starts a full bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

// New creates a limiter tracking at most maxKeys buckets, each kept for ttl
// after it is created.
func New(maxKeys int, ttl time.Duration) *Limiter {
	return &Limiter{buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, ttl)}
}

// Allow reports whether a request identified by key fits within rule.
func (l *Limiter) Allow(key string, rule Rule) bool {
	return l.allowAt(key, rule, time.Now())
}

func (l *Limiter) allowAt(key string, rule Rule, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(rate.Every(rule.Period/time.Duration(rule.Count)), rule.Count)
		l.buckets.Add(key, b)
	}
	l.mu.Unlock()
	return b.AllowN(now, 1)
}
