package server

import (
	"sync"
	"time"
)

// loginRateLimiter blocks an address after repeated failed logins. A nil
// limiter allows everything.
type loginRateLimiter struct {
	mu          sync.Mutex
	byAddr      map[string]*loginAttempts
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
	lastPrune   time.Time
}

type loginAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newLoginRateLimiter(maxFailures int, window, blockFor time.Duration) *loginRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}
	return &loginRateLimiter{
		byAddr:      make(map[string]*loginAttempts),
		maxFailures: maxFailures,
		window:      window,
		blockFor:    blockFor,
	}
}

// Allow reports whether a login attempt from addr may proceed.
func (l *loginRateLimiter) Allow(addr string, now time.Time) bool {
	if l == nil || addr == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(now)

	a, ok := l.byAddr[addr]
	if !ok {
		return true
	}
	a.lastSeen = now
	if now.Before(a.blockedUntil) {
		return false
	}
	if !a.blockedUntil.IsZero() {
		a.blockedUntil = time.Time{}
		a.failures = 0
	}
	return true
}

// RegisterFailure records a failed login from addr, blocking it once the
// failure count within the window reaches the limit.
func (l *loginRateLimiter) RegisterFailure(addr string, now time.Time) {
	if l == nil || addr == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byAddr[addr]
	if !ok {
		a = &loginAttempts{windowStart: now}
		l.byAddr[addr] = a
	}
	if now.Sub(a.windowStart) > l.window {
		a.failures = 0
		a.windowStart = now
	}
	a.failures++
	a.lastSeen = now
	if a.failures >= l.maxFailures {
		a.blockedUntil = now.Add(l.blockFor)
		a.failures = 0
	}
}

// Reset clears the failure history for addr after a successful login.
func (l *loginRateLimiter) Reset(addr string) {
	if l == nil || addr == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byAddr, addr)
}

func (l *loginRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < time.Minute {
		return
	}
	l.lastPrune = now
	stale := 2 * (l.window + l.blockFor)
	if stale < 10*time.Minute {
		stale = 10 * time.Minute
	}
	for addr, a := range l.byAddr {
		if now.Sub(a.lastSeen) > stale && now.After(a.blockedUntil) {
			delete(l.byAddr, addr)
		}
	}
}
