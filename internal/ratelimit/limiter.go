// Package ratelimit throttles repeated attempts per key, such as login
// submissions per email address.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the throttle.
type Config struct {
	RPS             float64       // Sustained attempts per second per key
	Burst           int           // Attempts allowed back to back
	CleanupInterval time.Duration // How often idle keys are forgotten
}

// DefaultConfig allows a short burst of logins per account, which covers
// several parallel workers signing in with the same fixture account.
var DefaultConfig = Config{
	RPS:             5,
	Burst:           20,
	CleanupInterval: 10 * time.Minute,
}

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter manages one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a limiter and starts its cleanup goroutine.
func New(config Config) *Limiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		config:  config,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanupLoop()
	return l
}

// Allow reports whether one more attempt for key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Remaining approximates the attempts left for key right now.
func (l *Limiter) Remaining(key string) int {
	n := int(l.get(key).TokensAt(l.now()))
	if n < 0 {
		return 0
	}
	return n
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)}
		l.entries[key] = e
	}
	e.lastUsed = l.now()
	return e.limiter
}

// Cleanup removes keys idle for longer than the cleanup interval.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.config.CleanupInterval)
	for key, e := range l.entries {
		if e.lastUsed.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

func (l *Limiter) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
func (l *Limiter) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
