package core

// limiter.go bounds how many workbooks are built or parsed at once.
//
// Building a workbook holds the whole file in memory, so parallel exports
// and imports are capped with a semaphore. When all slots are taken a
// request waits up to maxWait and then fails with ErrTooManyJobs.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyJobs is returned when every codec slot stays busy for the whole
// wait timeout. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many workbook jobs in progress, please try again later")

// DefaultMaxConcurrentJobs is the default limit for parallel codec jobs.
const DefaultMaxConcurrentJobs = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// CodecLimiter is a counting semaphore with a wait timeout.
type CodecLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewCodecLimiter allows at most maxConcurrent simultaneous jobs.
// Non-positive arguments fall back to the defaults.
func NewCodecLimiter(maxConcurrent int, maxWait time.Duration) *CodecLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &CodecLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's timeout.
// The caller must call Release when the job completes.
func (l *CodecLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.track(1)
		return nil
	case <-timer.C:
		return ErrTooManyJobs
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking.
func (l *CodecLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.track(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *CodecLimiter) Release() {
	l.track(-1)
	<-l.semaphore
}

func (l *CodecLimiter) track(delta int) {
	l.mu.Lock()
	l.active += delta
	active := l.active
	l.mu.Unlock()
	codecActiveJobs.Set(float64(active))
}

// Do runs fn inside a slot.
func (l *CodecLimiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// ActiveCount returns the number of running jobs.
func (l *CodecLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *CodecLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *CodecLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no job is running or ctx is done.
// Used on shutdown so in-flight workbooks complete.
func (l *CodecLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *CodecLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}
