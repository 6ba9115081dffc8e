package core

// reload_limiter.go gates snapshot rebuilds.
//
// Reloads read the whole source and build a fresh index, so only a small
// number may run at once. Callers wait up to maxWait for a slot before
// failing with ErrReloadBusy. WaitForDrain lets shutdown finish an
// in-flight reload before the process exits.

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultMaxConcurrentReloads serializes reloads.
const DefaultMaxConcurrentReloads = 1

// DefaultReloadWait is how long a caller waits for a reload slot.
const DefaultReloadWait = 5 * time.Second

// ReloadLimiter is a counting semaphore over snapshot reloads.
type ReloadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewReloadLimiter allows at most maxConcurrent reloads. Non-positive
// arguments fall back to the defaults.
func NewReloadLimiter(maxConcurrent int, maxWait time.Duration) *ReloadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentReloads
	}
	if maxWait <= 0 {
		maxWait = DefaultReloadWait
	}
	return &ReloadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a reload slot, waiting up to maxWait.
// Returns ErrReloadBusy on timeout, or ctx.Err() if ctx ends first.
// The caller must Release after a nil return.
func (l *ReloadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrReloadBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *ReloadLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ReloadLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of reloads in flight.
func (l *ReloadLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the slot count.
func (l *ReloadLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no reload is in flight or ctx ends.
func (l *ReloadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// ReloadLimiterStatus is reported by /healthz.
type ReloadLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

func (l *ReloadLimiter) Status() ReloadLimiterStatus {
	slots := l.MaxConcurrent()
	return ReloadLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     slots - len(l.slots),
		MaxConcurrent: slots,
	}
}
