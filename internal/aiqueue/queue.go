// Package aiqueue bounds how many calls are in flight against the external
// vision provider and enforces a minimum wall-clock spacing between
// consecutive call starts, globally across all callers.
package aiqueue

import (
	"context"
	"sync"
	"time"
)

// Queue serializes access to a rate-limited external resource. Callers beyond
// the concurrency bound block until a slot frees; a slot holder additionally
// waits until the globally reserved start time before invoking its work.
type Queue struct {
	slots       chan struct{}
	minInterval time.Duration

	mu        sync.Mutex
	lastStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Queue with the given concurrency bound and minimum
// interval between call starts.
func New(maxConcurrent int, minInterval time.Duration) *Queue {
	return NewWithClock(maxConcurrent, minInterval, nil, nil)
}

// NewWithClock is New with an injectable clock and sleeper for tests.
func NewWithClock(maxConcurrent int, minInterval time.Duration, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Queue{
		slots:       make(chan struct{}, maxConcurrent),
		minInterval: minInterval,
		now:         now,
		sleep:       sleep,
	}
}

// Submit runs work once a slot is free and the minimum interval since the
// previous call start has elapsed. It returns the work's error, or the
// context error if the caller gave up while waiting. The reserved start time
// stands even if work fails, so failures never tighten or loosen the spacing
// for subsequent callers.
func (q *Queue) Submit(ctx context.Context, work func(ctx context.Context) error) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-q.slots }()

	// Reserve the next global start slot. The lock is held only for the
	// instant of reading and advancing the shared timestamp, never across
	// the wait or the call itself.
	q.mu.Lock()
	now := q.now()
	start := now
	if !q.lastStart.IsZero() {
		if earliest := q.lastStart.Add(q.minInterval); earliest.After(now) {
			start = earliest
		}
	}
	q.lastStart = start
	q.mu.Unlock()

	if wait := start.Sub(now); wait > 0 {
		if err := q.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return work(ctx)
}

// InFlight reports how many slots are currently held, for observability.
func (q *Queue) InFlight() int {
	return len(q.slots)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
