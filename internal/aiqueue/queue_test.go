package aiqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock advances only when a waiter sleeps, making spacing deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

func TestSubmitEnforcesMinInterval(t *testing.T) {
	clock := newFakeClock()
	q := NewWithClock(1, 30*time.Second, clock.Now, clock.Sleep)

	var starts []time.Time
	for i := 0; i < 3; i++ {
		err := q.Submit(context.Background(), func(ctx context.Context) error {
			starts = append(starts, clock.Now())
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if len(starts) != 3 {
		t.Fatalf("expected 3 starts, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 30*time.Second {
			t.Fatalf("starts %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestSubmitSpacingSurvivesWorkFailure(t *testing.T) {
	clock := newFakeClock()
	q := NewWithClock(1, 10*time.Second, clock.Now, clock.Sleep)

	boom := errors.New("provider down")
	if err := q.Submit(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected work error, got %v", err)
	}

	var start time.Time
	if err := q.Submit(context.Background(), func(ctx context.Context) error {
		start = clock.Now()
		return nil
	}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	// The failed call's reserved start stands, so the second call still waits.
	if got := start.Sub(time.Unix(1700000000, 0)); got < 10*time.Second {
		t.Fatalf("second call started %s after the failed one, want >= 10s", got)
	}
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	const maxConcurrent = 4
	q := New(maxConcurrent, 0)

	var inFlight atomic.Int64
	var peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Submit(context.Background(), func(ctx context.Context) error {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > maxConcurrent {
		t.Fatalf("observed %d concurrent calls, want <= %d", got, maxConcurrent)
	}
}

func TestSubmitHonorsContextWhileWaitingForSlot(t *testing.T) {
	q := New(1, 0)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Submit(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	// Wait for the first submission to hold the only slot.
	for q.InFlight() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Submit(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	<-done
}
