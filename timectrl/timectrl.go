// Package timectrl drives periodic work from a wall-clock ticker.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Listener is invoked on every tick with the tick time.
type Listener func(ctx context.Context, tick time.Time)

// TimeController fires registered listeners at a fixed interval. Listeners run
// on the controller goroutine in registration order, so a slow listener delays
// the next tick instead of overlapping it.
type TimeController struct {
	mu       sync.RWMutex
	Tick     time.Duration
	lastTick time.Time
	ticks    uint64

	listeners []Listener
}

// NewTimeController constructs a controller for the given interval.
func NewTimeController(tick time.Duration) *TimeController {
	return &TimeController{Tick: tick}
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Fire runs every listener once with tick t, outside the ticker. Use it for
// work that must also happen immediately at startup.
func (tc *TimeController) Fire(ctx context.Context, t time.Time) {
	tc.mu.Lock()
	tc.lastTick = t
	tc.ticks++
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, t)
	}
}

// LastTick returns the time of the most recent tick, or the zero time.
func (tc *TimeController) LastTick() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.lastTick
}

// Ticks returns how many times listeners have been fired.
func (tc *TimeController) Ticks() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// Run fires listeners every Tick until ctx is cancelled.
func (tc *TimeController) Run(ctx context.Context) error {
	ticker := time.NewTicker(tc.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			tc.Fire(ctx, t)
		}
	}
}

// Start runs the controller for the specified duration in a separate goroutine.
// It returns a channel that is closed when the controller finishes. A
// non-positive duration runs until the process exits.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		_ = tc.Run(ctx)
	}()
	return done
}
