package schedule

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one animation frame at 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Clock abstracts time so the scheduler state machine can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// FrameSource delivers animation-frame callbacks. The scheduler keeps at
// most one request outstanding.
type FrameSource interface {
	// RequestFrame schedules fn for the next frame and returns a cancel
	// function. Cancel after delivery is a no-op.
	RequestFrame(fn func()) (cancel func())
}

// FrameTicker is the concrete frame source for hosts without a real render
// loop: a fixed-interval timer standing in for the frame boundary.
type FrameTicker struct {
	clock    Clock
	interval time.Duration
}

func NewFrameTicker(clock Clock, interval time.Duration) *FrameTicker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameTicker{clock: clock, interval: interval}
}

func (f *FrameTicker) RequestFrame(fn func()) func() {
	var (
		mu   sync.Mutex
		done bool
	)
	t := f.clock.AfterFunc(f.interval, func() {
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		done = true
		mu.Unlock()
		fn()
	})
	return func() {
		mu.Lock()
		done = true
		mu.Unlock()
		t.Stop()
	}
}

// Viewport captures and restores the host's scroll position around a flush,
// since replacing nodes can shift layout. Hosts without a viewport use
// NopViewport.
type Viewport interface {
	CaptureScroll() (restore func())
}

// NopViewport is the no-op viewport.
type NopViewport struct{}

func (NopViewport) CaptureScroll() func() { return func() {} }
