package schedule

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the scheduler deterministically, no test here sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

// Advance moves time forward firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	deadline := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.when.After(deadline) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			c.now = deadline
			c.mu.Unlock()
			return
		}
		next.stopped = true
		if next.when.After(c.now) {
			c.now = next.when
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fakeFrames hands out frames only when the test fires them.
type fakeFrames struct {
	mu       sync.Mutex
	queued   []func()
	requests int
}

func (f *fakeFrames) RequestFrame(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	idx := len(f.queued)
	f.queued = append(f.queued, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.queued) {
			f.queued[idx] = nil
		}
	}
}

func (f *fakeFrames) Fire() {
	f.mu.Lock()
	queued := f.queued
	f.queued = nil
	f.mu.Unlock()
	for _, fn := range queued {
		if fn != nil {
			fn()
		}
	}
}

type recorder struct {
	mu       sync.Mutex
	messages []int
	forces   map[int]bool
	fulls    []bool
	fail     map[int]error
}

func newRecorder() *recorder {
	return &recorder{forces: make(map[int]bool), fail: make(map[int]error)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Message: func(id int, force bool) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, id)
			r.forces[id] = force
			return r.fail[id]
		},
		Full: func(clearExisting bool) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.fulls = append(r.fulls, clearExisting)
			return nil
		},
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeClock, *fakeFrames, *recorder) {
	t.Helper()
	clock := newFakeClock()
	frames := &fakeFrames{}
	rec := newRecorder()
	s := New(rec.callbacks(), nil, WithClock(clock), WithFrameSource(frames))
	return s, clock, frames, rec
}

func TestLatestWinsCoalescing(t *testing.T) {
	s, _, frames, rec := newTestScheduler(t)

	s.ScheduleUpdate(7, false)
	s.ScheduleUpdate(7, true)
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	frames.Fire()

	if len(rec.messages) != 1 {
		t.Fatalf("processed %d updates, want 1", len(rec.messages))
	}
	if !rec.forces[7] {
		t.Error("force flag did not stick")
	}
}

func TestFullReprocessSupersedes(t *testing.T) {
	s, _, frames, rec := newTestScheduler(t)

	for id := range 5 {
		s.ScheduleUpdate(id, false)
	}
	s.ScheduleFullReprocess(true)

	if got := s.PendingCount(); got != 1 {
		t.Fatalf("PendingCount after full request = %d, want 1", got)
	}
	// updates scheduled after the full request are subsumed too
	s.ScheduleUpdate(3, false)

	frames.Fire()

	if len(rec.fulls) != 1 {
		t.Fatalf("full invocations = %d, want 1", len(rec.fulls))
	}
	if !rec.fulls[0] {
		t.Error("clearExisting flag lost")
	}
	if len(rec.messages) != 0 {
		t.Errorf("per-message callbacks ran despite full reprocess: %v", rec.messages)
	}
}

func TestFirstRenderImmediacy(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.SetStreaming(true)

	// the very first schedule after reset must go straight to a frame,
	// not through the debounce delay
	s.ScheduleUpdate(0, false)
	if frames.requests != 1 {
		t.Fatalf("frame requests = %d, want 1", frames.requests)
	}
	if clock.pendingTimers() != 0 {
		t.Fatalf("debounce timer armed for first render")
	}
	frames.Fire()
	if len(rec.messages) != 1 {
		t.Fatalf("first update not processed on frame")
	}

	// subsequent streaming updates debounce
	s.ScheduleUpdate(0, false)
	if frames.requests != 1 {
		t.Error("second streaming update went straight to a frame")
	}
	if clock.pendingTimers() != 1 {
		t.Error("debounce timer not armed")
	}
}

func TestEmptyFlushKeepsFirstRenderArmed(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)

	// a stream that starts and stops before anything is queued flushes
	// empty; that must not consume first-render immediacy
	s.SetStreaming(true)
	s.SetStreaming(false)

	s.SetStreaming(true)
	s.ScheduleUpdate(0, false)
	if clock.pendingTimers() != 0 {
		t.Fatal("first real schedule of the session went through debounce")
	}
	if frames.requests != 1 {
		t.Fatalf("frame requests = %d, want 1", frames.requests)
	}
	frames.Fire()
	if len(rec.messages) != 1 {
		t.Fatal("first update not processed on frame")
	}
}

func TestDebounceLatestBurstWins(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.SetStreaming(true)
	s.ScheduleUpdate(0, false)
	frames.Fire() // consume first render

	for range 10 {
		s.ScheduleUpdate(0, false)
		clock.Advance(50 * time.Millisecond) // below the 100ms debounce
	}
	if len(rec.messages) != 1 {
		t.Fatalf("flushed mid-burst: %d", len(rec.messages))
	}

	clock.Advance(200 * time.Millisecond)
	frames.Fire()
	if len(rec.messages) != 2 {
		t.Fatalf("burst did not settle into one flush, messages = %d", len(rec.messages))
	}
}

func TestMinIntervalRateLimit(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.SetStreaming(true)

	s.ScheduleUpdate(0, false)
	frames.Fire() // first flush, stamps lastFlush

	// a debounce expiring too soon after the last flush must reschedule,
	// not flush
	s.ScheduleUpdate(1, false)
	clock.Advance(100 * time.Millisecond) // debounce fires at +100ms
	// min interval is 50ms measured from lastFlush... the flush happened at
	// +0, so 100ms later the interval already passed and a frame is queued
	frames.Fire()
	if len(rec.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(rec.messages))
	}

	// now force the pathological case with a sub-interval debounce
	s2, clock2, frames2, rec2 := newTestScheduler(t)
	s2.SetStreaming(true)
	s2.ScheduleUpdate(0, false)
	frames2.Fire()

	s2.ScheduleUpdate(1, false)
	// shrink debounce below the min interval
	s2.debounce = 10 * time.Millisecond
	s2.ScheduleUpdate(1, false)
	clock2.Advance(10 * time.Millisecond)
	if frames2.requests != 1 {
		t.Error("frame requested before min inter-flush interval elapsed")
	}
	clock2.Advance(50 * time.Millisecond)
	if frames2.requests != 2 {
		t.Error("rescheduled debounce did not request a frame after the delta")
	}
	frames2.Fire()
	if len(rec2.messages) != 2 {
		t.Errorf("messages = %d, want 2", len(rec2.messages))
	}
}

func TestStreamEndFlushesSynchronously(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.SetStreaming(true)
	s.ScheduleUpdate(0, false)
	frames.Fire()

	s.ScheduleUpdate(1, false)
	s.ScheduleUpdate(2, false)
	if len(rec.messages) != 1 {
		t.Fatalf("premature flush")
	}

	s.SetStreaming(false)

	// no frame fire, no clock advance: the flush already happened
	if len(rec.messages) != 3 {
		t.Fatalf("stream end did not flush synchronously, messages = %v", rec.messages)
	}
	if clock.pendingTimers() != 0 {
		t.Error("debounce timer survived stream end")
	}
	if s.HasPendingUpdates() {
		t.Error("work left pending after stream end")
	}
}

func TestPerMessageErrorIsolation(t *testing.T) {
	s, _, _, rec := newTestScheduler(t)
	rec.fail[1] = errors.New("detached node")

	s.ScheduleUpdate(0, false)
	s.ScheduleUpdate(1, false)
	s.ScheduleUpdate(2, false)

	err := s.FlushNow()
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	got := append([]int(nil), rec.messages...)
	sort.Ints(got)
	if len(got) != 3 {
		t.Fatalf("a failing message stopped the flush, processed %v", got)
	}
	if s.HasPendingUpdates() {
		t.Error("scheduler did not return to idle after error")
	}

	// subsequent work is unaffected
	s.ScheduleUpdate(5, false)
	if err := s.FlushNow(); err != nil {
		t.Fatalf("flush after error: %v", err)
	}
}

func TestPanicIsolation(t *testing.T) {
	clock := newFakeClock()
	frames := &fakeFrames{}
	calls := 0
	s := New(Callbacks{
		Message: func(id int, force bool) error {
			calls++
			if id == 0 {
				panic("renderer pulled the tree out from under us")
			}
			return nil
		},
	}, nil, WithClock(clock), WithFrameSource(frames))

	s.ScheduleUpdate(0, false)
	s.ScheduleUpdate(1, false)
	if err := s.FlushNow(); err == nil {
		t.Error("panic not surfaced as error")
	}
	if calls != 2 {
		t.Errorf("panic aborted remaining callbacks, calls = %d", calls)
	}
}

func TestCancelAll(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.ScheduleUpdate(0, false)
	s.ScheduleFullReprocess(false)
	s.CancelAll()

	if s.HasPendingUpdates() {
		t.Error("pending work after CancelAll")
	}
	frames.Fire()
	clock.Advance(time.Second)
	if len(rec.messages) != 0 || len(rec.fulls) != 0 {
		t.Error("cancelled work still ran")
	}
}

func TestResetRearmsFirstRender(t *testing.T) {
	s, clock, frames, rec := newTestScheduler(t)
	s.ScheduleUpdate(0, false)
	frames.Fire()
	if len(rec.messages) != 1 {
		t.Fatal("setup flush missing")
	}

	s.SetStreaming(true)
	s.Reset()

	// after a conversation switch the first schedule is immediate again
	s.ScheduleUpdate(0, false)
	if clock.pendingTimers() != 0 {
		t.Error("first schedule after Reset went through debounce")
	}
	frames.Fire()
	if len(rec.messages) != 2 {
		t.Error("first update after Reset not processed")
	}
}

func TestExactlyOncePerFlush(t *testing.T) {
	s, _, frames, rec := newTestScheduler(t)
	s.ScheduleUpdate(4, false)
	frames.Fire()
	frames.Fire()
	if err := s.FlushNow(); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
	if len(rec.messages) != 1 {
		t.Errorf("message processed %d times, want once", len(rec.messages))
	}
}
