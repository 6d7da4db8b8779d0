// Package schedule implements the update batching engine: annotate requests
// for single messages and full-reprocess requests are coalesced and executed
// at most once per animation frame, debounced while the producer is still
// streaming, with guaranteed immediacy for the first render after a reset
// and on stream end.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Defaults for the two scheduling constants.
const (
	DefaultDebounce    = 100 * time.Millisecond
	DefaultMinInterval = 50 * time.Millisecond
)

// Callbacks is the processing surface the scheduler drives. Message handles
// one pending message, Full handles a requested full reprocess. Both may be
// nil, errors are logged and never stop the flush.
type Callbacks struct {
	Message func(id int, force bool) error
	Full    func(clearExisting bool) error
}

// Scheduler owns all batching state. It replaces what the original design
// kept as module-level globals: construct one per conversation and Reset it
// when the conversation is switched. Methods are safe for concurrent use;
// callbacks run without the internal lock held and may schedule further
// work.
type Scheduler struct {
	cb       Callbacks
	log      *zap.Logger
	clock    Clock
	frames   FrameSource
	viewport Viewport

	debounce    time.Duration
	minInterval time.Duration

	mu                 sync.Mutex
	streaming          bool
	firstRenderPending bool
	fullRequested      bool
	clearExisting      bool
	lastFlush          time.Time
	pending            map[int]bool

	cancelFrame   func()
	debounceTimer Timer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithClock(c Clock) Option             { return func(s *Scheduler) { s.clock = c } }
func WithFrameSource(f FrameSource) Option { return func(s *Scheduler) { s.frames = f } }
func WithViewport(v Viewport) Option       { return func(s *Scheduler) { s.viewport = v } }
func WithDebounce(d time.Duration) Option  { return func(s *Scheduler) { s.debounce = d } }
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.minInterval = d }
}

// New creates an idle scheduler with first-render immediacy armed.
func New(cb Callbacks, log *zap.Logger, options ...Option) *Scheduler {
	s := &Scheduler{
		cb:                 cb,
		log:                log,
		clock:              SystemClock{},
		viewport:           NopViewport{},
		debounce:           DefaultDebounce,
		minInterval:        DefaultMinInterval,
		firstRenderPending: true,
		pending:            make(map[int]bool),
	}
	for _, o := range options {
		o(s)
	}
	if s.frames == nil {
		s.frames = NewFrameTicker(s.clock, DefaultFrameInterval)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// ScheduleUpdate queues one message for annotation. Calls for the same id
// coalesce, force sticks once set. The first call after a reset is never
// delayed by debouncing.
func (s *Scheduler) ScheduleUpdate(id int, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fullRequested {
		// a requested full reprocess subsumes individual updates
		s.pending[id] = s.pending[id] || force
	}
	s.armLocked()
}

// ScheduleFullReprocess queues a reprocess of every message, superseding all
// queued per-message updates.
func (s *Scheduler) ScheduleFullReprocess(clearExisting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullRequested = true
	s.clearExisting = s.clearExisting || clearExisting
	clear(s.pending)
	s.armLocked()
}

// SetStreaming flips the streaming state. The true to false transition
// cancels queued debounce and frame work and flushes synchronously so
// nothing stays pending once generation stops.
func (s *Scheduler) SetStreaming(streaming bool) {
	s.mu.Lock()
	was := s.streaming
	s.streaming = streaming
	if was && !streaming {
		s.cancelTimersLocked()
		s.mu.Unlock()
		if err := s.flush(); err != nil {
			s.log.Warn("Flush on stream end failed", zap.Error(err))
		}
		return
	}
	s.mu.Unlock()
}

// FlushNow runs all pending work synchronously, bypassing frame alignment
// and debouncing. Errors from individual callbacks are aggregated; the
// scheduler is Idle afterwards regardless.
func (s *Scheduler) FlushNow() error {
	s.mu.Lock()
	s.cancelTimersLocked()
	s.mu.Unlock()
	return s.flush()
}

// CancelAll drops all queued work and any outstanding frame or timer
// handle. firstRenderPending is left as is; use Reset when switching
// conversations.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	clear(s.pending)
	s.fullRequested = false
	s.clearExisting = false
}

// Reset returns the scheduler to its initial state: nothing queued, no
// handles live, first-render immediacy re-armed. Call it when the active
// conversation is replaced.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	clear(s.pending)
	s.fullRequested = false
	s.clearExisting = false
	s.firstRenderPending = true
	s.lastFlush = time.Time{}
	s.streaming = false
}

// HasPendingUpdates reports whether a flush would do any work.
func (s *Scheduler) HasPendingUpdates() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullRequested || len(s.pending) > 0
}

// PendingCount returns the number of queued per-message updates; a queued
// full reprocess counts as one.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fullRequested {
		return 1
	}
	return len(s.pending)
}

// armLocked decides how the queued work gets to a flush: immediately on the
// next frame for the first render after reset, debounced while streaming,
// next frame otherwise.
func (s *Scheduler) armLocked() {
	if s.firstRenderPending {
		s.stopDebounceLocked()
		s.armFrameLocked()
		return
	}
	if s.streaming {
		s.restartDebounceLocked(s.debounce)
		return
	}
	s.armFrameLocked()
}

// armFrameLocked requests the animation-frame callback. The single
// outstanding handle invariant holds by construction: an existing request
// is reused.
func (s *Scheduler) armFrameLocked() {
	if s.cancelFrame != nil {
		return
	}
	s.cancelFrame = s.frames.RequestFrame(s.onFrame)
}

func (s *Scheduler) restartDebounceLocked(d time.Duration) {
	s.stopDebounceLocked()
	s.debounceTimer = s.clock.AfterFunc(d, s.onDebounce)
}

func (s *Scheduler) stopDebounceLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
}

func (s *Scheduler) cancelTimersLocked() {
	s.stopDebounceLocked()
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
}

// onDebounce fires when a streaming burst has gone quiet. Pathological
// rapid-fire updates are additionally rate limited by the minimum
// inter-flush interval: reschedule for the remaining delta instead of
// flushing immediately.
func (s *Scheduler) onDebounce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounceTimer = nil
	if !s.lastFlush.IsZero() {
		if since := s.clock.Now().Sub(s.lastFlush); since < s.minInterval {
			s.restartDebounceLocked(s.minInterval - since)
			return
		}
	}
	s.armFrameLocked()
}

func (s *Scheduler) onFrame() {
	s.mu.Lock()
	s.cancelFrame = nil
	s.mu.Unlock()
	if err := s.flush(); err != nil {
		s.log.Warn("Flush failed", zap.Error(err))
	}
}

// flush drains the queue: one full-reprocess invocation, or the per-message
// callback once per pending id in arbitrary map order. Every callback is
// isolated - a failing message never prevents the remaining queued messages
// from running, and the scheduler always returns to Idle.
func (s *Scheduler) flush() (err error) {
	s.mu.Lock()
	if !s.fullRequested && len(s.pending) == 0 {
		// nothing rendered: first-render immediacy stays armed
		s.mu.Unlock()
		return nil
	}
	full := s.fullRequested
	clearExisting := s.clearExisting
	msgs := s.pending
	s.fullRequested = false
	s.clearExisting = false
	s.pending = make(map[int]bool)
	s.firstRenderPending = false
	s.mu.Unlock()

	// replacing nodes can shift layout, the viewport must not visibly move
	restore := s.viewport.CaptureScroll()
	defer func() {
		restore()
		s.mu.Lock()
		s.lastFlush = s.clock.Now()
		s.mu.Unlock()
	}()

	if full {
		return s.invoke("full reprocess", func() error {
			if s.cb.Full == nil {
				return nil
			}
			return s.cb.Full(clearExisting)
		})
	}
	for id, force := range msgs {
		e := s.invoke(fmt.Sprintf("message %d", id), func() error {
			if s.cb.Message == nil {
				return nil
			}
			return s.cb.Message(id, force)
		})
		err = multierr.Append(err, e)
	}
	return err
}

// invoke runs one callback with panic isolation.
func (s *Scheduler) invoke(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", what, r)
			s.log.Error("Annotation callback panicked", zap.String("unit", what), zap.Any("panic", r))
		}
	}()
	if err = fn(); err != nil {
		s.log.Warn("Annotation callback failed", zap.String("unit", what), zap.Error(err))
		err = fmt.Errorf("%s: %w", what, err)
	}
	return err
}
