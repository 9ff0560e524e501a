// Package interaction disambiguates drag from double-click on timeline phase
// bars.
//
// A pointer-down arms a short delayed action that starts a drag. A second
// pointer-down inside the double-click threshold cancels it and fires the
// double-click handler immediately, so genuine double-clicks pay no delay and
// single-click drags pay only the drag delay.
package interaction

import (
	"sync"
	"time"
)

// State of a phase bar.
type State int

const (
	Idle State = iota
	PendingDrag
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingDrag:
		return "pendingDrag"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

const (
	DefaultDoubleClickThreshold = 300 * time.Millisecond
	DefaultDragDelay            = 100 * time.Millisecond
)

// Options configures a PhaseBar. Zero durations take the defaults; a nil
// Clock is the system clock.
type Options struct {
	DoubleClickThreshold time.Duration
	DragDelay            time.Duration
	Clock                Clock
}

// Handlers are invoked without the PhaseBar lock held, so they may call
// back into the PhaseBar.
type Handlers struct {
	OnDrag        func()
	OnDoubleClick func()
	// OnRelease, if set, is called when a drag ends.
	OnRelease func()
}

// PhaseBar is the drag/double-click state machine of one bar. It is safe for
// concurrent use; timer callbacks and pointer events may race.
type PhaseBar struct {
	opts     Options
	handlers Handlers

	mu       sync.Mutex
	state    State
	lastDown time.Time
	hasDown  bool
	timer    Timer
	gen      uint64
	closed   bool
}

// NewPhaseBar returns an idle phase bar.
func NewPhaseBar(h Handlers, opts Options) *PhaseBar {
	if opts.DoubleClickThreshold <= 0 {
		opts.DoubleClickThreshold = DefaultDoubleClickThreshold
	}
	if opts.DragDelay <= 0 {
		opts.DragDelay = DefaultDragDelay
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &PhaseBar{opts: opts, handlers: h}
}

// State returns the current state.
func (b *PhaseBar) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// PointerDown handles a pointer press on the bar.
func (b *PhaseBar) PointerDown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	now := b.opts.Clock.Now()

	if b.hasDown && b.state != Dragging && now.Sub(b.lastDown) < b.opts.DoubleClickThreshold {
		b.cancelTimerLocked()
		b.state = Idle
		b.hasDown = false
		onDouble := b.handlers.OnDoubleClick
		b.mu.Unlock()
		if onDouble != nil {
			onDouble()
		}
		return
	}

	b.cancelTimerLocked()
	b.lastDown = now
	b.hasDown = true
	b.state = PendingDrag
	gen := b.gen
	b.timer = b.opts.Clock.AfterFunc(b.opts.DragDelay, func() { b.startDrag(gen) })
	b.mu.Unlock()
}

// PointerUp handles a release anywhere, including outside the bar; a global
// release listener should call it so the bar always returns to Idle.
func (b *PhaseBar) PointerUp() {
	b.mu.Lock()
	wasDragging := b.state == Dragging
	b.cancelTimerLocked()
	b.state = Idle
	onRelease := b.handlers.OnRelease
	b.mu.Unlock()

	if wasDragging && onRelease != nil {
		onRelease()
	}
}

// Close cancels any armed timer. No handler starts after Close returns.
func (b *PhaseBar) Close() {
	b.mu.Lock()
	b.cancelTimerLocked()
	b.state = Idle
	b.closed = true
	b.mu.Unlock()
}

func (b *PhaseBar) startDrag(gen uint64) {
	b.mu.Lock()
	// A stale generation means the timer was cancelled after it fired.
	if b.closed || gen != b.gen || b.state != PendingDrag {
		b.mu.Unlock()
		return
	}
	b.state = Dragging
	b.timer = nil
	onDrag := b.handlers.OnDrag
	b.mu.Unlock()

	if onDrag != nil {
		onDrag()
	}
}

func (b *PhaseBar) cancelTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}
