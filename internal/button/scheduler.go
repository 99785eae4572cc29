package button

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSchedulerClosed is returned by Every once the scheduler is closed.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler arms repeating callbacks.
type Scheduler interface {
	Every(period time.Duration, fn func(now time.Time)) (Timer, error)
}

// Timer cancels a repeating callback. Stop is idempotent.
type Timer interface {
	Stop()
}

// TickLoop is a Scheduler driven by an external loop calling Fire, such as
// the daemon's ticker loop or a test. Fire must not be called concurrently
// with itself.
type TickLoop struct {
	// resolution is the expected interval between Fire calls; a callback is
	// due when its next time is within half of it.
	resolution time.Duration

	mu      sync.Mutex
	entries []*loopEntry
	closed  bool
}

type loopEntry struct {
	loop    *TickLoop
	period  time.Duration
	fn      func(time.Time)
	next    time.Time
	stopped bool
}

// NewTickLoop creates a TickLoop expecting Fire every resolution.
func NewTickLoop(resolution time.Duration) *TickLoop {
	return &TickLoop{resolution: resolution}
}

// Every implements Scheduler. The callback first runs on the next Fire.
func (l *TickLoop) Every(period time.Duration, fn func(now time.Time)) (Timer, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid tick period %v", period)
	}
	if fn == nil {
		return nil, errors.New("nil tick callback")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrSchedulerClosed
	}
	e := &loopEntry{loop: l, period: period, fn: fn}
	l.entries = append(l.entries, e)
	return e, nil
}

// Fire runs every due callback, in registration order.
func (l *TickLoop) Fire(now time.Time) {
	l.mu.Lock()
	var due []*loopEntry
	for _, e := range l.entries {
		if e.due(now, l.resolution/2) {
			due = append(due, e)
		}
	}
	l.mu.Unlock()

	for _, e := range due {
		l.mu.Lock()
		stopped := e.stopped
		l.mu.Unlock()
		if !stopped {
			e.fn(now)
		}
	}
}

// Len returns the number of armed callbacks.
func (l *TickLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close stops every callback and rejects new ones.
func (l *TickLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for _, e := range l.entries {
		e.stopped = true
	}
	l.entries = nil
}

func (e *loopEntry) due(now time.Time, slack time.Duration) bool {
	if e.next.IsZero() {
		e.next = now.Add(e.period)
		return true
	}
	if now.Add(slack).Before(e.next) {
		return false
	}
	e.next = e.next.Add(e.period)
	if !e.next.After(now) {
		// Fell behind; resynchronize instead of bursting.
		e.next = now.Add(e.period)
	}
	return true
}

// Stop implements Timer.
func (e *loopEntry) Stop() {
	l := e.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	for i, cur := range l.entries {
		if cur == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
}
