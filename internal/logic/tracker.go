package logic

import (
	"sync/atomic"
	"time"
)

// Tracker classifies the raw level of one button into gesture events.
//
// Tick, Reset and the queries must be called serially by a single owner.
// OnRawDown and OnRawUp may be called from any goroutine: they write a single
// atomic field that Tick only reads.
type Tracker struct {
	cfg Config

	// requested is the last raw level, true while the button is down.
	requested atomic.Bool

	state     State
	startTime time.Time
	stopTime  time.Time
	counter   int
	// awaitRelease holds the tracker in StateUp after a press timeout until
	// the raw level goes up again.
	awaitRelease bool
}

// NewTracker creates a tracker in StateUp. The config is validated first and
// no tracker is returned if it is invalid.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg}, nil
}

// Config returns the timing configuration the tracker was built with.
func (t *Tracker) Config() Config {
	return t.cfg
}

// OnRawDown records that the input source reports the button as pressed.
func (t *Tracker) OnRawDown() {
	t.requested.Store(true)
}

// OnRawUp records that the input source reports the button as released.
func (t *Tracker) OnRawUp() {
	t.requested.Store(false)
}

// Requested returns the last raw level received.
func (t *Tracker) Requested() RawState {
	if t.requested.Load() {
		return RawDown
	}
	return RawUp
}

// State returns the current classification state.
func (t *Tracker) State() State {
	return t.state
}

// Tick evaluates one transition against the raw level and the time elapsed
// since the phase anchors. Events are returned in emission order.
func (t *Tracker) Tick(now time.Time) []Event {
	down := t.requested.Load()

	switch t.state {
	case StateUp:
		if t.awaitRelease {
			if !down {
				t.awaitRelease = false
			}
			return nil
		}
		if down {
			t.state = StateDown
			t.startTime = now
		}

	case StateDown:
		elapsed := now.Sub(t.startTime)
		if !down {
			if elapsed < t.cfg.Debounce {
				// Bounce on the first contact.
				t.Reset()
				return nil
			}
			t.state = StateFirstReleased
			t.stopTime = now
			return []Event{t.event(now, EventReleased)}
		}
		if elapsed > t.cfg.Press {
			t.state = StatePressed
			t.stopTime = now
			t.counter = 1
			return []Event{t.pressEvent(now, EventPressStart)}
		}

	case StateFirstReleased:
		// The click window runs from the first release, not from the first contact.
		sinceRelease := now.Sub(t.stopTime)
		if sinceRelease > t.cfg.Click {
			events := []Event{t.event(now, EventReleased), t.event(now, EventClick)}
			t.Reset()
			return events
		}
		if down && (t.cfg.Debounce == 0 || sinceRelease > t.cfg.Debounce) {
			t.state = StateSecondDown
			t.startTime = now
		}

	case StateSecondDown:
		// Anchored at the second contact: a release is only trusted once the
		// contact has lasted longer than the debounce window.
		if !down && now.Sub(t.startTime) > t.cfg.Debounce {
			t.stopTime = now
			ev := t.event(now, EventDoubleClick)
			t.Reset()
			return []Event{ev}
		}

	case StatePressed:
		if !down {
			t.stopTime = now
			ev := t.pressEvent(now, EventPressEnd)
			t.Reset()
			return []Event{ev}
		}
		if t.cfg.PressTimeout > 0 && now.Sub(t.startTime) >= t.cfg.PressTimeout {
			ev := t.pressEvent(now, EventPressEnd)
			t.Reset()
			t.awaitRelease = true
			return []Event{ev}
		}
		if t.cfg.PressRepeat > 0 && now.Sub(t.stopTime) >= t.cfg.PressRepeat {
			t.stopTime = now
			t.counter++
			return []Event{t.pressEvent(now, EventPressRepeat)}
		}
	}

	return nil
}

// Reset returns the tracker to StateUp and clears the press counter and the
// phase timestamps. The raw level is left untouched.
func (t *Tracker) Reset() {
	t.state = StateUp
	t.counter = 0
	t.startTime = time.Time{}
	t.stopTime = time.Time{}
	t.awaitRelease = false
}

// IsPressed reports whether a long-press is in progress.
func (t *Tracker) IsPressed() bool {
	return t.state == StatePressed
}

// PressDuration returns the time since the long-press started, or
// NotApplicable if the tracker is not pressed.
func (t *Tracker) PressDuration(now time.Time) time.Duration {
	if t.state != StatePressed {
		return NotApplicable
	}
	return now.Sub(t.startTime)
}

// PressCounter returns the number of press events emitted during the current
// long-press, or NotApplicable if the tracker is not pressed.
func (t *Tracker) PressCounter() int {
	if t.state != StatePressed {
		return NotApplicable
	}
	return t.counter
}

func (t *Tracker) event(now time.Time, typ EventType) Event {
	return Event{Timestamp: now, Type: typ}
}

func (t *Tracker) pressEvent(now time.Time, typ EventType) Event {
	return Event{
		Timestamp:     now,
		Type:          typ,
		PressCounter:  t.counter,
		PressDuration: now.Sub(t.startTime),
	}
}
