// Package logic contains the pure gesture classification state machine for a
// single push-button.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// State is the current gesture classification state of a tracker.
type State int

const (
	// StateUp is the idle resting state.
	StateUp State = iota
	// StateDown is the first contact, not yet classified.
	StateDown
	// StateFirstReleased waits for a second contact or the click timeout.
	StateFirstReleased
	// StateSecondDown is the second contact of a potential double-click.
	StateSecondDown
	// StatePressed is a confirmed long-press, possibly auto-repeating.
	StatePressed
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "UP"
	case StateDown:
		return "DOWN"
	case StateFirstReleased:
		return "FIRST_RELEASED"
	case StateSecondDown:
		return "SECOND_DOWN"
	case StatePressed:
		return "PRESSED"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// RawState is the last level reported by the raw input source.
type RawState int

const (
	RawUp RawState = iota
	RawDown
)

func (r RawState) String() string {
	if r == RawDown {
		return "DOWN"
	}
	return "UP"
}

// EventType identifies an emitted notification.
type EventType string

const (
	EventCreated     EventType = "CREATED"
	EventClosed      EventType = "CLOSED"
	EventReleased    EventType = "RELEASED"
	EventClick       EventType = "CLICK"
	EventDoubleClick EventType = "DOUBLE_CLICK"
	EventPressStart  EventType = "PRESS_START"
	EventPressRepeat EventType = "PRESS_REPEAT"
	EventPressEnd    EventType = "PRESS_END"
)

// GestureEvents lists the event types produced by Tracker.Tick, in
// declaration order.
var GestureEvents = []EventType{
	EventReleased,
	EventClick,
	EventDoubleClick,
	EventPressStart,
	EventPressRepeat,
	EventPressEnd,
}

// NotApplicable is returned by duration and counter queries when the tracker
// is not in StatePressed.
const NotApplicable = -1

// Event is a single emission to be delivered to listeners.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// ButtonID is filled in by the owning button; the tracker leaves it empty.
	ButtonID string
	// PressCounter is the press counter at emission time for press events,
	// 0 otherwise.
	PressCounter int
	// PressDuration is the time held since the press started, for press
	// events only.
	PressDuration time.Duration
}
