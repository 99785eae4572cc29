// Package button owns the lifecycle of gesture trackers: construction with
// rollback, periodic ticking, registration, notification and close.
package button

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/logic"
)

// Errors returned by Create and registry lookups.
var (
	ErrInvalidConfig      = logic.ErrInvalidConfig
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrRegistrationFailed = errors.New("registration failed")
	ErrInvalidHandle      = errors.New("invalid handle")
)

// DefaultTickPeriod is the tick cadence used when Options.TickPeriod is 0.
const DefaultTickPeriod = 10 * time.Millisecond

// Options carries the collaborators of a button.
type Options struct {
	// Scheduler arms the periodic tick. Required.
	Scheduler Scheduler
	// Registry, if set, records the button until it is closed.
	Registry Registry
	// Notifier, if set, receives every emitted event.
	Notifier Notifier
	// TickPeriod defaults to DefaultTickPeriod.
	TickPeriod time.Duration
	// Logger defaults to the logrus standard logger.
	Logger *logrus.Entry
	// Now defaults to time.Now. Used by PressDuration and lifecycle events.
	Now func() time.Time
}

// Button is a registered, ticking gesture tracker for one physical button.
//
// All methods are safe on a nil *Button: queries return their "not
// applicable" values and the rest do nothing.
type Button struct {
	id       string
	log      *logrus.Entry
	now      func() time.Time
	notifier Notifier
	registry Registry
	tracker  *logic.Tracker

	// mu serializes Tick, Reset, Close and the queries. The raw setters go
	// straight to the tracker's atomic level.
	mu     sync.Mutex
	timer  Timer
	closed atomic.Bool
}

// Create validates cfg (nil selects logic.DefaultConfig), arms the tick,
// registers the button and emits EventCreated. On any failure nothing stays
// armed or registered and no button is returned.
func Create(id string, cfg *logic.Config, opts Options) (*Button, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty button id", ErrInvalidConfig)
	}

	c := logic.DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	tracker, err := logic.NewTracker(c)
	if err != nil {
		return nil, fmt.Errorf("create button %q: %w", id, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("button", id)

	if opts.Scheduler == nil {
		logger.Error("no scheduler to arm the tick")
		return nil, fmt.Errorf("create button %q: %w: no scheduler", id, ErrResourceExhausted)
	}
	period := opts.TickPeriod
	if period == 0 {
		period = DefaultTickPeriod
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	b := &Button{
		id:       id,
		log:      logger,
		now:      now,
		notifier: opts.Notifier,
		registry: opts.Registry,
		tracker:  tracker,
	}

	timer, err := opts.Scheduler.Every(period, b.Tick)
	if err != nil {
		logger.Errorf("unable to arm %v tick: %v", period, err)
		return nil, fmt.Errorf("create button %q: arm tick: %w: %w", id, ErrResourceExhausted, err)
	}
	b.timer = timer

	if b.registry != nil {
		if err := b.registry.Register(b); err != nil {
			timer.Stop()
			logger.Errorf("registration failed: %v", err)
			return nil, fmt.Errorf("create button %q: %w: %w", id, ErrRegistrationFailed, err)
		}
	}

	logger.Infof("button created (click=%v press=%v repeat=%v debounce=%v)",
		c.Click, c.Press, c.PressRepeat, c.Debounce)
	b.notify(logic.Event{Timestamp: now(), Type: logic.EventCreated})
	return b, nil
}

// ID returns the button id.
func (b *Button) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Config returns the validated timing configuration.
func (b *Button) Config() logic.Config {
	if b == nil {
		return logic.Config{}
	}
	return b.tracker.Config()
}

// OnRawDown reports the button as pressed by the input source.
func (b *Button) OnRawDown() {
	if b == nil || b.closed.Load() {
		return
	}
	b.tracker.OnRawDown()
}

// OnRawUp reports the button as released by the input source.
func (b *Button) OnRawUp() {
	if b == nil || b.closed.Load() {
		return
	}
	b.tracker.OnRawUp()
}

// Tick runs one evaluation of the state machine and delivers the resulting
// events. It is normally called by the Scheduler.
func (b *Button) Tick(now time.Time) {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return
	}
	prev := b.tracker.State()
	events := b.tracker.Tick(now)
	state := b.tracker.State()
	b.mu.Unlock()

	if state != prev {
		b.log.Debugf("%s -> %s", prev, state)
	}
	for _, ev := range events {
		b.notify(ev)
	}
}

// Reset forces the button back to the idle state without emitting anything.
// The tick stays armed.
func (b *Button) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return
	}
	b.tracker.Reset()
	b.log.Debug("reset to UP")
}

// Close cancels the tick, unregisters the button and emits EventClosed. It is
// safe to call more than once.
func (b *Button) Close() {
	if b == nil {
		return
	}

	b.mu.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if b.registry != nil {
		b.registry.Unregister(b)
	}
	b.log.Info("button closed")
	b.notify(logic.Event{Timestamp: b.now(), Type: logic.EventClosed})
}

// Closed reports whether Close has been called.
func (b *Button) Closed() bool {
	return b == nil || b.closed.Load()
}

// State returns the classification state, StateUp once closed.
func (b *Button) State() logic.State {
	if b == nil {
		return logic.StateUp
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return logic.StateUp
	}
	return b.tracker.State()
}

// IsPressed reports whether a long-press is in progress.
func (b *Button) IsPressed() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed.Load() && b.tracker.IsPressed()
}

// PressDuration returns how long the current long-press has lasted, or
// logic.NotApplicable.
func (b *Button) PressDuration() time.Duration {
	if b == nil {
		return logic.NotApplicable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return logic.NotApplicable
	}
	return b.tracker.PressDuration(b.now())
}

// PressCounter returns the press counter of the current long-press, or
// logic.NotApplicable.
func (b *Button) PressCounter() int {
	if b == nil {
		return logic.NotApplicable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return logic.NotApplicable
	}
	return b.tracker.PressCounter()
}

func (b *Button) notify(ev logic.Event) {
	ev.ButtonID = b.id
	if ev.Type != logic.EventCreated && ev.Type != logic.EventClosed {
		b.log.Debugf("event %s (counter=%d)", ev.Type, ev.PressCounter)
	}
	if b.notifier != nil {
		b.notifier.Notify(b, ev)
	}
}
