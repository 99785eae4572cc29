// Package status provides a thread-safe status tracker for the gesture-button
// daemon. It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/gesture-button/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPPort    string
	ConfigPath  string
}

// EventCounts tallies gesture events for one button.
type EventCounts struct {
	Released    int
	Click       int
	DoubleClick int
	PressStart  int
	PressRepeat int
	PressEnd    int
}

// Add counts one event of type t. Lifecycle events are not counted.
func (c *EventCounts) Add(t logic.EventType) {
	switch t {
	case logic.EventReleased:
		c.Released++
	case logic.EventClick:
		c.Click++
	case logic.EventDoubleClick:
		c.DoubleClick++
	case logic.EventPressStart:
		c.PressStart++
	case logic.EventPressRepeat:
		c.PressRepeat++
	case logic.EventPressEnd:
		c.PressEnd++
	}
}

// Observed is the read-only view of a live button.
type Observed interface {
	ID() string
	State() logic.State
	PressCounter() int
	PressDuration() time.Duration
}

// ButtonStatus is the last known state of one button.
type ButtonStatus struct {
	ID     string
	Driver string
	State  logic.State
	// PressCounter and PressDuration are logic.NotApplicable outside a
	// long-press.
	PressCounter  int
	PressDuration time.Duration
	Counts        EventCounts
	LastEvent     logic.EventType
	LastEventAt   time.Time
}

// Pressed reports whether the button was in a long-press.
func (b ButtonStatus) Pressed() bool {
	return b.State == logic.StatePressed
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Buttons       []ButtonStatus // sorted by ID
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Button returns the status of the button with the given id.
func (s Snapshot) Button(id string) (ButtonStatus, bool) {
	for _, b := range s.Buttons {
		if b.ID == id {
			return b, true
		}
	}
	return ButtonStatus{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	buttons map[string]*ButtonStatus
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		buttons: make(map[string]*ButtonStatus),
	}
}

// AddButton starts tracking a button. Re-adding an id keeps its counts.
func (t *Tracker) AddButton(id, driver string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.button(id)
	b.Driver = driver
}

// Retain stops tracking every button whose id is not in ids. The counts of
// the buttons that remain are kept.
func (t *Tracker) Retain(ids ...string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.buttons {
		if !keep[id] {
			delete(t.buttons, id)
		}
	}
}

// Record counts an emitted event against its button.
func (t *Tracker) Record(ev logic.Event) {
	if ev.ButtonID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.button(ev.ButtonID)
	b.Counts.Add(ev.Type)
	b.LastEvent = ev.Type
	b.LastEventAt = ev.Timestamp
}

// Refresh copies the live state of each button.
// Called from runLoop on every tick.
func (t *Tracker) Refresh(buttons ...Observed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range buttons {
		b := t.button(o.ID())
		b.State = o.State()
		b.PressCounter = o.PressCounter()
		b.PressDuration = o.PressDuration()
	}
}

// button returns the entry for id, creating it. Callers hold mu.
func (t *Tracker) button(id string) *ButtonStatus {
	b, ok := t.buttons[id]
	if !ok {
		b = &ButtonStatus{
			ID:            id,
			PressCounter:  logic.NotApplicable,
			PressDuration: logic.NotApplicable,
		}
		t.buttons[id] = b
	}
	return b
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetConfig replaces the displayed config, e.g. after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = make([]ButtonStatus, 0, len(t.buttons))
	for _, b := range t.buttons {
		s.Buttons = append(s.Buttons, *b)
	}
	t.mu.RUnlock()

	sort.Slice(s.Buttons, func(i, j int) bool { return s.Buttons[i].ID < s.Buttons[j].ID })
	s.Now = time.Now()
	return s
}
