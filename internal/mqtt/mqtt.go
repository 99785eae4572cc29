// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gesture-button/internal/logic"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "home/buttons"

// timestampFormat keeps millisecond precision; gestures are tens of ms apart.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// EventTopic is the topic a button's gesture events are published on.
func EventTopic(prefix, buttonID string) string {
	return prefix + "/" + buttonID + "/events"
}

// SystemTopic is the topic for system lifecycle events.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RELOADED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details. The press fields are
// only present on PRESS_START, PRESS_REPEAT and PRESS_END.
type ButtonPayload struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	PressCounter    *int   `json:"press_counter,omitempty"`
	PressDurationMs *int64 `json:"press_duration_ms,omitempty"`
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := ButtonPayload{
		ID:        event.ButtonID,
		Timestamp: event.Timestamp.UTC().Format(timestampFormat),
		Event:     string(event.Type),
	}
	if isPressEvent(event.Type) {
		counter := event.PressCounter
		ms := event.PressDuration.Milliseconds()
		p.PressCounter = &counter
		p.PressDurationMs = &ms
	}
	return json.Marshal(Payload{Button: p})
}

func isPressEvent(t logic.EventType) bool {
	switch t {
	case logic.EventPressStart, logic.EventPressRepeat, logic.EventPressEnd:
		return true
	}
	return false
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
