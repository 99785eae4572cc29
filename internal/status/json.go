package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gesture-button/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Buttons       []ButtonJSON `json:"buttons"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	ID              string     `json:"id"`
	Driver          string     `json:"driver,omitempty"`
	State           string     `json:"state"`
	Pressed         bool       `json:"pressed"`
	PressCounter    *int       `json:"press_counter,omitempty"`
	PressDurationMs *int64     `json:"press_duration_ms,omitempty"`
	LastEvent       string     `json:"last_event,omitempty"`
	LastEventAt     string     `json:"last_event_at,omitempty"`
	Counts          CountsJSON `json:"event_counts"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Released    int `json:"released"`
	Click       int `json:"click"`
	DoubleClick int `json:"double_click"`
	PressStart  int `json:"press_start"`
	PressRepeat int `json:"press_repeat"`
	PressEnd    int `json:"press_end"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPPort    string `json:"http_port"`
	ConfigPath  string `json:"config_path,omitempty"`
}

func buildButton(b ButtonStatus) ButtonJSON {
	out := ButtonJSON{
		ID:      b.ID,
		Driver:  b.Driver,
		State:   b.State.String(),
		Pressed: b.Pressed(),
		Counts: CountsJSON{
			Released:    b.Counts.Released,
			Click:       b.Counts.Click,
			DoubleClick: b.Counts.DoubleClick,
			PressStart:  b.Counts.PressStart,
			PressRepeat: b.Counts.PressRepeat,
			PressEnd:    b.Counts.PressEnd,
		},
	}
	if b.Pressed() && b.PressCounter != logic.NotApplicable {
		counter := b.PressCounter
		ms := b.PressDuration.Milliseconds()
		out.PressCounter = &counter
		out.PressDurationMs = &ms
	}
	if b.LastEvent != "" {
		out.LastEvent = string(b.LastEvent)
		out.LastEventAt = b.LastEventAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		buttons[i] = buildButton(b)
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Buttons:       buttons,
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPPort:    snap.Config.HTTPPort,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatButtonJSON returns the JSON for a single button.
func FormatButtonJSON(b ButtonStatus) []byte {
	data, _ := json.MarshalIndent(buildButton(b), "", "  ")
	return data
}
