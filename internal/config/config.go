// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/gesture-button/internal/gpio"
	"github.com/sweeney/gesture-button/internal/hid"
	"github.com/sweeney/gesture-button/internal/logic"
)

// Input drivers.
const (
	DriverGPIOCDev = "gpiocdev"
	DriverPeriph   = "periph"
	DriverHID      = "hid"
)

// Defaults applied to omitted fields.
const (
	DefaultTickMs      = 10
	DefaultBroker      = "tcp://localhost:1883"
	DefaultClientID    = "gesture-button"
	DefaultHTTP        = ":8080"
	DefaultHeartbeatMs = int64(15 * time.Minute / time.Millisecond)
)

type Config struct {
	TickMs      int          `yaml:"tick_ms"`
	HeartbeatMs *int64       `yaml:"heartbeat_ms,omitempty"`
	HTTP        string       `yaml:"http"`
	MQTT        MQTTConfig   `yaml:"mqtt"`
	HID         HIDConfig    `yaml:"hid"`
	Defaults    TimingConfig `yaml:"defaults"`
	Buttons     []Button     `yaml:"buttons"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
}

type HIDConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
}

// TimingConfig overrides gesture timings. Nil fields inherit.
type TimingConfig struct {
	ClickMs        *int64 `yaml:"click_ms,omitempty"`
	PressMs        *int64 `yaml:"press_ms,omitempty"`
	PressRepeatMs  *int64 `yaml:"press_repeat_ms,omitempty"`
	DebounceMs     *int64 `yaml:"debounce_ms,omitempty"`
	PressTimeoutMs *int64 `yaml:"press_timeout_ms,omitempty"`
}

type Button struct {
	ID     string `yaml:"id"`
	Driver string `yaml:"driver"`

	// gpiocdev
	Chip  string `yaml:"chip,omitempty"`
	Pin   int    `yaml:"pin,omitempty"`
	Edges bool   `yaml:"edges,omitempty"`

	// KernelDebounceMs enables the line debounce filter when Edges is set.
	KernelDebounceMs int `yaml:"kernel_debounce_ms,omitempty"`

	// periph
	PinName string `yaml:"pin_name,omitempty"`

	// gpiocdev and periph
	ActiveLow bool `yaml:"active_low,omitempty"`

	// hid
	Index int `yaml:"index,omitempty"`

	Timing *TimingConfig `yaml:"timing,omitempty"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, validates and defaults a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.applyDefaults()

	// Timings are checked after defaults so partial overrides are judged
	// against the values they will actually run with.
	for _, b := range cfg.Buttons {
		if err := cfg.Timing(b).Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: button %q: %w", b.ID, err)
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TickMs < 0 {
		return fmt.Errorf("tick_ms must not be negative")
	}
	if c.HeartbeatMs != nil && *c.HeartbeatMs < 0 {
		return fmt.Errorf("heartbeat_ms must not be negative")
	}
	if len(c.Buttons) == 0 {
		return fmt.Errorf("at least one button is required")
	}

	ids := make(map[string]bool)
	pins := make(map[string]bool)
	indices := make(map[int]bool)
	usesHID := false

	for i, b := range c.Buttons {
		if b.ID == "" {
			return fmt.Errorf("buttons[%d].id is required", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate button id: %s", b.ID)
		}
		ids[b.ID] = true

		switch b.Driver {
		case DriverGPIOCDev, "":
			if b.Pin < 0 {
				return fmt.Errorf("button %q: pin must not be negative", b.ID)
			}
			if b.KernelDebounceMs < 0 {
				return fmt.Errorf("button %q: kernel_debounce_ms must not be negative", b.ID)
			}
			key := fmt.Sprintf("%s/%d", b.Chip, b.Pin)
			if pins[key] {
				return fmt.Errorf("button %q: pin %d already in use", b.ID, b.Pin)
			}
			pins[key] = true
		case DriverPeriph:
			if b.PinName == "" {
				return fmt.Errorf("button %q: pin_name is required for the periph driver", b.ID)
			}
			if pins[b.PinName] {
				return fmt.Errorf("button %q: pin %s already in use", b.ID, b.PinName)
			}
			pins[b.PinName] = true
		case DriverHID:
			usesHID = true
			if b.Index < 0 || b.Index >= hid.MaxButtons {
				return fmt.Errorf("button %q: index %d out of range [0,%d)", b.ID, b.Index, hid.MaxButtons)
			}
			if indices[b.Index] {
				return fmt.Errorf("duplicate hid button index: %d", b.Index)
			}
			indices[b.Index] = true
		default:
			return fmt.Errorf("button %q: unknown driver %q", b.ID, b.Driver)
		}
	}

	if usesHID {
		if c.HID.VendorID == 0 {
			return fmt.Errorf("hid.vendor_id is required")
		}
		if c.HID.ProductID == 0 {
			return fmt.Errorf("hid.product_id is required")
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.TickMs == 0 {
		c.TickMs = DefaultTickMs
	}
	if c.HeartbeatMs == nil {
		hb := DefaultHeartbeatMs
		c.HeartbeatMs = &hb
	}
	if c.HTTP == "" {
		c.HTTP = DefaultHTTP
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBroker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	for i := range c.Buttons {
		b := &c.Buttons[i]
		if b.Driver == "" {
			b.Driver = DriverGPIOCDev
		}
		if b.Driver == DriverGPIOCDev && b.Chip == "" {
			b.Chip = gpio.DefaultChip
		}
	}
}

// KernelDebounce returns the line debounce period for edge-watched buttons.
func (b Button) KernelDebounce() time.Duration {
	return time.Duration(b.KernelDebounceMs) * time.Millisecond
}

// Tick returns the tick period.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; 0 disables.
func (c *Config) Heartbeat() time.Duration {
	if c.HeartbeatMs == nil {
		return 0
	}
	return time.Duration(*c.HeartbeatMs) * time.Millisecond
}

// Timing resolves the gesture timings for b: built-in defaults, then the
// file-wide defaults block, then the button's own overrides.
func (c *Config) Timing(b Button) logic.Config {
	cfg := logic.DefaultConfig()
	c.Defaults.apply(&cfg)
	if b.Timing != nil {
		b.Timing.apply(&cfg)
	}
	return cfg
}

func (t TimingConfig) apply(cfg *logic.Config) {
	set := func(dst *time.Duration, ms *int64) {
		if ms != nil {
			*dst = time.Duration(*ms) * time.Millisecond
		}
	}
	set(&cfg.Click, t.ClickMs)
	set(&cfg.Press, t.PressMs)
	set(&cfg.PressRepeat, t.PressRepeatMs)
	set(&cfg.Debounce, t.DebounceMs)
	set(&cfg.PressTimeout, t.PressTimeoutMs)
}
