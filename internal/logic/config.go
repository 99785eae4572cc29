package logic

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Default timing values.
const (
	DefaultClick       = 140 * time.Millisecond
	DefaultPress       = 1500 * time.Millisecond
	DefaultPressRepeat = 1500 * time.Millisecond
	DefaultDebounce    = 50 * time.Millisecond
)

// Config holds the timing windows of a tracker. It is immutable once a
// tracker has been built from it.
type Config struct {
	// Click is the maximum gap after a release before the click is finalized
	// or a second contact starts a double-click.
	Click time.Duration
	// Press is the minimum hold before a contact becomes a long-press.
	Press time.Duration
	// PressRepeat is the interval between PressRepeat events. 0 disables.
	PressRepeat time.Duration
	// Debounce is how long a transition must persist before it is trusted.
	Debounce time.Duration
	// PressTimeout ends a long-press that has lasted this long, treating the
	// button as stuck until it is released. 0 disables.
	PressTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Click:       DefaultClick,
		Press:       DefaultPress,
		PressRepeat: DefaultPressRepeat,
		Debounce:    DefaultDebounce,
	}
}

// Validate reports the first violated invariant, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Click <= 0 {
		return fmt.Errorf("%w: click must be greater than 0, got %v", ErrInvalidConfig, c.Click)
	}
	if c.Press <= 0 {
		return fmt.Errorf("%w: press must be greater than 0, got %v", ErrInvalidConfig, c.Press)
	}
	if c.Press < c.Click {
		return fmt.Errorf("%w: press (%v) must not be shorter than click (%v)", ErrInvalidConfig, c.Press, c.Click)
	}
	if c.PressRepeat < 0 {
		return fmt.Errorf("%w: press_repeat must not be negative, got %v", ErrInvalidConfig, c.PressRepeat)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative, got %v", ErrInvalidConfig, c.Debounce)
	}
	if c.PressTimeout < 0 {
		return fmt.Errorf("%w: press_timeout must not be negative, got %v", ErrInvalidConfig, c.PressTimeout)
	}
	if c.PressTimeout > 0 && c.PressTimeout <= c.Press {
		return fmt.Errorf("%w: press_timeout (%v) must be greater than press (%v)", ErrInvalidConfig, c.PressTimeout, c.Press)
	}
	return nil
}
