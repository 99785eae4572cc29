// Package gpio provides button input sources with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the logical level of a button input.
type Reader interface {
	// Read returns true while the button is pressed. Active-low wiring is
	// already accounted for.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Sink receives logical button levels, typically a button.Button.
type Sink interface {
	OnRawDown()
	OnRawUp()
}

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"

// Feed forwards a level to the sink.
func Feed(s Sink, pressed bool) {
	if pressed {
		s.OnRawDown()
	} else {
		s.OnRawUp()
	}
}

// Poll reads the current level from r and feeds it to s. On error the sink
// is left untouched.
func Poll(r Reader, s Sink) error {
	pressed, err := r.Read()
	if err != nil {
		return err
	}
	Feed(s, pressed)
	return nil
}
