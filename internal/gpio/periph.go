package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads a button through periph.io, for boards or GPIO
// expanders not exposed through the character device.
type PeriphReader struct {
	pin       pgpio.PinIn
	activeLow bool
}

// NewPeriphReader initializes the periph host drivers and opens the pin with
// the given name (e.g. "GPIO17").
func NewPeriphReader(name string, activeLow bool) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return newPeriphReader(p, activeLow)
}

func newPeriphReader(p pgpio.PinIn, activeLow bool) (*PeriphReader, error) {
	pull := pgpio.PullDown
	if activeLow {
		pull = pgpio.PullUp
	}
	if err := p.In(pull, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", p, err)
	}
	return &PeriphReader{pin: p, activeLow: activeLow}, nil
}

// Read returns true while the button is pressed.
func (r *PeriphReader) Read() (bool, error) {
	l := r.pin.Read()
	if r.activeLow {
		return l == pgpio.Low, nil
	}
	return l == pgpio.High, nil
}

// Close halts the pin.
func (r *PeriphReader) Close() error {
	return r.pin.Halt()
}
