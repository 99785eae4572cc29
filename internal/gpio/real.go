//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads a button from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealReader requests pin on chip as an input for polling. With activeLow
// the line is pulled up and a low level reads as pressed; otherwise it is
// pulled down and a high level reads as pressed.
func NewRealReader(chip string, pin int, activeLow bool) (*RealReader, error) {
	line, err := gpiocdev.RequestLine(chip, pin, lineOptions(activeLow)...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s: %w", pin, chip, err)
	}
	return &RealReader{line: line, pin: pin}, nil
}

// WatchEdges requests pin with both-edge detection and forwards every edge to
// sink from the gpiocdev event goroutine. A non-zero debounce enables the
// kernel debounce filter on the line. The current level is fed to sink
// before returning.
func WatchEdges(chip string, pin int, activeLow bool, debounce time.Duration, sink Sink) (*RealReader, error) {
	handler := func(evt gpiocdev.LineEvent) {
		// Edges are reported against the logical (active) level.
		switch evt.Type {
		case gpiocdev.LineEventRisingEdge:
			sink.OnRawDown()
		case gpiocdev.LineEventFallingEdge:
			sink.OnRawUp()
		}
	}

	opts := lineOptions(activeLow)
	opts = append(opts, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(handler))
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	line, err := gpiocdev.RequestLine(chip, pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s with edges: %w", pin, chip, err)
	}

	r := &RealReader{line: line, pin: pin}
	if err := Poll(r, sink); err != nil {
		line.Close()
		return nil, err
	}
	return r, nil
}

func lineOptions(activeLow bool) []gpiocdev.LineReqOption {
	if activeLow {
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}
	}
	return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
}

// Read returns the logical level of the line.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.pin, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
