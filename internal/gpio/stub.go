//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chip string, pin int, activeLow bool) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// WatchEdges returns an error on non-Linux platforms.
func WatchEdges(chip string, pin int, activeLow bool, debounce time.Duration, sink Sink) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
