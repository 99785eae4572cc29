package hid

import (
	"context"
	"fmt"
	"sync"

	"github.com/karalabe/hid"
)

// Device is an open connection to a HID macropad.
type Device struct {
	vendorID  uint16
	productID uint16
	device    *hid.Device
	mu        sync.Mutex
	closed    bool
}

// DeviceInfo describes a HID device visible to the system.
type DeviceInfo struct {
	VendorID     uint16
	ProductID    uint16
	Path         string
	Manufacturer string
	Product      string
}

// ListDevices returns every HID device on the system.
func ListDevices() []DeviceInfo {
	devices := hid.Enumerate(0, 0)
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = DeviceInfo{
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Path:         d.Path,
			Manufacturer: d.Manufacturer,
			Product:      d.Product,
		}
	}
	return out
}

// Open connects to the first openable interface matching vendorID and
// productID.
func Open(vendorID, productID uint16) (*Device, error) {
	devices := hid.Enumerate(vendorID, productID)
	if len(devices) == 0 {
		return nil, fmt.Errorf("no HID device found with VendorID=0x%04X, ProductID=0x%04X", vendorID, productID)
	}

	// Some devices expose several interfaces, not all of which can be opened.
	var lastErr error
	for _, info := range devices {
		dev, err := info.Open()
		if err == nil {
			return &Device{vendorID: vendorID, productID: productID, device: dev}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("open HID device 0x%04X:0x%04X: %w", vendorID, productID, lastErr)
}

// Close closes the device. It unblocks a pending ReadReports.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.device != nil {
		return d.device.Close()
	}
	return nil
}

// ReadReports reads reports until ctx is cancelled, the device is closed or
// a read fails. Malformed reports are passed to onError and skipped.
func (d *Device) ReadReports(ctx context.Context, fn func(Report), onError func(error)) error {
	buf := make([]byte, 64)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return fmt.Errorf("device closed")
		}
		dev := d.device
		d.mu.Unlock()

		n, err := dev.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			continue
		}

		rep, err := ParseReport(buf[:n])
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		fn(rep)
	}
}
