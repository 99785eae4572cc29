// Package hid reads button reports from a USB HID macropad and routes them to
// per-button sinks.
package hid

import (
	"encoding/binary"
	"fmt"
)

// ReportIDButton identifies a button report.
const ReportIDButton byte = 0x01

// Report kinds.
const (
	KindPress   Kind = 0x01
	KindRelease Kind = 0x02
)

// MaxButtons is the number of buttons addressable by a report mask.
const MaxButtons = 16

// Kind says whether the buttons in a report went down or up.
type Kind byte

func (k Kind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// Report is one decoded button report.
type Report struct {
	Kind Kind
	// Mask has bit i set for every button index i the report concerns.
	Mask uint16
	// DeviceTime is the device clock in milliseconds since boot.
	DeviceTime uint32
}

// ParseReport decodes a raw HID report.
// Expected format:
//
//	Byte 0: Report ID (0x01)
//	Byte 1: Kind (0x01=press, 0x02=release)
//	Byte 2-3: Button mask (little-endian)
//	Byte 4-7: Device time in ms (little-endian u32)
func ParseReport(data []byte) (Report, error) {
	if len(data) < 8 {
		return Report{}, fmt.Errorf("report too short: %d bytes", len(data))
	}
	if data[0] != ReportIDButton {
		return Report{}, fmt.Errorf("unexpected report ID: 0x%02X", data[0])
	}
	kind := Kind(data[1])
	if kind != KindPress && kind != KindRelease {
		return Report{}, fmt.Errorf("unknown report kind: 0x%02X", data[1])
	}
	return Report{
		Kind:       kind,
		Mask:       binary.LittleEndian.Uint16(data[2:4]),
		DeviceTime: binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

// Encode is the inverse of ParseReport. It is used by tests and by tools that
// emulate a macropad.
func (r Report) Encode() []byte {
	buf := make([]byte, 8)
	buf[0] = ReportIDButton
	buf[1] = byte(r.Kind)
	binary.LittleEndian.PutUint16(buf[2:4], r.Mask)
	binary.LittleEndian.PutUint32(buf[4:8], r.DeviceTime)
	return buf
}

// Buttons returns the indices set in the mask, lowest first.
func (r Report) Buttons() []int {
	var out []int
	for i := 0; i < MaxButtons; i++ {
		if r.Mask&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}
