package gpio

import (
	"testing"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func setLevel(p *gpiotest.Pin, l pgpio.Level) {
	p.Lock()
	p.L = l
	p.Unlock()
}

func TestPeriphReaderActiveLow(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO17", Num: 17}
	r, err := newPeriphReader(p, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.P != pgpio.PullUp {
		t.Errorf("pull: got %s, want %s", p.P, pgpio.PullUp)
	}

	// Pulled up at rest.
	pressed, err := r.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pressed {
		t.Error("expected released with line high")
	}

	setLevel(p, pgpio.Low)
	pressed, _ = r.Read()
	if !pressed {
		t.Error("expected pressed with line low")
	}

	if err := r.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestPeriphReaderActiveHigh(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO27", Num: 27}
	r, err := newPeriphReader(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.P != pgpio.PullDown {
		t.Errorf("pull: got %s, want %s", p.P, pgpio.PullDown)
	}

	pressed, _ := r.Read()
	if pressed {
		t.Error("expected released with line low")
	}

	setLevel(p, pgpio.High)
	pressed, _ = r.Read()
	if !pressed {
		t.Error("expected pressed with line high")
	}
}

func TestPeriphReaderFeedsSink(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO22", Num: 22}
	r, err := newPeriphReader(p, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := &sinkRecorder{}

	Poll(r, s)
	setLevel(p, pgpio.Low)
	Poll(r, s)

	if len(s.levels) != 2 || s.levels[0] || !s.levels[1] {
		t.Errorf("unexpected levels: %v", s.levels)
	}
}
