package gpio

import (
	"errors"
	"testing"
)

// sinkRecorder records the levels fed to it.
type sinkRecorder struct {
	levels []bool
}

func (s *sinkRecorder) OnRawDown() { s.levels = append(s.levels, true) }
func (s *sinkRecorder) OnRawUp()   { s.levels = append(s.levels, false) }

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader([]bool{true, false, true})

	for i, want := range []bool{true, false, true} {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, got)
		}
	}

	// Fourth read should repeat last sample
	got, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("sample 3 (repeat): expected true")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	_, err := f.Read()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]bool{true})
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil {
		t.Error("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([]bool{true})

	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader([]bool{true, false})

	// Consume first sample
	f.Read()

	f.Reset()

	// Should read first sample again
	got, _ := f.Read()
	if !got {
		t.Error("after reset: expected true")
	}
}

func TestHold(t *testing.T) {
	got := Hold(true, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, v := range got {
		if !v {
			t.Errorf("sample %d: expected true", i)
		}
	}
}

func TestPollFeedsSink(t *testing.T) {
	f := NewFakeReader([]bool{false, true, true, false})
	s := &sinkRecorder{}

	for i := 0; i < 4; i++ {
		if err := Poll(f, s); err != nil {
			t.Fatalf("poll %d: unexpected error: %v", i, err)
		}
	}

	want := []bool{false, true, true, false}
	if len(s.levels) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(s.levels))
	}
	for i := range want {
		if s.levels[i] != want[i] {
			t.Errorf("level %d: expected %v, got %v", i, want[i], s.levels[i])
		}
	}
}

func TestPollErrorLeavesSinkUntouched(t *testing.T) {
	f := NewFakeReader([]bool{true})
	f.ReadError = errors.New("simulated error")
	s := &sinkRecorder{}

	if err := Poll(f, s); err == nil {
		t.Error("expected error")
	}
	if len(s.levels) != 0 {
		t.Errorf("expected no levels, got %v", s.levels)
	}
}
