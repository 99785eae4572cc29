package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/button"
	"github.com/sweeney/gesture-button/internal/gpio"
	"github.com/sweeney/gesture-button/internal/hid"
	"github.com/sweeney/gesture-button/internal/logic"
	"github.com/sweeney/gesture-button/internal/mqtt"
	"github.com/sweeney/gesture-button/internal/status"
)

// pipeline wires one button from a polled reader to a fake publisher and a
// status tracker, the same way the daemon does.
type pipeline struct {
	loop      *button.TickLoop
	registry  *button.MemoryRegistry
	publisher *mqtt.FakePublisher
	notifier  *mqtt.Notifier
	tracker   *status.Tracker
	start     time.Time
	tick      time.Duration
}

func newPipeline() *pipeline {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pub := mqtt.NewFakePublisher()
	return &pipeline{
		loop:      button.NewTickLoop(10 * time.Millisecond),
		registry:  button.NewMemoryRegistry(),
		publisher: pub,
		notifier:  mqtt.NewNotifier(pub, logrus.NewEntry(logrus.StandardLogger()), 256),
		tracker:   status.NewTracker(start, status.Config{TickMs: 10, TopicPrefix: mqtt.DefaultTopicPrefix}),
		start:     start,
		tick:      10 * time.Millisecond,
	}
}

func (p *pipeline) create(t *testing.T, id string, cfg *logic.Config) *button.Button {
	t.Helper()
	b, err := button.Create(id, cfg, button.Options{
		Scheduler: p.loop,
		Registry:  p.registry,
		Notifier: button.Broadcast(
			p.notifier,
			button.NotifierFunc(func(_ *button.Button, ev logic.Event) {
				if ev.Type != logic.EventCreated && ev.Type != logic.EventClosed {
					p.tracker.Record(ev)
				}
			}),
		),
		TickPeriod: p.tick,
		Now:        func() time.Time { return p.start },
	})
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	p.tracker.AddButton(id, "gpiocdev")
	return b
}

// run polls reader into b and fires the loop once per sample, at
// start+tick, start+2*tick, ...
func (p *pipeline) run(t *testing.T, reader gpio.Reader, b *button.Button, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := gpio.Poll(reader, b); err != nil {
			t.Fatalf("tick %d: gpio read error: %v", i, err)
		}
		p.loop.Fire(p.start.Add(time.Duration(i) * p.tick))
		p.tracker.Refresh(b)
	}
}

// flush waits until every queued event has reached the publisher. Later
// events are not published.
func (p *pipeline) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.notifier.Close(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func (p *pipeline) gestures() []logic.EventType {
	var out []logic.EventType
	for _, typ := range p.publisher.EventTypes() {
		if typ != logic.EventCreated && typ != logic.EventClosed {
			out = append(out, typ)
		}
	}
	return out
}

func script(parts ...[]bool) []bool {
	var out []bool
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func assertTypes(t *testing.T, got, want []logic.EventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

// TestIntegrationFullFlow runs click, double-click and long-press back to
// back through one button.
func TestIntegrationFullFlow(t *testing.T) {
	p := newPipeline()
	cfg := logic.Config{
		Click:       140 * time.Millisecond,
		Press:       500 * time.Millisecond,
		PressRepeat: 200 * time.Millisecond,
		Debounce:    50 * time.Millisecond,
	}
	b := p.create(t, "hall", &cfg)
	defer b.Close()

	samples := script(
		gpio.Hold(false, 2),
		gpio.Hold(true, 8), gpio.Hold(false, 20), // click
		gpio.Hold(true, 7), gpio.Hold(false, 7), gpio.Hold(true, 7), gpio.Hold(false, 20), // double-click
		gpio.Hold(true, 100), gpio.Hold(false, 5), // long-press
	)
	reader := gpio.NewFakeReader(samples)
	p.run(t, reader, b, len(samples))
	p.flush(t)

	assertTypes(t, p.gestures(), []logic.EventType{
		logic.EventReleased, logic.EventReleased, logic.EventClick,
		logic.EventReleased, logic.EventDoubleClick,
		logic.EventPressStart, logic.EventPressRepeat, logic.EventPressRepeat, logic.EventPressEnd,
	})

	snap := p.tracker.Snapshot()
	bs, ok := snap.Button("hall")
	if !ok {
		t.Fatal("expected hall in status")
	}
	if bs.Counts.Click != 1 || bs.Counts.DoubleClick != 1 || bs.Counts.PressStart != 1 || bs.Counts.PressRepeat != 2 || bs.Counts.PressEnd != 1 {
		t.Errorf("unexpected counts: %+v", bs.Counts)
	}
	if bs.LastEvent != logic.EventPressEnd {
		t.Errorf("last event: got %s, want PRESS_END", bs.LastEvent)
	}
	if bs.State != logic.StateUp {
		t.Errorf("state: got %s, want UP", bs.State)
	}
}

func TestIntegrationNoEventsWhileIdle(t *testing.T) {
	p := newPipeline()
	b := p.create(t, "hall", nil)
	defer b.Close()

	p.run(t, gpio.NewFakeReader(gpio.Hold(false, 1)), b, 500)
	p.flush(t)

	if got := p.gestures(); len(got) != 0 {
		t.Errorf("expected no gestures, got %v", got)
	}
}

func TestIntegrationBounceRejection(t *testing.T) {
	p := newPipeline()
	b := p.create(t, "hall", nil)
	defer b.Close()

	// Three 10-20ms contacts, each shorter than the 50ms debounce.
	samples := script(
		gpio.Hold(false, 2),
		gpio.Hold(true, 1), gpio.Hold(false, 3),
		gpio.Hold(true, 2), gpio.Hold(false, 3),
		gpio.Hold(true, 1), gpio.Hold(false, 30),
	)
	p.run(t, gpio.NewFakeReader(samples), b, len(samples))
	p.flush(t)

	if got := p.gestures(); len(got) != 0 {
		t.Errorf("expected bounces rejected, got %v", got)
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	p := newPipeline()
	p.publisher.PublishError = errors.New("broker unavailable")
	b := p.create(t, "hall", nil)

	samples := script(gpio.Hold(false, 1), gpio.Hold(true, 8), gpio.Hold(false, 20))
	p.run(t, gpio.NewFakeReader(samples), b, len(samples))
	b.Close()
	p.flush(t)

	if len(p.publisher.Events) != 0 {
		t.Errorf("expected no recorded events, got %d", len(p.publisher.Events))
	}
	bs, _ := p.tracker.Snapshot().Button("hall")
	if bs.Counts.Click != 1 {
		t.Errorf("expected click counted despite publish failure, got %+v", bs.Counts)
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	p := newPipeline()
	cfg := logic.DefaultConfig()
	cfg.Press = 200 * time.Millisecond
	b := p.create(t, "hall", &cfg)
	defer b.Close()

	samples := script(gpio.Hold(false, 1), gpio.Hold(true, 30))
	p.run(t, gpio.NewFakeReader(samples), b, len(samples))
	p.flush(t)

	var i int
	for i = range p.publisher.Events {
		if p.publisher.Events[i].Type == logic.EventPressStart {
			break
		}
	}
	if p.publisher.Events[i].Type != logic.EventPressStart {
		t.Fatalf("no PRESS_START in %v", p.publisher.EventTypes())
	}
	if p.publisher.Topics[i] != "home/buttons/hall/events" {
		t.Errorf("topic: got %q", p.publisher.Topics[i])
	}

	var payload struct {
		Button struct {
			ID              string `json:"id"`
			Event           string `json:"event"`
			Timestamp       string `json:"timestamp"`
			PressCounter    *int   `json:"press_counter"`
			PressDurationMs *int64 `json:"press_duration_ms"`
		} `json:"button"`
	}
	if err := json.Unmarshal(p.publisher.Payloads[i], &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Button.ID != "hall" || payload.Button.Event != "PRESS_START" {
		t.Errorf("unexpected payload: %s", p.publisher.Payloads[i])
	}
	if payload.Button.PressCounter == nil || *payload.Button.PressCounter != 1 {
		t.Errorf("press_counter: got %v", payload.Button.PressCounter)
	}
	// Down at 20ms, press start once more than 200ms have passed.
	if payload.Button.PressDurationMs == nil || *payload.Button.PressDurationMs != 210 {
		t.Errorf("press_duration_ms: got %v", payload.Button.PressDurationMs)
	}
	if _, err := time.Parse(time.RFC3339, payload.Button.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", payload.Button.Timestamp, err)
	}
}

func TestIntegrationStartupThenShutdown(t *testing.T) {
	p := newPipeline()
	b := p.create(t, "hall", nil)

	snap := p.tracker.Snapshot()
	if err := p.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		t.Fatalf("publish startup: %v", err)
	}

	samples := script(gpio.Hold(false, 1), gpio.Hold(true, 8), gpio.Hold(false, 20))
	p.run(t, gpio.NewFakeReader(samples), b, len(samples))

	snap = p.tracker.Snapshot()
	b.Close()
	p.flush(t)
	if err := p.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"),
	}); err != nil {
		t.Fatalf("publish shutdown: %v", err)
	}

	if len(p.publisher.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(p.publisher.SystemEvents))
	}
	for i, want := range []string{"STARTUP", "SHUTDOWN"} {
		var envelope map[string]map[string]interface{}
		if err := json.Unmarshal(p.publisher.SystemPayloads[i], &envelope); err != nil {
			t.Fatalf("%s: invalid JSON: %v", want, err)
		}
		if envelope["status"]["event"] != want {
			t.Errorf("payload %d: got event %v, want %s", i, envelope["status"]["event"], want)
		}
	}

	types := p.publisher.EventTypes()
	if types[0] != logic.EventCreated || types[len(types)-1] != logic.EventClosed {
		t.Errorf("expected CREATED first and CLOSED last, got %v", types)
	}
	if p.registry.Len() != 0 {
		t.Errorf("expected empty registry after close, got %d", p.registry.Len())
	}
}

// TestIntegrationHIDReports runs encoded HID reports through the parser and
// router into two buttons.
func TestIntegrationHIDReports(t *testing.T) {
	p := newPipeline()
	left := p.create(t, "left", nil)
	right := p.create(t, "right", nil)
	defer left.Close()
	defer right.Close()

	router := hid.NewRouter()
	if err := router.Bind(0, left); err != nil {
		t.Fatalf("bind left: %v", err)
	}
	if err := router.Bind(1, right); err != nil {
		t.Fatalf("bind right: %v", err)
	}

	feed := func(kind hid.Kind, mask uint16) {
		t.Helper()
		rep, err := hid.ParseReport(hid.Report{Kind: kind, Mask: mask}.Encode())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		router.Dispatch(rep)
	}
	fire := func(from, to int) {
		for i := from; i <= to; i++ {
			p.loop.Fire(p.start.Add(time.Duration(i) * p.tick))
		}
	}

	// Both down, left up after 80ms, right held into a long-press.
	feed(hid.KindPress, 0b11)
	fire(1, 8)
	feed(hid.KindRelease, 0b01)
	fire(9, 320)
	p.flush(t)

	var leftTypes, rightTypes []logic.EventType
	for _, ev := range p.publisher.Events {
		if ev.Type == logic.EventCreated {
			continue
		}
		switch ev.ButtonID {
		case "left":
			leftTypes = append(leftTypes, ev.Type)
		case "right":
			rightTypes = append(rightTypes, ev.Type)
		}
	}
	assertTypes(t, leftTypes, []logic.EventType{logic.EventReleased, logic.EventReleased, logic.EventClick})
	assertTypes(t, rightTypes, []logic.EventType{logic.EventPressStart, logic.EventPressRepeat})
	if !right.IsPressed() {
		t.Error("expected right still pressed")
	}
}
