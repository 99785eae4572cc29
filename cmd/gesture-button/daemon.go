package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/button"
	"github.com/sweeney/gesture-button/internal/config"
	"github.com/sweeney/gesture-button/internal/gpio"
	"github.com/sweeney/gesture-button/internal/hid"
	"github.com/sweeney/gesture-button/internal/logic"
	"github.com/sweeney/gesture-button/internal/mqtt"
	"github.com/sweeney/gesture-button/internal/status"
)

// reportSource is a HID device delivering button reports.
type reportSource interface {
	ReadReports(ctx context.Context, fn func(hid.Report), onError func(error)) error
	Close() error
}

// sources opens raw inputs. Tests replace the hardware openers with fakes.
type sources struct {
	level func(b config.Button) (gpio.Reader, error)
	edges func(b config.Button, sink gpio.Sink) (io.Closer, error)
	hid   func(c config.HIDConfig) (reportSource, error)
}

func hardwareSources() sources {
	return sources{
		level: func(b config.Button) (gpio.Reader, error) {
			if b.Driver == config.DriverPeriph {
				r, err := gpio.NewPeriphReader(b.PinName, b.ActiveLow)
				if err != nil {
					return nil, err
				}
				return r, nil
			}
			r, err := gpio.NewRealReader(b.Chip, b.Pin, b.ActiveLow)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		edges: func(b config.Button, sink gpio.Sink) (io.Closer, error) {
			r, err := gpio.WatchEdges(b.Chip, b.Pin, b.ActiveLow, b.KernelDebounce(), sink)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		hid: func(c config.HIDConfig) (reportSource, error) {
			dev, err := hid.Open(c.VendorID, c.ProductID)
			if err != nil {
				return nil, err
			}
			return dev, nil
		},
	}
}

// poller feeds a polled level into a button on every tick.
type poller struct {
	id     string
	reader gpio.Reader
	sink   gpio.Sink
}

// fleet is the set of buttons and raw inputs built from one config.
type fleet struct {
	buttons []*button.Button
	pollers []poller
	closers []io.Closer
	stopHID context.CancelFunc
}

// close releases inputs first so no raw level reaches a closed button.
func (f *fleet) close(logger *log.Entry) {
	if f == nil {
		return
	}
	if f.stopHID != nil {
		f.stopHID()
	}
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			logger.WithError(err).Warn("close input")
		}
	}
	for _, p := range f.pollers {
		if err := p.reader.Close(); err != nil {
			logger.WithError(err).WithField("button", p.id).Warn("close reader")
		}
	}
	for _, b := range f.buttons {
		b.Close()
	}
}

type daemon struct {
	src        sources
	sched      *button.TickLoop
	registry   *button.MemoryRegistry
	notifier   button.Notifier
	publisher  *mqtt.Notifier
	tracker    *status.Tracker
	log        *log.Entry
	configPath string

	cfg   *config.Config
	fleet *fleet
}

// notifyFlushTimeout bounds how long shutdown waits for queued events.
const notifyFlushTimeout = 5 * time.Second

func newDaemon(src sources, tracker *status.Tracker, pub mqtt.Publisher, logger *log.Entry, tick time.Duration) *daemon {
	queued := mqtt.NewNotifier(pub, logger, mqtt.DefaultQueueSize)
	return &daemon{
		src:       src,
		sched:     button.NewTickLoop(tick),
		registry:  button.NewMemoryRegistry(),
		notifier:  button.Broadcast(logEvents(logger), trackStatus(tracker), queued),
		publisher: queued,
		tracker:   tracker,
		log:       logger,
	}
}

// logEvents logs gesture events; lifecycle events are logged by the button.
func logEvents(logger *log.Entry) button.Notifier {
	return button.NotifierFunc(func(_ *button.Button, ev logic.Event) {
		switch ev.Type {
		case logic.EventCreated, logic.EventClosed:
			return
		case logic.EventPressStart, logic.EventPressRepeat, logic.EventPressEnd:
			logger.Printf("event: %s %s (counter=%d held=%v)", ev.ButtonID, ev.Type, ev.PressCounter, ev.PressDuration)
		default:
			logger.Printf("event: %s %s", ev.ButtonID, ev.Type)
		}
	})
}

func trackStatus(tr *status.Tracker) button.Notifier {
	return button.NotifierFunc(func(_ *button.Button, ev logic.Event) {
		if ev.Type != logic.EventCreated && ev.Type != logic.EventClosed {
			tr.Record(ev)
		}
	})
}

// buttonIDs lists the ids configured in cfg, which may be nil.
func buttonIDs(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	ids := make([]string, 0, len(cfg.Buttons))
	for _, bc := range cfg.Buttons {
		ids = append(ids, bc.ID)
	}
	return ids
}

// rollback closes a partly built fleet. Status keeps only the buttons of the
// config that was running before.
func (d *daemon) rollback(f *fleet) {
	f.close(d.log)
	d.tracker.Retain(buttonIDs(d.cfg)...)
}

// build creates every configured button and attaches its input. On error
// everything built so far is closed again.
func (d *daemon) build(cfg *config.Config) error {
	f := &fleet{}
	var router *hid.Router

	for _, bc := range cfg.Buttons {
		timing := cfg.Timing(bc)
		b, err := button.Create(bc.ID, &timing, button.Options{
			Scheduler:  d.sched,
			Registry:   d.registry,
			Notifier:   d.notifier,
			TickPeriod: cfg.Tick(),
			Logger:     d.log,
		})
		if err != nil {
			d.rollback(f)
			return err
		}
		f.buttons = append(f.buttons, b)
		d.tracker.AddButton(bc.ID, bc.Driver)

		switch {
		case bc.Driver == config.DriverHID:
			if router == nil {
				router = hid.NewRouter()
			}
			err = router.Bind(bc.Index, b)
		case bc.Driver == config.DriverGPIOCDev && bc.Edges:
			var c io.Closer
			if c, err = d.src.edges(bc, b); err == nil {
				f.closers = append(f.closers, c)
			}
		default:
			var r gpio.Reader
			if r, err = d.src.level(bc); err == nil {
				f.pollers = append(f.pollers, poller{id: bc.ID, reader: r, sink: b})
			}
		}
		if err != nil {
			d.rollback(f)
			return fmt.Errorf("open input for %s (%s): %w", bc.ID, describe(bc), err)
		}
	}

	if router != nil {
		dev, err := d.src.hid(cfg.HID)
		if err != nil {
			d.rollback(f)
			return fmt.Errorf("open hid device 0x%04X:0x%04X: %w", cfg.HID.VendorID, cfg.HID.ProductID, err)
		}
		f.closers = append(f.closers, dev)
		f.stopHID = d.readHID(dev, router)
	}

	d.cfg = cfg
	d.fleet = f
	d.tracker.Retain(buttonIDs(cfg)...)
	return nil
}

func (d *daemon) readHID(dev reportSource, router *hid.Router) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	logger := d.log.WithField("component", "hid")
	go func() {
		err := dev.ReadReports(ctx, func(r hid.Report) {
			if router.Dispatch(r) == 0 {
				logger.Debugf("%s report for unbound buttons %v", r.Kind, r.Buttons())
			}
		}, func(err error) {
			logger.WithError(err).Debug("skipping malformed report")
		})
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("hid input stopped")
		}
	}()
	return cancel
}

// rebuild replaces the running buttons with those of cfg. If cfg cannot be
// built the previous config is restored.
func (d *daemon) rebuild(cfg *config.Config) error {
	old := d.cfg
	d.fleet.close(d.log)
	d.fleet = nil

	err := d.build(cfg)
	if err == nil {
		d.tracker.SetConfig(statusConfig(cfg, d.configPath))
		return nil
	}
	if old == nil {
		return err
	}
	if rerr := d.build(old); rerr != nil {
		return fmt.Errorf("%w (restoring previous config also failed: %v)", err, rerr)
	}
	return err
}

// close releases the fleet, stops the tick loop for good and waits for the
// queued events, CLOSED included, to reach the publisher.
func (d *daemon) close() {
	d.fleet.close(d.log)
	d.fleet = nil
	d.tracker.Retain()
	d.sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), notifyFlushTimeout)
	defer cancel()
	if err := d.publisher.Close(ctx); err != nil {
		d.log.WithError(err).Warn("unpublished events left at shutdown")
	}
}

// poll feeds every polled level into its button.
func (d *daemon) poll() {
	if d.fleet == nil {
		return
	}
	for _, p := range d.fleet.pollers {
		if err := gpio.Poll(p.reader, p.sink); err != nil {
			d.log.WithField("button", p.id).Printf("gpio read error: %v", err)
		}
	}
}

func (d *daemon) refreshStatus(mqttStatus mqtt.ConnectionStatus) {
	for _, b := range d.registry.All() {
		d.tracker.Refresh(b)
	}
	if mqttStatus != nil {
		d.tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// resetButton backs the HTTP reset endpoint.
func (d *daemon) resetButton(id string) error {
	b, err := d.registry.Get(id)
	if err != nil {
		return err
	}
	b.Reset()
	d.log.WithField("button", id).Info("reset by request")
	return nil
}

func runLoop(d *daemon, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, reload <-chan *config.Config) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// Snapshot before the buttons are closed and drop out of status.
			d.refreshStatus(mqttStatus)
			snap := d.tracker.Snapshot()
			d.close()

			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cfg := <-reload:
			t := now()
			reason := ""
			if err := d.rebuild(cfg); err != nil {
				log.WithError(err).Error("config reload failed")
				reason = "ERROR"
			} else {
				log.Printf("config reloaded: buttons=%d", len(cfg.Buttons))
			}

			d.refreshStatus(mqttStatus)
			snap := d.tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "RELOADED",
				Reason:     reason,
				RawPayload: status.FormatStatusEvent(snap, "RELOADED", reason),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish reload event: %v", err)
			}

		case <-tick:
			t := now()
			d.poll()
			d.sched.Fire(t)

			// Update status tracker for HTTP consumers
			d.refreshStatus(mqttStatus)

			// Check for heartbeat
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				snap := d.tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v buttons=%d", snap.Uptime().Truncate(time.Second), len(snap.Buttons))

				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
