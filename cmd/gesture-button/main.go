// Command gesture-button classifies push-button gestures (click, double-click,
// long-press) from GPIO or USB HID inputs and publishes them to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/config"
	"github.com/sweeney/gesture-button/internal/mqtt"
	"github.com/sweeney/gesture-button/internal/status"
	"github.com/sweeney/gesture-button/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/gesture-button/config.yaml", "YAML config file")
	tick := flag.Duration("tick", config.DefaultTickMs*time.Millisecond, "Tick period (overrides tick_ms)")
	broker := flag.String("broker", config.DefaultBroker, "MQTT broker address (overrides mqtt.broker)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval, 0 to disable (overrides heartbeat_ms)")
	httpAddr := flag.String("http", config.DefaultHTTP, "HTTP status address, empty to disable (overrides http)")
	verbose := flag.Bool("verbose", false, "Log every state transition")
	printState := flag.Bool("print-state", false, "Print current button levels and exit")

	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	// Only flags given on the command line override the file.
	var ov overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tick":
			ov.tick = tick
		case "broker":
			ov.broker = broker
		case "heartbeat":
			ov.heartbeat = heartbeat
		case "http":
			ov.http = httpAddr
		}
	})

	if err := run(*configPath, ov, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// overrides holds command-line values that take precedence over the config
// file, including after a reload.
type overrides struct {
	tick      *time.Duration
	broker    *string
	heartbeat *time.Duration
	http      *string
}

func (o overrides) apply(cfg *config.Config) {
	if o.tick != nil && *o.tick > 0 {
		cfg.TickMs = int(o.tick.Milliseconds())
	}
	if o.broker != nil {
		cfg.MQTT.Broker = *o.broker
	}
	if o.heartbeat != nil {
		ms := o.heartbeat.Milliseconds()
		cfg.HeartbeatMs = &ms
	}
	if o.http != nil {
		cfg.HTTP = *o.http
	}
}

func run(configPath string, ov overrides, printState bool) error {
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer watcher.Stop()

	cfg := watcher.Get()
	ov.apply(cfg)

	// Print state mode
	if printState {
		return printLevels(os.Stdout, cfg, hardwareSources())
	}

	logger := log.NewEntry(log.StandardLogger())

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		BufferSize:  cfg.MQTT.BufferSize,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, configPath))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := newDaemon(hardwareSources(), tracker, publisher, logger, cfg.Tick())
	d.configPath = configPath
	if err := d.build(cfg); err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" && cfg.HTTP != "off" {
		srv := web.New(cfg.HTTP, tracker, web.ControllerFunc(d.resetButton))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: buttons=%d tick=%v broker=%s heartbeat=%v", len(cfg.Buttons), cfg.Tick(), cfg.MQTT.Broker, cfg.Heartbeat())

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reloadCh := make(chan *config.Config, 1)
	watcher.OnReload(func(c *config.Config) {
		ov.apply(c)
		select {
		case reloadCh <- c:
		default:
			log.Warn("config reload already pending, ignoring change")
		}
	})
	watcher.Start()

	return runLoop(d, publisher, publisher, cfg.Heartbeat(), time.Now, ticker.C, sigCh, reloadCh)
}

func statusConfig(cfg *config.Config, path string) status.Config {
	prefix := cfg.MQTT.TopicPrefix
	if prefix == "" {
		prefix = mqtt.DefaultTopicPrefix
	}
	return status.Config{
		TickMs:      int64(cfg.TickMs),
		HeartbeatMs: cfg.Heartbeat().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: prefix,
		HTTPPort:    cfg.HTTP,
		ConfigPath:  path,
	}
}

// printLevels reads each polled button once. Edge-watched and HID buttons
// have no level to read without starting the daemon.
func printLevels(w io.Writer, cfg *config.Config, src sources) error {
	for _, b := range cfg.Buttons {
		if b.Driver == config.DriverHID || b.Edges {
			fmt.Fprintf(w, "%s: n/a (%s)\n", b.ID, describe(b))
			continue
		}
		r, err := src.level(b)
		if err != nil {
			return fmt.Errorf("open %s: %w", b.ID, err)
		}
		pressed, err := r.Read()
		r.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", b.ID, err)
		}
		fmt.Fprintf(w, "%s: %s\n", b.ID, levelString(pressed))
	}
	return nil
}

func describe(b config.Button) string {
	switch {
	case b.Driver == config.DriverHID:
		return fmt.Sprintf("hid index %d", b.Index)
	case b.Driver == config.DriverPeriph:
		return "periph " + b.PinName
	case b.Edges:
		return fmt.Sprintf("%s line %d, edges", b.Chip, b.Pin)
	default:
		return fmt.Sprintf("%s line %d", b.Chip, b.Pin)
	}
}

func levelString(pressed bool) string {
	if pressed {
		return "DOWN"
	}
	return "UP"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
