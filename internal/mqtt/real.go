package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/logic"
)

// DefaultBufferSize is how many messages are held while disconnected.
const DefaultBufferSize = 256

// publishTimeout bounds the wait for a broker acknowledgement.
const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// BufferSize bounds the replay buffer. Zero means DefaultBufferSize.
	BufferSize int
	Logger     *log.Entry
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client    paho.Client
	prefix    string
	log       *log.Entry
	connected atomic.Bool // set after the first successful connect
	timeout   time.Duration

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
// A SHUTDOWN/MQTT_DISCONNECT will is registered on the system topic.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := newPublisher(o)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(p.prefix), string(will), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(o Options) *RealPublisher {
	prefix := o.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	size := o.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := o.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &RealPublisher{
		prefix:  prefix,
		log:     logger.WithField("component", "mqtt"),
		buf:     newRingBuffer(size),
		timeout: publishTimeout,
	}
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{
		topic:   EventTopic(p.prefix, event.ButtonID),
		payload: payload,
	})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{
		topic:    SystemTopic(p.prefix),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	if n := p.Buffered(); n > 0 {
		p.log.Warnf("closing with %d unsent messages", n)
	}
	return nil
}

// publish sends m, or buffers it for replay when the connection is down.
// A message is either buffered or reported as failed, never both: a send
// that fails on an open connection may still be delivered by paho, so it
// is not replayed.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(m)
		return nil
	}
	err := p.send(p.client, m)
	if err == nil {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		p.log.WithError(err).Debug("connection dropped during publish, buffering")
		p.enqueue(m)
		return nil
	}
	return err
}

func (p *RealPublisher) send(c paho.Client, m bufferedMsg) error {
	token := c.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(m bufferedMsg) {
	p.mu.Lock()
	dropped := p.buf.push(m)
	n := p.buf.len()
	p.mu.Unlock()

	if dropped {
		p.log.Warnf("buffer full (%d messages), dropping oldest", n)
	}
}

// onConnect replays buffered messages and, on reconnects, announces
// RECONNECTED on the system topic.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	dropped := p.buf.dropped()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if len(pending) > 0 {
		p.log.Infof("connected, replaying %d buffered messages (%d dropped)", len(pending), dropped)
	}
	for i, m := range pending {
		if err := p.send(c, m); err != nil {
			p.log.WithError(err).Warn("replay failed, re-buffering")
			for _, rest := range pending[i:] {
				p.enqueue(rest)
			}
			return
		}
	}

	if !p.connected.Swap(true) {
		p.log.Info("connected")
		return
	}

	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
	if err != nil {
		return
	}
	if err := p.send(c, bufferedMsg{topic: SystemTopic(p.prefix), payload: payload, qos: 1}); err != nil {
		p.log.WithError(err).Warn("publish RECONNECTED failed")
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.WithError(err).Warn("connection lost, buffering until reconnect")
}
