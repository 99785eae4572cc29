package mqtt

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gesture-button/internal/button"
	"github.com/sweeney/gesture-button/internal/logic"
)

// DefaultQueueSize is how many events may wait for the publisher goroutine.
const DefaultQueueSize = 64

// Notifier is a button.Notifier that hands events to a publisher goroutine,
// so a slow or stalled broker never holds up a button's tick. Events that
// arrive while the queue is full are dropped and logged.
type Notifier struct {
	pub   Publisher
	log   *log.Entry
	queue chan logic.Event
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ button.Notifier = (*Notifier)(nil)

// NewNotifier starts a notifier publishing to pub. A size of 0 or less
// selects DefaultQueueSize.
func NewNotifier(pub Publisher, logger *log.Entry, size int) *Notifier {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	n := &Notifier{
		pub:   pub,
		log:   logger,
		queue: make(chan logic.Event, size),
		done:  make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues ev for publishing. It never blocks.
func (n *Notifier) Notify(_ *button.Button, ev logic.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		if n.dropped.Add(1) == 1 {
			n.log.WithFields(log.Fields{
				"button": ev.ButtonID,
				"event":  ev.Type,
			}).Warn("mqtt: event queue full, dropping events")
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events and waits until the queued ones have been
// handed to the publisher, or until ctx is done. It is safe to call more
// than once.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for ev := range n.queue {
		if err := n.pub.Publish(ev); err != nil {
			n.log.WithError(err).WithFields(log.Fields{
				"button": ev.ButtonID,
				"event":  ev.Type,
			}).Warn("mqtt: publish failed")
		}
	}
}
