package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ruleforge/internal/ir"
)

// Subscriber receives the host events it subscribed to.
type Subscriber interface {
	SubscribedEventTypes() []ir.EventType
	Receive(ev ir.Event)
}

// Dispatcher fans events out to subscribers.
//
// Publish may be called from any goroutine. Events are delivered in order
// on the goroutine running Run. A subscriber that panics is logged and the
// dispatch loop carries on with the next subscriber.
type Dispatcher struct {
	queue  *Queue
	logger *slog.Logger

	mu   sync.RWMutex
	subs []Subscriber
}

// NewDispatcher creates a dispatcher with an empty queue.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{queue: NewQueue(), logger: logger}
}

// Subscribe registers a subscriber for the event types it names.
func (d *Dispatcher) Subscribe(s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, s)
}

// Publish queues an event. Returns false after Stop.
func (d *Dispatcher) Publish(ev ir.Event) bool {
	return d.queue.Enqueue(ev)
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Run delivers events until ctx is cancelled or Stop is called. Events
// queued before Stop are still delivered; on cancellation the rest are
// dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("event dispatcher starting")
	for {
		if ev, ok := d.queue.TryDequeue(); ok {
			d.deliver(ev)
			continue
		}

		select {
		case <-ctx.Done():
			d.queue.Close()
			d.logger.Debug("event dispatcher stopping: context cancelled")
			return ctx.Err()
		case <-d.queue.Wait():
			if d.queue.Closed() && d.queue.Len() == 0 {
				d.logger.Debug("event dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it is drained.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

func (d *Dispatcher) deliver(ev ir.Event) {
	d.mu.RLock()
	subs := append([]Subscriber(nil), d.subs...)
	d.mu.RUnlock()

	for _, s := range subs {
		if !subscribed(s, ev.Type) {
			continue
		}
		d.receive(s, ev)
	}
}

func (d *Dispatcher) receive(s Subscriber, ev ir.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event subscriber panicked",
				"event", ev.String(),
				"subscriber", fmt.Sprintf("%T", s),
				"panic", fmt.Sprint(r))
		}
	}()
	s.Receive(ev)
}

func subscribed(s Subscriber, t ir.EventType) bool {
	for _, st := range s.SubscribedEventTypes() {
		if st == t {
			return true
		}
	}
	return false
}
