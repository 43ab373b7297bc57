// ABOUTME: Buffered inbound queue that decouples event producers from the Handler
// ABOUTME: Deliver never blocks; Run consumes until its context is cancelled

package geofence

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// DefaultQueueSize is the dispatcher buffer used when none is configured.
const DefaultQueueSize = 64

// EventHandler processes a single event.
type EventHandler interface {
	Handle(ctx context.Context, ev Event)
}

// Dispatcher queues events for asynchronous handling.
type Dispatcher struct {
	queue   chan Event
	handler EventHandler
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with the given buffer size.
// Pass nil logger for default.
func NewDispatcher(handler EventHandler, size int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		queue:   make(chan Event, size),
		handler: handler,
		logger:  logger.With("component", "geofence-dispatcher"),
	}
}

// Deliver enqueues an event. It returns false and drops the event when the
// queue is full.
func (d *Dispatcher) Deliver(ev Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event",
			"transition", ev.Transition,
			"regions", len(ev.RegionIDs))
		return false
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run handles queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", "pending", len(d.queue))
			return
		case ev := <-d.queue:
			d.handler.Handle(ctx, ev)
		}
	}
}
