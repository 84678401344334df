package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/logger"
)

// DefaultBuffer is the number of events queued before new ones are dropped.
const DefaultBuffer = 256

// deliveryTimeout bounds a single Notify call.
const deliveryTimeout = 10 * time.Second

// Dispatcher queues events and delivers them from one background goroutine.
// Delivery failures are logged and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	events   chan Event
	logger   *slog.Logger
	wg       sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewDispatcher creates a dispatcher and starts its delivery loop.
func NewDispatcher(n Notifier, buffer int, log *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{
		notifier: n,
		events:   make(chan Event, buffer),
		logger:   logger.OrDiscard(log),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notifier panicked",
				"type", event.Type,
				"target_id", event.TargetID,
				"panic", r,
			)
		}
	}()

	if err := d.notifier.Notify(ctx, event); err != nil {
		d.logger.Warn("notification delivery failed",
			"type", event.Type,
			"target_id", event.TargetID,
			logger.Err(err),
		)
	}
}

// Dispatch queues an event. It never blocks: when the buffer is full or the
// dispatcher is shut down the event is dropped.
func (d *Dispatcher) Dispatch(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	// The read lock is held through the send so Shutdown cannot close the
	// channel underneath it.
	d.shutdownMu.RLock()
	defer d.shutdownMu.RUnlock()

	if d.shutdown {
		return
	}

	select {
	case d.events <- event:
	default:
		d.logger.Error("notification queue full, dropping event",
			"type", event.Type,
			"target_id", event.TargetID,
		)
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered
// until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownMu.Lock()
	if d.shutdown {
		d.shutdownMu.Unlock()
		return nil
	}
	d.shutdown = true
	close(d.events)
	d.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification queue drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("notification drain timeout, some events may be lost")
		return ctx.Err()
	}
}
