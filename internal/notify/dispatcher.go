package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(e Event)
}

const deliveryTimeout = 10 * time.Second

// Dispatcher fans events out to its sinks from a buffered queue drained by a pool of workers.
// Delivery failures are logged and never retried.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	workers int
	logger  *zap.Logger

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher. Call Start to begin delivery.
func NewDispatcher(sinks []Sink, workers, bufferSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, bufferSize),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. They exit when Close is called and the queue is drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for e := range d.queue {
				d.deliver(ctx, e)
			}
			d.logger.Debug("Notification worker stopped", zap.Int("worker", id))
		}(i)
	}
	d.logger.Info("Notification dispatcher started", zap.Int("workers", d.workers), zap.Int("sinks", len(d.sinks)))
}

// Emit queues an event. When the queue is full the event is dropped.
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Dispatcher closed, dropping event", zap.String("type", string(e.Type)), zap.String("item_id", e.ItemID))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.logger.Warn("Notification queue full, dropping event", zap.String("type", string(e.Type)), zap.String("item_id", e.ItemID))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, s := range d.sinks {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		if err := s.Deliver(dctx, e); err != nil {
			d.logger.Error("Failed to deliver notification",
				zap.String("sink", s.Name()),
				zap.String("type", string(e.Type)),
				zap.String("item_id", e.ItemID),
				zap.Error(err),
			)
		}
		cancel()
	}
}
