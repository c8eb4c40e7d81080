package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/service"
)

// ErrQueueFull is returned when an event cannot be buffered.
var ErrQueueFull = errors.New("notification queue full")

const defaultQueueSize = 256

// NotificationWorker delivers notifications off the request path.
type NotificationWorker struct {
	svc    *service.NotificationService
	logger *zap.Logger
	queue  chan events.Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewNotificationWorker creates a worker with a bounded queue.
func NewNotificationWorker(svc *service.NotificationService, logger *zap.Logger, size int) *NotificationWorker {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &NotificationWorker{
		svc:    svc,
		logger: logger,
		queue:  make(chan events.Event, size),
	}
}

// StartNotificationWorker subscribes the worker and starts delivery.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, svc *service.NotificationService, logger *zap.Logger) *NotificationWorker {
	if svc == nil || dispatcher == nil {
		return nil
	}
	w := NewNotificationWorker(svc, logger, defaultQueueSize)
	w.Register(dispatcher)
	w.Start(ctx)
	return w
}

// Register subscribes the worker to every event the service handles.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	for _, eventType := range w.svc.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrQueueFull
	}
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the delivery goroutine.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				w.drain()
				return
			case event, ok := <-w.queue:
				if !ok {
					return
				}
				w.deliver(event)
			}
		}
	}()
}

// Stop closes the queue and waits for buffered events to be delivered.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case event, ok := <-w.queue:
			if !ok {
				return
			}
			w.deliver(event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(event events.Event) {
	// Delivery outlives the request that published the event.
	if err := w.svc.Handle(context.Background(), event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
