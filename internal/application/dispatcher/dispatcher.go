package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
)

// Dispatcher routes workflow events to registered handlers
type Dispatcher interface {
	// Subscribe registers a handler with an auto-generated name
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler under a name
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes a handler by name
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs handlers in registration order and returns the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs every handler in its own goroutine and does not wait.
	// Handlers outlive the caller's context cancellation.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Stats reports dispatcher state for health checks
	Stats() Stats

	// Close stops accepting events and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	asyncTimeout time.Duration

	wg       sync.WaitGroup
	inFlight atomic.Int64
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithAsyncTimeout bounds how long one async handler may run
func WithAsyncTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.asyncTimeout = timeout
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:     make(map[event.Type][]HandlerInfo),
		asyncTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("handler-%d", len(d.handlers[eventType]))
	d.mu.RUnlock()
	d.SubscribeNamed(eventType, name, handler)
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})
	d.mu.Unlock()

	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	handlers := d.handlers[eventType]
	kept := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	d.handlers[eventType] = kept
	d.mu.Unlock()

	d.logInfo("Handler unregistered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	handlers := d.snapshot(evt.Type)
	d.logInfo("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"requisition_id", evt.RequisitionID,
		"handler_count", len(handlers),
	)

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logError("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}

	handlers := d.snapshot(evt.Type)
	d.logInfo("Dispatching event asynchronously",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"requisition_id", evt.RequisitionID,
		"handler_count", len(handlers),
	)

	// The request that raised the event usually finishes before its handlers do.
	detached := context.WithoutCancel(ctx)

	for _, info := range handlers {
		d.wg.Add(1)
		d.inFlight.Add(1)
		go func(h HandlerInfo) {
			defer d.wg.Done()
			defer d.inFlight.Add(-1)

			hctx, cancel := context.WithTimeout(detached, d.asyncTimeout)
			defer cancel()

			if err := d.safeExecute(hctx, evt, h); err != nil {
				d.logError("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", h.Name,
					"error", err,
				)
			}
		}(info)
	}
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]HandlerInfo, len(d.handlers[eventType]))
	for i, h := range d.handlers[eventType] {
		result[i] = HandlerInfo{
			Name:        h.Name,
			EventType:   h.EventType,
			Description: h.Description,
		}
	}
	return result
}

func (d *eventDispatcher) Stats() Stats {
	d.mu.RLock()
	count := 0
	for _, hs := range d.handlers {
		count += len(hs)
	}
	d.mu.RUnlock()

	return Stats{
		Closed:   d.closed.Load(),
		InFlight: d.inFlight.Load(),
		Handlers: count,
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.logInfo("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.logInfo("Dispatcher closed")

	return nil
}

func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

// safeExecute runs a handler and converts a panic into an error
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"panic", r,
			)
		}
	}()

	return info.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
