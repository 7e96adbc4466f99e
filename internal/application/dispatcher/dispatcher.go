package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/hr-approval/internal/domain/event"
)

// ErrClosed is returned once the dispatcher has been shut down
var ErrClosed = errors.New("dispatcher is closed")

// Handler processes one request event
type Handler func(ctx context.Context, evt *event.Event) error

// Dispatcher fans request events out to subscribed handlers in the background.
// Publishers never see handler failures.
type Dispatcher interface {
	// Subscribe registers a named handler. Subscribing a name twice replaces
	// the earlier handler.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Publish runs every handler of the event's type on its own goroutine.
	// Handlers run on a context detached from the caller's cancellation.
	Publish(ctx context.Context, evt *event.Event)

	// Handlers returns the subscribed handler names in registration order
	Handlers(eventType event.Type) []string

	// Close stops accepting events and waits for running handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	closed bool
	wg     sync.WaitGroup

	logger  Logger
	slots   chan struct{}
	timeout time.Duration
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithHandlerTimeout bounds each handler invocation
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.timeout = timeout
	}
}

// WithMaxConcurrency caps the number of handlers running at once. Extra
// handlers wait for a free slot.
func WithMaxConcurrency(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs:   make(map[event.Type][]subscription),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = nopLogger{}
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subs[eventType]
	for i := range subs {
		if subs[i].name == name {
			subs[i].handler = handler
			return
		}
	}
	d.subs[eventType] = append(subs, subscription{name: name, handler: handler})
	d.logger.Info("Handler subscribed", "event_type", eventType, "handler", name)
}

func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) {
	// Holding the read lock across wg.Add keeps Close from waiting on a
	// counter that is still growing
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Error("Dropping event",
			"error", ErrClosed,
			"event_type", evt.Type,
			"request_type", evt.RequestType,
			"request_id", evt.RequestID,
		)
		return
	}

	subs := d.subs[evt.Type]
	if len(subs) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(len(subs))
	for _, sub := range subs {
		go d.run(detached, evt, sub)
	}
}

func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) {
	defer d.wg.Done()

	if d.slots != nil {
		d.slots <- struct{}{}
		defer func() { <-d.slots }()
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := invoke(ctx, evt, sub.handler)
	if err == nil {
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", d.timeout, err)
	}
	d.logger.Error("Event handler failed",
		"error", err,
		"handler", sub.name,
		"event_type", evt.Type,
		"event_id", evt.ID,
		"correlation_id", evt.CorrelationID,
		"request_type", evt.RequestType,
		"request_id", evt.RequestID,
		"elapsed", time.Since(start),
	)
}

// invoke converts a handler panic into an error
func invoke(ctx context.Context, evt *event.Event, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, evt)
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, sub := range d.subs[eventType] {
		names = append(names, sub.name)
	}
	return names
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Dispatcher closed")
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
