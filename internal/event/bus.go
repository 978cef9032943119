package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Listener consumes lifecycle events. Handle is invoked on its own goroutine
// per event; implementations must be safe for concurrent use.
type Listener interface {
	Handle(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// Bus fans events out to registered listeners, fire-and-forget. A panicking
// listener is recovered and logged; it cannot abort the pipeline or starve
// other listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{logger: logger}
}

// Register adds a listener. Registration order is preserved but delivery is
// concurrent, so listeners must not rely on relative ordering.
func (b *Bus) Register(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish stamps the event and dispatches it to every listener.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		b.wg.Add(1)
		go func(l Listener) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.ErrorContext(ctx, "event listener panicked",
						"event_type", ev.Type,
						"panic", r,
					)
				}
			}()
			l.Handle(ctx, ev)
		}(l)
	}
}

// Drain blocks until all in-flight deliveries finish. Used by shutdown and
// tests; new publishes during a drain are not prevented.
func (b *Bus) Drain() {
	b.wg.Wait()
}
