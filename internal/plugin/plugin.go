package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reachcheck/internal/event"
	"reachcheck/internal/models"
)

// Handler is the fixed capability interface plugins implement. Hooks are
// advisory: returned errors and panics are reported as plugin_error events
// and never abort the pipeline.
type Handler interface {
	Name() string
	// OnRegister fires after the registration stage settles.
	OnRegister(ctx context.Context, accountID string, registered bool) error
	// OnPostValidation fires after a result is finalized, before it is
	// returned to the caller. The result must be treated as read-only.
	OnPostValidation(ctx context.Context, result *models.ValidationResult) error
}

// Registry holds registered handlers and invokes them per lifecycle stage
// with per-call failure isolation.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	bus      *event.Bus
	logger   *slog.Logger
}

func NewRegistry(bus *event.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{bus: bus, logger: logger}
}

// Register adds a handler. Handlers run in registration order.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// FireRegister invokes every handler's OnRegister hook.
func (r *Registry) FireRegister(ctx context.Context, accountID string, registered bool) {
	for _, h := range r.snapshot() {
		r.invoke(ctx, h, "on_register", func() error {
			return h.OnRegister(ctx, accountID, registered)
		})
	}
}

// FirePostValidation invokes every handler's OnPostValidation hook.
func (r *Registry) FirePostValidation(ctx context.Context, result *models.ValidationResult) {
	for _, h := range r.snapshot() {
		r.invoke(ctx, h, "on_post_validation", func() error {
			return h.OnPostValidation(ctx, result)
		})
	}
}

func (r *Registry) snapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// invoke runs one hook with panic recovery and converts any failure into a
// plugin_error event.
func (r *Registry) invoke(ctx context.Context, h Handler, hook string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.report(ctx, h, hook, fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := fn(); err != nil {
		r.report(ctx, h, hook, err)
	}
}

func (r *Registry) report(ctx context.Context, h Handler, hook string, err error) {
	r.logger.WarnContext(ctx, "plugin hook failed",
		"plugin", h.Name(),
		"hook", hook,
		"error", err,
	)
	if r.bus != nil {
		r.bus.Publish(ctx, event.Event{
			Type:   event.TypePluginError,
			Error:  err.Error(),
			Detail: fmt.Sprintf("%s.%s", h.Name(), hook),
		})
	}
}
