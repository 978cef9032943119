package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reachcheck/internal/event"
	"reachcheck/internal/models"
)

type recordingHandler struct {
	name string
	mu   sync.Mutex

	registerCalls []string
	postCalls     []string

	registerErr error
	postPanic   bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) OnRegister(_ context.Context, accountID string, _ bool) error {
	h.mu.Lock()
	h.registerCalls = append(h.registerCalls, accountID)
	h.mu.Unlock()
	return h.registerErr
}

func (h *recordingHandler) OnPostValidation(_ context.Context, result *models.ValidationResult) error {
	if h.postPanic {
		panic("plugin bug")
	}
	h.mu.Lock()
	h.postCalls = append(h.postCalls, result.AccountID)
	h.mu.Unlock()
	return nil
}

func TestRegistryInvokesAllHandlers(t *testing.T) {
	reg := NewRegistry(nil, nil)
	first := &recordingHandler{name: "first"}
	second := &recordingHandler{name: "second"}
	reg.Register(first)
	reg.Register(second)

	reg.FireRegister(context.Background(), "123@s.messenger.net", true)

	assert.Equal(t, []string{"123@s.messenger.net"}, first.registerCalls)
	assert.Equal(t, []string{"123@s.messenger.net"}, second.registerCalls)
}

func TestRegistryIsolatesFailures(t *testing.T) {
	bus := event.NewBus(nil)
	var pluginErrors []event.Event
	var mu sync.Mutex
	bus.Register(event.ListenerFunc(func(_ context.Context, ev event.Event) {
		if ev.Type == event.TypePluginError {
			mu.Lock()
			pluginErrors = append(pluginErrors, ev)
			mu.Unlock()
		}
	}))

	reg := NewRegistry(bus, nil)
	faulty := &recordingHandler{name: "faulty", registerErr: errors.New("boom"), postPanic: true}
	healthy := &recordingHandler{name: "healthy"}
	reg.Register(faulty)
	reg.Register(healthy)

	result := models.NewValidationResult("123")
	result.AccountID = "123@s.messenger.net"

	reg.FireRegister(context.Background(), result.AccountID, true)
	reg.FirePostValidation(context.Background(), result)
	bus.Drain()

	// The healthy handler ran both hooks despite the faulty sibling.
	assert.Len(t, healthy.registerCalls, 1)
	assert.Len(t, healthy.postCalls, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pluginErrors, 2, "error return and panic both reported")
	assert.Contains(t, pluginErrors[0].Detail, "faulty")
}
