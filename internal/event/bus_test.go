package event

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllListeners(t *testing.T) {
	bus := NewBus(nil)

	var a, b atomic.Int32
	bus.Register(ListenerFunc(func(_ context.Context, ev Event) {
		assert.Equal(t, TypeValidationCompleted, ev.Type)
		a.Add(1)
	}))
	bus.Register(ListenerFunc(func(_ context.Context, _ Event) {
		b.Add(1)
	}))

	bus.Publish(context.Background(), Event{Type: TypeValidationCompleted, Number: "123"})
	bus.Drain()

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestBusStampsIDAndTimestamp(t *testing.T) {
	bus := NewBus(nil)

	got := make(chan Event, 1)
	bus.Register(ListenerFunc(func(_ context.Context, ev Event) {
		got <- ev
	}))

	bus.Publish(context.Background(), Event{Type: TypeCacheHit})
	bus.Drain()

	ev := <-got
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.Timestamp.IsZero())
}

func TestBusIsolatesPanickingListener(t *testing.T) {
	bus := NewBus(nil)

	var survived atomic.Int32
	bus.Register(ListenerFunc(func(_ context.Context, _ Event) {
		panic("listener bug")
	}))
	bus.Register(ListenerFunc(func(_ context.Context, _ Event) {
		survived.Add(1)
	}))

	bus.Publish(context.Background(), Event{Type: TypeValidationError})
	bus.Drain()

	assert.Equal(t, int32(1), survived.Load(), "a faulty listener must not starve others")
}

func TestBusWithNoListeners(t *testing.T) {
	bus := NewBus(nil)
	bus.Publish(context.Background(), Event{Type: TypeBatchStarted})
	bus.Drain()
}
