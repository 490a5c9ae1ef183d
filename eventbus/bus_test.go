package eventbus

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/apporbit/apporbit/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_BasicPubSub(t *testing.T) {
	bus := NewBus(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
		assert.Equal(t, "hello", msg.Data)
		assert.Equal(t, "topic", msg.Topic)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	assert.Eventually(t, func() bool { return called },
		time.Millisecond*100,
		time.Millisecond,
		"subscriber should have been called")
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(logging.EnsureLogger(t.Context()))

	var called []int
	var mu sync.Mutex
	for i := range 10 {
		bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "hello", msg.Data)
			called = append(called, i)
			return nil
		})
	}

	bus.Publish("topic", "hello")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		slices.Sort(called) // Execution order isn't guaranteed.
		return slices.Equal(called, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	},
		time.Millisecond*100,
		time.Millisecond,
		"subscribers should have been called")
}

func TestBus_QueueRoundRobin(t *testing.T) {
	bus := NewBus(logging.EnsureLogger(t.Context()))

	var mu sync.Mutex
	counts := make([]int, 2)
	for i := range 2 {
		bus.SubscribeQueue("jobs", func(ctx context.Context, msg *Message) error {
			mu.Lock()
			defer mu.Unlock()
			counts[i]++
			return nil
		})
	}

	for range 10 {
		bus.Enqueue("jobs", "work")
	}

	require.NoError(t, bus.Wait(t.Context(), time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, counts[0])
	assert.Equal(t, 5, counts[1])
}

func TestBus_Wait(t *testing.T) {
	bus := NewBus(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
		time.Sleep(time.Millisecond * 50)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	require.NoError(t, bus.Wait(t.Context(), time.Second))
	assert.True(t, called, "subscriber should have been called")
}

func TestBus_WaitTimeout(t *testing.T) {
	bus := NewBus(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
		time.Sleep(time.Millisecond * 50)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	require.Error(t, bus.Wait(t.Context(), time.Millisecond))
	assert.False(t, called, "subscriber should not have been called yet")
}

func TestBus_SubscriberError(t *testing.T) {
	ctx := logging.With(t.Context(), logging.NewDevLogger())
	bus := NewBus(ctx)

	bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
		return errors.New("subscriber error")
	})

	bus.Publish("topic", "hello")
	assert.NoError(t, bus.Wait(ctx, time.Second))
}

func TestBus_SubscriberPanic(t *testing.T) {
	ctx := logging.With(t.Context(), logging.NewDevLogger())
	bus := NewBus(ctx)

	bus.Subscribe("topic", func(ctx context.Context, msg *Message) error {
		panic("subscriber panic")
	})

	bus.Publish("topic", "hello")
	assert.NoError(t, bus.Wait(ctx, time.Second))
}
