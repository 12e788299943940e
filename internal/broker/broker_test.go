package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestHub_ReplaysLatest(t *testing.T) {
	h := NewHub[int]()
	h.Publish(1)
	h.Publish(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx)
	assert.Equal(t, 2, receive(t, ch))

	h.Publish(3)
	assert.Equal(t, 3, receive(t, ch))
}

func TestHub_SlowSubscriberSeesNewest(t *testing.T) {
	h := NewHub[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx)
	h.Publish("a")
	h.Publish("b")
	h.Publish("c")

	assert.Equal(t, "c", receive(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %q", v)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	h := NewHub[int]()
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.Subscribe(ctx)
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok)
	h.Publish(1) // must not panic on a closed channel
}

func TestHub_Close(t *testing.T) {
	h := NewHub[int]()
	ch := h.Subscribe(context.Background())

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late := h.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)

	h.Publish(5)
	_, has := h.Latest()
	assert.False(t, has)
}
