package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	got1 := make(chan UsageEvent, 1)
	got2 := make(chan UsageEvent, 1)
	bus.Subscribe(func(ev UsageEvent) { got1 <- ev })
	bus.Subscribe(func(ev UsageEvent) { got2 <- ev })

	resourceID := uuid.New()
	bus.Publish(UsageEvent{Kind: UsageStarted, ResourceID: resourceID})

	for _, ch := range []chan UsageEvent{got1, got2} {
		select {
		case ev := <-ch:
			assert.Equal(t, UsageStarted, ev.Kind)
			assert.Equal(t, resourceID, ev.ResourceID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	require.NotPanics(t, func() {
		bus.Publish(UsageEvent{Kind: UsageEnded, ResourceID: uuid.New()})
	})
}

func TestBusSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	release := make(chan struct{})
	bus.Subscribe(func(ev UsageEvent) { <-release })

	done := make(chan struct{})
	go func() {
		bus.Publish(UsageEvent{Kind: UsageStarted, ResourceID: uuid.New()})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on subscriber")
	}
	close(release)
}
