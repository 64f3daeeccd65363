package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscyril/mileage_mafia/api"
)

func TestPublishReachesTypedSubscriber(t *testing.T) {
	bus := NewEventBus()
	blocked := bus.Subscribe(api.EventAudioBlocked)
	ended := bus.Subscribe(api.EventTrackEnded)

	bus.Publish(api.AudioEvent{Type: api.EventAudioBlocked})

	require.Len(t, blocked, 1)
	assert.Len(t, ended, 0)
	ev := <-blocked
	assert.Equal(t, api.EventAudioBlocked, ev.Type)
}

func TestSubscribeSeveralTypes(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(api.EventTrackStarted, api.EventTrackEnded)

	bus.Publish(api.AudioEvent{Type: api.EventTrackStarted})
	bus.Publish(api.AudioEvent{Type: api.EventPositionUpdate})
	bus.Publish(api.AudioEvent{Type: api.EventTrackEnded})

	assert.Len(t, ch, 2)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(api.EventPositionUpdate)

	for i := 0; i < 3*subscriberBuffer; i++ {
		bus.Publish(api.AudioEvent{Type: api.EventPositionUpdate, Payload: i})
	}
	assert.Len(t, ch, cap(ch))
	first := <-ch
	assert.Equal(t, 0, first.Payload, "oldest events are kept, newest dropped")
}

func TestSubscribeEverythingAndClose(t *testing.T) {
	bus := NewEventBus()
	all := bus.Subscribe()

	bus.Publish(api.AudioEvent{Type: api.EventDesync})
	bus.Publish(api.AudioEvent{Type: api.EventStateChange})
	assert.Len(t, all, 2)

	bus.Close()
	bus.Close()
	<-all
	<-all
	_, ok := <-all
	assert.False(t, ok)

	assert.NotPanics(t, func() { bus.Publish(api.AudioEvent{Type: api.EventError}) })
	_, ok = <-bus.Subscribe()
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Publish(api.AudioEvent{Type: api.EventError})
	})
}
