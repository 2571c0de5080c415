package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBus(t *testing.T) *EventBus {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	eb := NewEventBus(logger)
	t.Cleanup(eb.Stop)
	return eb
}

func TestPublishReachesSubscriber(t *testing.T) {
	eb := testBus(t)

	received := make(chan Event, 1)
	eb.Subscribe(EventPayment, func(event Event) {
		received <- event
	})

	eb.Publish(Event{Type: EventPayment, Payload: map[string]interface{}{"agentId": int64(1)}})

	select {
	case event := <-received:
		assert.Equal(t, EventPayment, event.Type)
		assert.Equal(t, int64(1), event.Payload["agentId"])
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestSubscriberOnlySeesItsType(t *testing.T) {
	eb := testBus(t)

	var payments atomic.Int64
	eb.Subscribe(EventPayment, func(Event) { payments.Add(1) })

	done := make(chan struct{}, 1)
	eb.Subscribe(EventSlash, func(Event) { done <- struct{}{} })

	eb.Publish(Event{Type: EventStake})
	eb.Publish(Event{Type: EventSlash})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("slash event never delivered")
	}
	assert.Equal(t, int64(0), payments.Load())
}

func TestSubscribeAllSeesEveryKind(t *testing.T) {
	eb := testBus(t)

	received := make(chan EventType, len(AllEventTypes))
	eb.SubscribeAll(func(event Event) {
		received <- event.Type
	})

	for _, kind := range AllEventTypes {
		eb.Publish(Event{Type: kind})
	}

	seen := make(map[EventType]bool)
	for range AllEventTypes {
		select {
		case kind := <-received:
			seen[kind] = true
		case <-time.After(2 * time.Second):
			t.Fatal("missing events")
		}
	}
	require.Len(t, seen, len(AllEventTypes))
}

// A panicking handler must not take down the bus or other subscribers.
func TestHandlerPanicIsContained(t *testing.T) {
	eb := testBus(t)

	eb.Subscribe(EventPayment, func(Event) {
		panic("bad handler")
	})
	survived := make(chan struct{}, 1)
	eb.Subscribe(EventPayment, func(Event) {
		survived <- struct{}{}
	})

	eb.Publish(Event{Type: EventPayment})

	select {
	case <-survived:
	case <-time.After(2 * time.Second):
		t.Fatal("second subscriber starved by panicking one")
	}
}

func TestPublishAsync(t *testing.T) {
	eb := testBus(t)

	received := make(chan Event, 1)
	eb.Subscribe(EventRegister, func(event Event) {
		received <- event
	})

	eb.PublishAsync(EventRegister, map[string]interface{}{"agentName": "CodeAuditor"})

	select {
	case event := <-received:
		assert.Equal(t, "CodeAuditor", event.Payload["agentName"])
	case <-time.After(2 * time.Second):
		t.Fatal("async event never delivered")
	}
}
