package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventPayment  EventType = "payment"
	EventStake    EventType = "stake"
	EventSlash    EventType = "slash"
	EventFeedback EventType = "feedback"
	EventRegister EventType = "register"
)

// AllEventTypes lists every event kind flowing through the bus.
var AllEventTypes = []EventType{
	EventPayment,
	EventStake,
	EventSlash,
	EventFeedback,
	EventRegister,
}

type Event struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

type EventHandler func(event Event)

// EventBus fans network events out to in-process subscribers (websocket
// hub, archive writer) without blocking the publisher.
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]EventHandler
	logger    *logrus.Logger
	eventChan chan Event
	stopChan  chan struct{}
}

func NewEventBus(logger *logrus.Logger) *EventBus {
	eb := &EventBus{
		handlers:  make(map[EventType][]EventHandler),
		logger:    logger,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	go eb.processEvents()

	return eb
}

func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debugf("Handler subscribed to event type: %s", eventType)
}

func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, eventType := range AllEventTypes {
		eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	}

	eb.logger.Debug("Handler subscribed to all event types")
}

func (eb *EventBus) Publish(event Event) {
	select {
	case eb.eventChan <- event:
		eb.logger.Debugf("Event published: %s", event.Type)
	default:
		eb.logger.Warnf("Event channel full, dropping event: %s", event.Type)
	}
}

func (eb *EventBus) PublishAsync(eventType EventType, payload map[string]interface{}) {
	go func() {
		eb.Publish(Event{
			Type:    eventType,
			Payload: payload,
		})
	}()
}

func (eb *EventBus) processEvents() {
	for {
		select {
		case event := <-eb.eventChan:
			eb.handleEvent(event)
		case <-eb.stopChan:
			eb.logger.Info("EventBus stopped")
			return
		}
	}
}

func (eb *EventBus) handleEvent(event Event) {
	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, handler := range handlers {
		// Run each handler in a goroutine to prevent blocking
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Errorf("Panic in event handler for %s: %v", event.Type, r)
				}
			}()
			h(event)
		}(handler)
	}
}

func (eb *EventBus) Stop() {
	close(eb.stopChan)
}
