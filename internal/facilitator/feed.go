package facilitator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FeedCapacity bounds the event ring buffer; the oldest entry is evicted
// when a new one arrives at capacity.
const FeedCapacity = 200

// EventType enumerates the kinds of network events the feed accepts.
type EventType string

const (
	EventPayment  EventType = "payment"
	EventStake    EventType = "stake"
	EventSlash    EventType = "slash"
	EventFeedback EventType = "feedback"
	EventRegister EventType = "register"
)

// EventStatus is the settlement status of a feed event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusPending   EventStatus = "pending"
)

// FeedEvent is one entry in the append-only network event feed. ID and
// Timestamp are server-assigned on append.
type FeedEvent struct {
	ID            string      `json:"id"`
	Timestamp     int64       `json:"timestamp"`
	Type          EventType   `json:"type"`
	AgentName     string      `json:"agentName"`
	AgentID       int64       `json:"agentId"`
	Amount        string      `json:"amount"`
	Currency      string      `json:"currency"`
	ClientAddress string      `json:"clientAddress"`
	Status        EventStatus `json:"status"`
	TxHash        string      `json:"txHash,omitempty"`
}

// ValidationError reports a rejected feed event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid feed event: %s %s", e.Field, e.Reason)
}

var validEventTypes = map[EventType]bool{
	EventPayment:  true,
	EventStake:    true,
	EventSlash:    true,
	EventFeedback: true,
	EventRegister: true,
}

// Feed is a fixed-capacity circular buffer of network events. Appends and
// reads are serialized under a single lock; listing is newest-first.
type Feed struct {
	mu     sync.Mutex
	buf    []FeedEvent
	head   int // index of the next write slot
	length int
}

// NewFeed creates an empty feed with FeedCapacity slots.
func NewFeed() *Feed {
	return &Feed{buf: make([]FeedEvent, FeedCapacity)}
}

// Append validates the event, assigns its id and timestamp, and inserts it
// as the newest entry, evicting the oldest at capacity. The buffer is not
// mutated when validation fails.
func (f *Feed) Append(event FeedEvent) (*FeedEvent, error) {
	if err := validate(&event); err != nil {
		return nil, err
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UnixMilli()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf[f.head] = event
	f.head = (f.head + 1) % len(f.buf)
	if f.length < len(f.buf) {
		f.length++
	}
	return &event, nil
}

// List returns a newest-first copy of the buffered events.
func (f *Feed) List() []FeedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]FeedEvent, 0, f.length)
	for i := 1; i <= f.length; i++ {
		idx := (f.head - i + len(f.buf)) % len(f.buf)
		out = append(out, f.buf[idx])
	}
	return out
}

// Len returns the number of buffered events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

func validate(event *FeedEvent) error {
	if !validEventTypes[event.Type] {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of payment|stake|slash|feedback|register, got %q", event.Type)}
	}
	if event.AgentID < 0 {
		return &ValidationError{Field: "agentId", Reason: "must be a non-negative number"}
	}
	if event.AgentName == "" {
		return &ValidationError{Field: "agentName", Reason: "is required"}
	}
	if event.Amount == "" {
		return &ValidationError{Field: "amount", Reason: "is required"}
	}
	if event.Currency == "" {
		return &ValidationError{Field: "currency", Reason: "is required"}
	}
	if event.ClientAddress == "" {
		return &ValidationError{Field: "clientAddress", Reason: "is required"}
	}
	if event.Status == "" {
		event.Status = StatusConfirmed
	}
	if event.Status != StatusConfirmed && event.Status != StatusPending {
		return &ValidationError{Field: "status", Reason: "must be confirmed or pending"}
	}
	return nil
}
