package events

import "time"

// Event is the contract for everything published on the platform bus.
type Event interface {
	// EventType returns the unique code, e.g. "SUBSCRIPTION_ACTIVATED".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Lifecycle event codes emitted by the billing engine.
const (
	TypeSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	TypeSubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	TypeSubscriptionExpired   = "SUBSCRIPTION_EXPIRED"
	TypePaymentSettled        = "PAYMENT_SETTLED"
)

// New builds a BaseEvent stamped now.
func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
