package entity

// MandateEventKind is the closed set of gateway webhook events the engine
// understands. Anything else parses to MandateEventUnrecognized and is only
// logged, so the dispatch switch stays exhaustive.
type MandateEventKind string

const (
	MandateEventAuthenticated MandateEventKind = "authenticated"
	MandateEventActivated     MandateEventKind = "activated"
	MandateEventCharged       MandateEventKind = "charged"
	MandateEventHalted        MandateEventKind = "halted"
	MandateEventCancelled     MandateEventKind = "cancelled"
	MandateEventExpired       MandateEventKind = "expired"
	MandateEventUnrecognized  MandateEventKind = "unrecognized"
)

// MandateEvent is the parsed form of a gateway webhook delivery.
type MandateEvent struct {
	Kind      MandateEventKind
	EventId   string // gateway delivery id, used for the event log
	MandateId string
	UserId    string // embedded identity from mandate notes, "" when absent
	// Charged installments only.
	PaymentId string
	Amount    int64 // paise
	RawEvent  string
}

// ParseMandateEventKind maps gateway event names onto the tagged union.
func ParseMandateEventKind(event string) MandateEventKind {
	switch event {
	case "subscription.authenticated":
		return MandateEventAuthenticated
	case "subscription.activated", "subscription.resumed":
		return MandateEventActivated
	case "subscription.charged":
		return MandateEventCharged
	case "subscription.halted", "subscription.paused":
		return MandateEventHalted
	case "subscription.cancelled":
		return MandateEventCancelled
	case "subscription.expired", "subscription.completed":
		return MandateEventExpired
	default:
		return MandateEventUnrecognized
	}
}
