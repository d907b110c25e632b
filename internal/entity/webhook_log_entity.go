package entity

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventLog keeps one row per gateway delivery so redelivered events can
// be answered 200 without re-entering the engine, and for audit.
type WebhookEventLog struct {
	Id             uuid.UUID
	GatewayEventId string
	Event          string
	Payload        []byte
	Processed      bool
	CreatedAt      time.Time
}
