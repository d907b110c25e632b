package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentRecord is one row per externally-identified payment attempt.
// GatewayPaymentId is globally unique and is the sole duplicate-processing
// guard: a settlement that finds the id already present must stop with no
// side effects. Immutable once verified.
type PaymentRecord struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	SubscriptionId   *uuid.UUID
	Amount           int64 // paise
	GatewayPaymentId string
	GatewayOrderId   string
	Status           PaymentStatus
	CreatedAt        time.Time
}
