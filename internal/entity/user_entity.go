package entity

import (
	"time"

	"github.com/google/uuid"
)

// User carries only what billing needs: identity for gateway customer
// records and the derived premium-access flag other services read.
// Authentication and profile management live elsewhere.
type User struct {
	Id                uuid.UUID
	Email             string
	FullName          string
	Phone             string
	GatewayCustomerId *string
	IsPremium         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
