package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string
type BillingMode string
type PlanType string
type AccessCategory string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"

	BillingModeOneTime   BillingMode = "one_time"
	BillingModeRecurring BillingMode = "recurring"

	PlanTypeMonthly   PlanType = "monthly"
	PlanTypeQuarterly PlanType = "quarterly"
	PlanTypeYearly    PlanType = "yearly"

	CategoryBasic   AccessCategory = "basic"
	CategoryPremium AccessCategory = "premium"
)

// RenewalWindowDays is how close to expiry a renewal becomes purchasable.
const RenewalWindowDays = 7

// Subscription is one user's access grant to one portfolio. A bundle purchase
// fans out into one Subscription per constituent portfolio; SourceBundleId
// records the bundle they came from.
type Subscription struct {
	Id                     uuid.UUID
	UserId                 uuid.UUID
	ProductType            ProductType
	ProductId              uuid.UUID
	SourceBundleId         *uuid.UUID
	BillingMode            BillingMode
	Category               AccessCategory
	Status                 SubscriptionStatus
	PlanType               PlanType
	Amount                 int64 // paise
	ExpiresAt              *time.Time
	LastPaymentAt          *time.Time
	LastReminderSent       *time.Time
	IsRenewal              bool
	CompensationDays       int
	PreviousSubscriptionId *uuid.UUID
	GatewayMandateId       *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsActiveAt reports whether the grant confers access at the given instant.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionStatusActive &&
		s.ExpiresAt != nil && s.ExpiresAt.After(now)
}

// DaysUntilExpiry returns whole days left, 0 when lapsed or unset.
func (s *Subscription) DaysUntilExpiry(now time.Time) int {
	if s.ExpiresAt == nil || !s.ExpiresAt.After(now) {
		return 0
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24)
}

// WithinRenewalWindow reports whether expiry is close enough that an early
// renewal is allowed.
func (s *Subscription) WithinRenewalWindow(now time.Time) bool {
	if s.ExpiresAt == nil {
		return true
	}
	return !s.ExpiresAt.After(now.AddDate(0, 0, RenewalWindowDays))
}
