package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserOwnedBy filters rows belonging to a user.
type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// ByProduct filters subscriptions for one (productType, productId) pair.
type ByProduct struct {
	ProductType string
	ProductID   uuid.UUID
}

func (s ByProduct) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("product_type = ? AND product_id = ?", s.ProductType, s.ProductID)
}

// ByMandate filters subscriptions funded by one gateway mandate.
type ByMandate struct {
	MandateID string
}

func (s ByMandate) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("gateway_mandate_id = ?", s.MandateID)
}

// StatusIn filters by a set of statuses.
type StatusIn struct {
	Statuses []string
}

func (s StatusIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}

// BillingModeIs filters one_time vs recurring rows.
type BillingModeIs struct {
	Mode string
}

func (s BillingModeIs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("billing_mode = ?", s.Mode)
}

// ExpiresBefore matches rows whose expiry has passed the given instant.
type ExpiresBefore struct {
	At time.Time
}

func (s ExpiresBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at IS NOT NULL AND expires_at < ?", s.At)
}

// ExpiresBetween matches rows expiring inside a window (reminder scans).
type ExpiresBetween struct {
	From time.Time
	To   time.Time
}

func (s ExpiresBetween) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?", s.From, s.To)
}

// StalledSince matches recurring rows with no charge recorded within the
// grace period: last_payment_at too old, or never set and created too long ago.
type StalledSince struct {
	Cutoff time.Time
}

func (s StalledSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"(last_payment_at IS NOT NULL AND last_payment_at < ?) OR (last_payment_at IS NULL AND created_at < ?)",
		s.Cutoff, s.Cutoff,
	)
}

// ReminderNotSentSince matches rows never reminded, or reminded before the
// throttle cutoff.
type ReminderNotSentSince struct {
	Cutoff time.Time
}

func (s ReminderNotSentSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_reminder_sent IS NULL OR last_reminder_sent < ?", s.Cutoff)
}
