package contract

import (
	"context"
	"time"

	"github.com/google/uuid"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/repository/specification"
)

type SubscriptionRepository interface {
	// Upsert writes through the natural-key unique index
	// (user_id, product_type, product_id, billing_mode). A retried request or
	// a concurrent settlement for the same key lands on the same row.
	Upsert(ctx context.Context, subscription *entity.Subscription) error
	Update(ctx context.Context, subscription *entity.Subscription) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)

	// UpdateStatus bulk-transitions every matching row, returning how many
	// changed. lastPaymentAt is applied when non-nil.
	UpdateStatus(ctx context.Context, status entity.SubscriptionStatus, lastPaymentAt *time.Time, specs ...specification.Specification) (int64, error)

	// DistinctUserIds lists users owning matching rows; batch jobs use it to
	// recompute per-user access flags after bulk transitions.
	DistinctUserIds(ctx context.Context, specs ...specification.Specification) ([]uuid.UUID, error)

	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	TouchLastPayment(ctx context.Context, at time.Time, specs ...specification.Specification) (int64, error)
}
