package contract

import (
	"context"

	"portfolio-commerce-be/internal/entity"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEventLog) error

	// FindByGatewayEventId returns the logged delivery, nil when never seen.
	// Dedup must key on the returned row's Processed flag, not on existence:
	// a row from a failed handling attempt has to stay retryable.
	FindByGatewayEventId(ctx context.Context, gatewayEventId string) (*entity.WebhookEventLog, error)

	MarkProcessed(ctx context.Context, gatewayEventId string) error
}
