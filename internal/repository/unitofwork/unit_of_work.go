package unitofwork

import (
	"context"

	"portfolio-commerce-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SubscriptionRepository() contract.SubscriptionRepository
	PaymentRepository() contract.PaymentRepository
	ProductRepository() contract.ProductRepository
	UserRepository() contract.UserRepository
	WebhookEventRepository() contract.WebhookEventRepository
}
