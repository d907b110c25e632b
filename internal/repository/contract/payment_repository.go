package contract

import (
	"context"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/repository/specification"
)

type PaymentRepository interface {
	// Create inserts a payment record. The unique index on gateway_payment_id
	// is the duplicate-processing guard: a second insert for the same id fails
	// and the enclosing transaction rolls back.
	Create(ctx context.Context, payment *entity.PaymentRecord) error

	ExistsByGatewayPaymentId(ctx context.Context, gatewayPaymentId string) (bool, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PaymentRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentRecord, error)
}
