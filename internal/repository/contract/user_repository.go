package contract

import (
	"context"

	"github.com/google/uuid"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/repository/specification"
)

type UserRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	SetGatewayCustomerId(ctx context.Context, userId uuid.UUID, customerId string) error
	SetPremiumFlag(ctx context.Context, userId uuid.UUID, premium bool) error
}
