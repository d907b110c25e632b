package contract

import (
	"context"

	"github.com/google/uuid"

	"portfolio-commerce-be/internal/entity"
)

type ProductRepository interface {
	FindPortfolio(ctx context.Context, id uuid.UUID) (*entity.Portfolio, error)
	FindPortfolios(ctx context.Context, ids []uuid.UUID) ([]*entity.Portfolio, error)
	FindBundle(ctx context.Context, id uuid.UUID) (*entity.Bundle, error)
}
