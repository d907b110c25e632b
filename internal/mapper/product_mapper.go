package mapper

import (
	"github.com/google/uuid"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/model"
)

type ProductMapper struct{}

func NewProductMapper() *ProductMapper {
	return &ProductMapper{}
}

func (m *ProductMapper) PortfolioToEntity(p *model.Portfolio) *entity.Portfolio {
	if p == nil {
		return nil
	}
	return &entity.Portfolio{
		Id:             p.Id,
		Name:           p.Name,
		Category:       entity.AccessCategory(p.Category),
		PriceMonthly:   p.PriceMonthly,
		PriceQuarterly: p.PriceQuarterly,
		PriceYearly:    p.PriceYearly,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (m *ProductMapper) BundleToEntity(b *model.Bundle) *entity.Bundle {
	if b == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(b.Items))
	for _, item := range b.Items {
		ids = append(ids, item.PortfolioId)
	}
	return &entity.Bundle{
		Id:             b.Id,
		Name:           b.Name,
		Category:       entity.AccessCategory(b.Category),
		PriceMonthly:   b.PriceMonthly,
		PriceQuarterly: b.PriceQuarterly,
		PriceYearly:    b.PriceYearly,
		PortfolioIds:   ids,
		IsActive:       b.IsActive,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
