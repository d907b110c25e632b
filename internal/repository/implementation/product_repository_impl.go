package implementation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/mapper"
	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/internal/repository/contract"
)

type ProductRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProductMapper
}

func NewProductRepository(db *gorm.DB) contract.ProductRepository {
	return &ProductRepositoryImpl{
		db:     db,
		mapper: mapper.NewProductMapper(),
	}
}

func (r *ProductRepositoryImpl) FindPortfolio(ctx context.Context, id uuid.UUID) (*entity.Portfolio, error) {
	var m model.Portfolio
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PortfolioToEntity(&m), nil
}

func (r *ProductRepositoryImpl) FindPortfolios(ctx context.Context, ids []uuid.UUID) ([]*entity.Portfolio, error) {
	var models []*model.Portfolio
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Portfolio, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PortfolioToEntity(m)
	}
	return entities, nil
}

func (r *ProductRepositoryImpl) FindBundle(ctx context.Context, id uuid.UUID) (*entity.Bundle, error) {
	var m model.Bundle
	query := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.BundleToEntity(&m), nil
}
