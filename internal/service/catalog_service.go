// FILE: internal/service/catalog_service.go
// Service for product catalog lookups with a short-lived in-memory cache.
package service

import (
	"context"
	"fmt"
	"time"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/apperror"
	"portfolio-commerce-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type ICatalogService interface {
	// ResolvePrice returns the charge amount in paise and the access category
	// for one billing cycle of the given product and plan.
	ResolvePrice(ctx context.Context, productType entity.ProductType, productId uuid.UUID, planType entity.PlanType) (*entity.ResolvedPrice, error)

	// ExpandBundle returns the portfolios a bundle grants access to.
	ExpandBundle(ctx context.Context, bundleId uuid.UUID) (*entity.Bundle, []*entity.Portfolio, error)

	// ProductName returns a display name for receipts and reminder emails.
	ProductName(ctx context.Context, productType entity.ProductType, productId uuid.UUID) (string, error)
}

type catalogService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *gocache.Cache
}

func NewCatalogService(uowFactory unitofwork.RepositoryFactory) ICatalogService {
	// Prices change rarely; 5 minutes keeps checkout snappy without a
	// separate invalidation path.
	return &catalogService{
		uowFactory: uowFactory,
		cache:      gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *catalogService) ResolvePrice(ctx context.Context, productType entity.ProductType, productId uuid.UUID, planType entity.PlanType) (*entity.ResolvedPrice, error) {
	key := fmt.Sprintf("price:%s:%s:%s", productType, productId, planType)
	if cached, found := s.cache.Get(key); found {
		if price, ok := cached.(*entity.ResolvedPrice); ok {
			return price, nil
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	var price *entity.ResolvedPrice

	switch productType {
	case entity.ProductTypePortfolio:
		portfolio, err := uow.ProductRepository().FindPortfolio(ctx, productId)
		if err != nil {
			return nil, err
		}
		if portfolio == nil {
			return nil, apperror.Validation("portfolio not found")
		}
		amount := portfolio.PriceFor(planType)
		if amount <= 0 {
			return nil, apperror.Validation("plan %s not offered for portfolio %s", planType, productId)
		}
		price = &entity.ResolvedPrice{Amount: amount, Category: portfolio.Category}

	case entity.ProductTypeBundle:
		bundle, err := uow.ProductRepository().FindBundle(ctx, productId)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, apperror.Validation("bundle not found")
		}
		amount := bundle.PriceFor(planType)
		if amount <= 0 {
			return nil, apperror.Validation("plan %s not offered for bundle %s", planType, productId)
		}
		price = &entity.ResolvedPrice{Amount: amount, Category: bundle.Category}

	default:
		return nil, apperror.Validation("unknown product type: %s", productType)
	}

	s.cache.Set(key, price, gocache.DefaultExpiration)
	return price, nil
}

func (s *catalogService) ExpandBundle(ctx context.Context, bundleId uuid.UUID) (*entity.Bundle, []*entity.Portfolio, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	bundle, err := uow.ProductRepository().FindBundle(ctx, bundleId)
	if err != nil {
		return nil, nil, err
	}
	if bundle == nil {
		return nil, nil, apperror.Validation("bundle not found")
	}
	if len(bundle.PortfolioIds) == 0 {
		return nil, nil, apperror.Validation("bundle has no portfolios")
	}

	portfolios, err := uow.ProductRepository().FindPortfolios(ctx, bundle.PortfolioIds)
	if err != nil {
		return nil, nil, err
	}
	if len(portfolios) != len(bundle.PortfolioIds) {
		return nil, nil, apperror.Validation("bundle references missing portfolios")
	}

	return bundle, portfolios, nil
}

func (s *catalogService) ProductName(ctx context.Context, productType entity.ProductType, productId uuid.UUID) (string, error) {
	key := fmt.Sprintf("name:%s:%s", productType, productId)
	if cached, found := s.cache.Get(key); found {
		if name, ok := cached.(string); ok {
			return name, nil
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	var name string
	switch productType {
	case entity.ProductTypePortfolio:
		portfolio, err := uow.ProductRepository().FindPortfolio(ctx, productId)
		if err != nil {
			return "", err
		}
		if portfolio == nil {
			return "", apperror.Validation("portfolio not found")
		}
		name = portfolio.Name
	case entity.ProductTypeBundle:
		bundle, err := uow.ProductRepository().FindBundle(ctx, productId)
		if err != nil {
			return "", err
		}
		if bundle == nil {
			return "", apperror.Validation("bundle not found")
		}
		name = bundle.Name
	default:
		return "", apperror.Validation("unknown product type: %s", productType)
	}

	s.cache.Set(key, name, gocache.DefaultExpiration)
	return name, nil
}
