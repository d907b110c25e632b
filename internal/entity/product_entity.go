package entity

import (
	"time"

	"github.com/google/uuid"
)

type ProductType string

const (
	ProductTypePortfolio ProductType = "portfolio"
	ProductTypeBundle    ProductType = "bundle"
)

// Portfolio is a subscribable model portfolio. Prices are paise per plan.
type Portfolio struct {
	Id             uuid.UUID
	Name           string
	Category       AccessCategory
	PriceMonthly   int64
	PriceQuarterly int64
	PriceYearly    int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PriceFor returns the portfolio price for a plan, 0 for unknown plans.
func (p *Portfolio) PriceFor(plan PlanType) int64 {
	switch plan {
	case PlanTypeMonthly:
		return p.PriceMonthly
	case PlanTypeQuarterly:
		return p.PriceQuarterly
	case PlanTypeYearly:
		return p.PriceYearly
	}
	return 0
}

// Bundle groups portfolios sold as one product at a combined price.
type Bundle struct {
	Id             uuid.UUID
	Name           string
	Category       AccessCategory
	PriceMonthly   int64
	PriceQuarterly int64
	PriceYearly    int64
	PortfolioIds   []uuid.UUID
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Bundle) PriceFor(plan PlanType) int64 {
	switch plan {
	case PlanTypeMonthly:
		return b.PriceMonthly
	case PlanTypeQuarterly:
		return b.PriceQuarterly
	case PlanTypeYearly:
		return b.PriceYearly
	}
	return 0
}

// ResolvedPrice is what the catalog hands the lifecycle engine: the amount to
// charge and the access category the purchase grants.
type ResolvedPrice struct {
	Amount   int64
	Category AccessCategory
}
