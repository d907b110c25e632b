package model

import (
	"time"

	"github.com/google/uuid"
)

type Portfolio struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Category       string    `gorm:"type:varchar(20);not null"`
	PriceMonthly   int64     `gorm:"not null;default:0"`
	PriceQuarterly int64     `gorm:"not null;default:0"`
	PriceYearly    int64     `gorm:"not null;default:0"`
	IsActive       bool      `gorm:"default:true"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

type Bundle struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Category       string    `gorm:"type:varchar(20);not null"`
	PriceMonthly   int64     `gorm:"not null;default:0"`
	PriceQuarterly int64     `gorm:"not null;default:0"`
	PriceYearly    int64     `gorm:"not null;default:0"`
	IsActive       bool      `gorm:"default:true"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`

	Items []*BundleItem `gorm:"foreignKey:BundleId"`
}

func (Bundle) TableName() string {
	return "bundles"
}

type BundleItem struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BundleId    uuid.UUID `gorm:"type:uuid;not null;index"`
	PortfolioId uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (BundleItem) TableName() string {
	return "bundle_items"
}
