package model

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	Id                     uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId                 uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_natural_key;index"`
	ProductType            string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_subscriptions_natural_key"`
	ProductId              uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_natural_key"`
	BillingMode            string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_subscriptions_natural_key"`
	SourceBundleId         *uuid.UUID `gorm:"type:uuid;index"`
	Category               string     `gorm:"type:varchar(20);not null"`
	Status                 string     `gorm:"type:varchar(20);not null;index"`
	PlanType               string     `gorm:"type:varchar(20);not null"`
	Amount                 int64      `gorm:"not null"`
	ExpiresAt              *time.Time `gorm:"index"`
	LastPaymentAt          *time.Time
	LastReminderSent       *time.Time
	IsRenewal              bool       `gorm:"default:false"`
	CompensationDays       int        `gorm:"default:0"`
	PreviousSubscriptionId *uuid.UUID `gorm:"type:uuid"`
	GatewayMandateId       *string    `gorm:"type:varchar(255);index"`
	CreatedAt              time.Time  `gorm:"autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
