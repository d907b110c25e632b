package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentRecord struct {
	Id               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId           uuid.UUID  `gorm:"type:uuid;not null;index"`
	SubscriptionId   *uuid.UUID `gorm:"type:uuid;index"`
	Amount           int64      `gorm:"not null"`
	GatewayPaymentId string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	GatewayOrderId   string     `gorm:"type:varchar(255);index"`
	Status           string     `gorm:"type:varchar(20);not null"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
