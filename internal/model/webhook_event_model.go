package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WebhookEvent struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GatewayEventId string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Event          string         `gorm:"type:varchar(100);not null"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	Processed      bool           `gorm:"default:false"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
