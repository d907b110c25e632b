package mapper

import (
	"gorm.io/datatypes"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/model"
)

type WebhookEventMapper struct{}

func NewWebhookEventMapper() *WebhookEventMapper {
	return &WebhookEventMapper{}
}

func (m *WebhookEventMapper) ToEntity(e *model.WebhookEvent) *entity.WebhookEventLog {
	if e == nil {
		return nil
	}
	return &entity.WebhookEventLog{
		Id:             e.Id,
		GatewayEventId: e.GatewayEventId,
		Event:          e.Event,
		Payload:        []byte(e.Payload),
		Processed:      e.Processed,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *WebhookEventMapper) ToModel(e *entity.WebhookEventLog) *model.WebhookEvent {
	if e == nil {
		return nil
	}
	return &model.WebhookEvent{
		Id:             e.Id,
		GatewayEventId: e.GatewayEventId,
		Event:          e.Event,
		Payload:        datatypes.JSON(e.Payload),
		Processed:      e.Processed,
		CreatedAt:      e.CreatedAt,
	}
}
