package implementation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/mapper"
	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/internal/repository/contract"
)

type WebhookEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WebhookEventMapper
}

func NewWebhookEventRepository(db *gorm.DB) contract.WebhookEventRepository {
	return &WebhookEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewWebhookEventMapper(),
	}
}

func (r *WebhookEventRepositoryImpl) Create(ctx context.Context, event *entity.WebhookEventLog) error {
	m := r.mapper.ToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.ToEntity(m)
	return nil
}

func (r *WebhookEventRepositoryImpl) FindByGatewayEventId(ctx context.Context, gatewayEventId string) (*entity.WebhookEventLog, error) {
	var m model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("gateway_event_id = ?", gatewayEventId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(ctx context.Context, gatewayEventId string) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ?", gatewayEventId).
		Update("processed", true).Error
}
