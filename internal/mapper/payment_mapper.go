package mapper

import (
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/model"
)

type PaymentMapper struct{}

func NewPaymentMapper() *PaymentMapper {
	return &PaymentMapper{}
}

func (m *PaymentMapper) ToEntity(p *model.PaymentRecord) *entity.PaymentRecord {
	if p == nil {
		return nil
	}
	return &entity.PaymentRecord{
		Id:               p.Id,
		UserId:           p.UserId,
		SubscriptionId:   p.SubscriptionId,
		Amount:           p.Amount,
		GatewayPaymentId: p.GatewayPaymentId,
		GatewayOrderId:   p.GatewayOrderId,
		Status:           entity.PaymentStatus(p.Status),
		CreatedAt:        p.CreatedAt,
	}
}

func (m *PaymentMapper) ToModel(p *entity.PaymentRecord) *model.PaymentRecord {
	if p == nil {
		return nil
	}
	return &model.PaymentRecord{
		Id:               p.Id,
		UserId:           p.UserId,
		SubscriptionId:   p.SubscriptionId,
		Amount:           p.Amount,
		GatewayPaymentId: p.GatewayPaymentId,
		GatewayOrderId:   p.GatewayOrderId,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
	}
}
