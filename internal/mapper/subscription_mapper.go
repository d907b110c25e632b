package mapper

import (
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:                     s.Id,
		UserId:                 s.UserId,
		ProductType:            entity.ProductType(s.ProductType),
		ProductId:              s.ProductId,
		SourceBundleId:         s.SourceBundleId,
		BillingMode:            entity.BillingMode(s.BillingMode),
		Category:               entity.AccessCategory(s.Category),
		Status:                 entity.SubscriptionStatus(s.Status),
		PlanType:               entity.PlanType(s.PlanType),
		Amount:                 s.Amount,
		ExpiresAt:              s.ExpiresAt,
		LastPaymentAt:          s.LastPaymentAt,
		LastReminderSent:       s.LastReminderSent,
		IsRenewal:              s.IsRenewal,
		CompensationDays:       s.CompensationDays,
		PreviousSubscriptionId: s.PreviousSubscriptionId,
		GatewayMandateId:       s.GatewayMandateId,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) ToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:                     s.Id,
		UserId:                 s.UserId,
		ProductType:            string(s.ProductType),
		ProductId:              s.ProductId,
		SourceBundleId:         s.SourceBundleId,
		BillingMode:            string(s.BillingMode),
		Category:               string(s.Category),
		Status:                 string(s.Status),
		PlanType:               string(s.PlanType),
		Amount:                 s.Amount,
		ExpiresAt:              s.ExpiresAt,
		LastPaymentAt:          s.LastPaymentAt,
		LastReminderSent:       s.LastReminderSent,
		IsRenewal:              s.IsRenewal,
		CompensationDays:       s.CompensationDays,
		PreviousSubscriptionId: s.PreviousSubscriptionId,
		GatewayMandateId:       s.GatewayMandateId,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}
