package implementation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/mapper"
	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/internal/repository/contract"
	"portfolio-commerce-be/internal/repository/specification"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) contract.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SubscriptionRepositoryImpl) Upsert(ctx context.Context, subscription *entity.Subscription) error {
	m := r.mapper.ToModel(subscription)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "product_type"}, {Name: "product_id"}, {Name: "billing_mode"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_bundle_id", "category", "status", "plan_type", "amount",
			"expires_at", "last_payment_at", "is_renewal", "compensation_days",
			"previous_subscription_id", "gateway_mandate_id", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	// Re-read so callers see the surviving row's id on conflict.
	var persisted model.Subscription
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND product_type = ? AND product_id = ? AND billing_mode = ?",
			m.UserId, m.ProductType, m.ProductId, m.BillingMode).
		First(&persisted).Error
	if err != nil {
		return err
	}
	*subscription = *r.mapper.ToEntity(&persisted)
	return nil
}

func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, subscription *entity.Subscription) error {
	m := r.mapper.ToModel(subscription)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*subscription = *r.mapper.ToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	var m model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	var models []*model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Subscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionRepositoryImpl) UpdateStatus(ctx context.Context, status entity.SubscriptionStatus, lastPaymentAt *time.Time, specs ...specification.Specification) (int64, error) {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if lastPaymentAt != nil {
		updates["last_payment_at"] = *lastPaymentAt
	}
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Subscription{}), specs...)
	result := query.Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *SubscriptionRepositoryImpl) DistinctUserIds(ctx context.Context, specs ...specification.Specification) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Subscription{}), specs...)
	if err := query.Distinct("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SubscriptionRepositoryImpl) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ?", id).
		Update("last_reminder_sent", at).Error
}

func (r *SubscriptionRepositoryImpl) TouchLastPayment(ctx context.Context, at time.Time, specs ...specification.Specification) (int64, error) {
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Subscription{}), specs...)
	result := query.Update("last_payment_at", at)
	return result.RowsAffected, result.Error
}
