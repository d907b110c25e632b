package implementation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/mapper"
	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/internal/pkg/apperror"
	"portfolio-commerce-be/internal/repository/contract"
	"portfolio-commerce-be/internal/repository/specification"
)

type PaymentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaymentMapper
}

func NewPaymentRepository(db *gorm.DB) contract.PaymentRepository {
	return &PaymentRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaymentMapper(),
	}
}

func (r *PaymentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, payment *entity.PaymentRecord) error {
	m := r.mapper.ToModel(payment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		// The unique index on gateway_payment_id is the settlement dedup
		// backstop: a concurrent settlement that won the race surfaces here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &apperror.DuplicatePaymentError{GatewayPaymentId: payment.GatewayPaymentId}
		}
		return err
	}
	*payment = *r.mapper.ToEntity(m)
	return nil
}

func (r *PaymentRepositoryImpl) ExistsByGatewayPaymentId(ctx context.Context, gatewayPaymentId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).
		Where("gateway_payment_id = ?", gatewayPaymentId).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PaymentRecord, error) {
	var m model.PaymentRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PaymentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentRecord, error) {
	var models []*model.PaymentRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PaymentRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
