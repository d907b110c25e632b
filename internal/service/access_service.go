// FILE: internal/service/access_service.go
// Service deriving the per-user premium flag from live subscriptions.
package service

import (
	"context"
	"fmt"
	"time"

	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/logger"
	"portfolio-commerce-be/internal/repository/specification"
	"portfolio-commerce-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type IAccessService interface {
	// RecomputeForUser re-derives the premium flag after any lifecycle
	// transition touching the user's subscriptions.
	RecomputeForUser(ctx context.Context, userId uuid.UUID) error
	RecomputeForUsers(ctx context.Context, userIds []uuid.UUID) error

	// HasPremiumAccess answers the gate other services care about.
	HasPremiumAccess(ctx context.Context, userId uuid.UUID) (bool, error)
}

type accessService struct {
	uowFactory unitofwork.RepositoryFactory
	redis      *redis.Client
	logger     logger.ILogger
}

func NewAccessService(uowFactory unitofwork.RepositoryFactory, redisClient *redis.Client, log logger.ILogger) IAccessService {
	return &accessService{
		uowFactory: uowFactory,
		redis:      redisClient,
		logger:     log,
	}
}

func premiumFlagKey(userId uuid.UUID) string {
	return fmt.Sprintf("access:premium:%s", userId)
}

func (s *accessService) RecomputeForUser(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	now := time.Now()
	subs, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
	)
	if err != nil {
		return err
	}

	premium := false
	for _, sub := range subs {
		if sub.Category == entity.CategoryPremium && sub.IsActiveAt(now) {
			premium = true
			break
		}
	}

	if err := uow.UserRepository().SetPremiumFlag(ctx, userId, premium); err != nil {
		return err
	}

	// Mirror into redis for the API gateway. The database row is the source
	// of truth; a failed mirror only delays the fast path.
	s.mirrorFlag(ctx, userId, premium)

	return nil
}

func (s *accessService) RecomputeForUsers(ctx context.Context, userIds []uuid.UUID) error {
	for _, id := range userIds {
		if err := s.RecomputeForUser(ctx, id); err != nil {
			s.logger.Error("access", "failed to recompute premium flag", map[string]interface{}{
				"user_id": id.String(),
				"error":   err.Error(),
			})
			return err
		}
	}
	return nil
}

func (s *accessService) HasPremiumAccess(ctx context.Context, userId uuid.UUID) (bool, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, premiumFlagKey(userId)).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			s.logger.Warn("access", "redis read failed, falling back to database", map[string]interface{}{
				"user_id": userId.String(),
				"error":   err.Error(),
			})
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	s.mirrorFlag(ctx, userId, user.IsPremium)
	return user.IsPremium, nil
}

func (s *accessService) mirrorFlag(ctx context.Context, userId uuid.UUID, premium bool) {
	if s.redis == nil {
		return
	}
	val := "0"
	if premium {
		val = "1"
	}
	if err := s.redis.Set(ctx, premiumFlagKey(userId), val, time.Hour).Err(); err != nil {
		s.logger.Warn("access", "failed to mirror premium flag to redis", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
}
