// FILE: internal/service/sweeper_service.go
// Background lifecycle sweep: expire lapsed grants, close stalled mandates
// and queue renewal reminders.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"portfolio-commerce-be/internal/dto"
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/logger"
	"portfolio-commerce-be/internal/repository/specification"
	"portfolio-commerce-be/internal/repository/unitofwork"
	"portfolio-commerce-be/pkg/gateway"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	// A recurring grant with no confirmed charge inside this window is
	// considered stalled and is closed.
	recurringGraceDays = 30

	// Reminders go out when expiry is this close.
	reminderMinDays = 3
	reminderMaxDays = 7

	// Minimum gap between reminders for the same grant.
	reminderThrottle = 24 * time.Hour
)

type ISweeperService interface {
	// RunSweep performs one expiry pass. Overlapping invocations are skipped.
	RunSweep(ctx context.Context) error

	// RunReminderScan queues reminder messages for grants nearing expiry.
	RunReminderScan(ctx context.Context) error
}

type sweeperService struct {
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.Client
	access     IAccessService
	pubSub     *gochannel.GoChannel
	logger     logger.ILogger

	sweeping atomic.Bool
}

func NewSweeperService(
	uowFactory unitofwork.RepositoryFactory,
	gatewayClient gateway.Client,
	access IAccessService,
	pubSub *gochannel.GoChannel,
	log logger.ILogger,
) ISweeperService {
	return &sweeperService{
		uowFactory: uowFactory,
		gateway:    gatewayClient,
		access:     access,
		pubSub:     pubSub,
		logger:     log,
	}
}

func (s *sweeperService) RunSweep(ctx context.Context) error {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("sweeper", "sweep already running, skipping", nil)
		return nil
	}
	defer s.sweeping.Store(false)

	now := time.Now()
	start := now

	expired, expiredUsers, err := s.expireLapsedGrants(ctx, now)
	if err != nil {
		return err
	}

	stalled, stalledUsers, err := s.closeStalledMandates(ctx, now)
	if err != nil {
		return err
	}

	touched := dedupeIds(append(expiredUsers, stalledUsers...))
	if len(touched) > 0 {
		if err := s.access.RecomputeForUsers(ctx, touched); err != nil {
			s.logger.Error("sweeper", "premium flag recompute failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	s.logger.Info("sweeper", "sweep finished", map[string]interface{}{
		"expired":  expired,
		"stalled":  stalled,
		"duration": time.Since(start).String(),
	})
	return nil
}

// expireLapsedGrants transitions active one-time grants past their expiry.
// Recurring grants are left to the mandate lifecycle and the stall check.
func (s *sweeperService) expireLapsedGrants(ctx context.Context, now time.Time) (int64, []uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
		specification.BillingModeIs{Mode: string(entity.BillingModeOneTime)},
		specification.ExpiresBefore{At: now},
	}

	userIds, err := uow.SubscriptionRepository().DistinctUserIds(ctx, specs...)
	if err != nil {
		return 0, nil, err
	}

	affected, err := uow.SubscriptionRepository().UpdateStatus(ctx, entity.SubscriptionStatusExpired, nil, specs...)
	if err != nil {
		return 0, nil, err
	}
	return affected, userIds, nil
}

// closeStalledMandates cancels recurring grants whose charges stopped coming.
// The remote cancel is best effort; local state closes regardless.
func (s *sweeperService) closeStalledMandates(ctx context.Context, now time.Time) (int64, []uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	cutoff := now.AddDate(0, 0, -recurringGraceDays)

	stalled, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
		specification.BillingModeIs{Mode: string(entity.BillingModeRecurring)},
		specification.StalledSince{Cutoff: cutoff},
	)
	if err != nil {
		return 0, nil, err
	}
	if len(stalled) == 0 {
		return 0, nil, nil
	}

	mandates := make(map[string]struct{})
	for _, sub := range stalled {
		if sub.GatewayMandateId != nil && *sub.GatewayMandateId != "" {
			mandates[*sub.GatewayMandateId] = struct{}{}
		}
	}
	for mandateId := range mandates {
		if err := s.gateway.CancelMandate(ctx, mandateId); err != nil {
			s.logger.Warn("sweeper", "remote cancel of stalled mandate failed", map[string]interface{}{
				"mandate_id": mandateId,
				"error":      err.Error(),
			})
		}
	}

	specs := []specification.Specification{
		specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
		specification.BillingModeIs{Mode: string(entity.BillingModeRecurring)},
		specification.StalledSince{Cutoff: cutoff},
	}
	userIds, err := uow.SubscriptionRepository().DistinctUserIds(ctx, specs...)
	if err != nil {
		return 0, nil, err
	}
	affected, err := uow.SubscriptionRepository().UpdateStatus(ctx, entity.SubscriptionStatusCancelled, nil, specs...)
	if err != nil {
		return 0, nil, err
	}
	return affected, userIds, nil
}

func dedupeIds(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RunReminderScan finds grants expiring soon and hands one message per grant
// to the notification pipeline. The 24h throttle lives on the subscription
// row and is stamped by the consumer after a confirmed send.
func (s *sweeperService) RunReminderScan(ctx context.Context) error {
	now := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	due, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
		specification.ExpiresBetween{
			From: now.AddDate(0, 0, reminderMinDays),
			To:   now.AddDate(0, 0, reminderMaxDays),
		},
		specification.ReminderNotSentSince{Cutoff: now.Add(-reminderThrottle)},
	)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	queued := 0
	for _, sub := range due {
		user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: sub.UserId})
		if err != nil {
			return err
		}
		if user == nil || user.Email == "" {
			continue
		}

		payload := dto.ReminderMessage{
			SubscriptionId: sub.Id.String(),
			UserId:         sub.UserId.String(),
			Email:          user.Email,
			FullName:       user.FullName,
			ProductType:    string(sub.ProductType),
			ProductId:      sub.ProductId.String(),
			ExpiresAt:      sub.ExpiresAt.Format("2006-01-02"),
			DaysRemaining:  sub.DaysUntilExpiry(now),
		}
		body, err := payload.Marshal()
		if err != nil {
			return err
		}

		msg := message.NewMessage(watermill.NewUUID(), body)
		if err := s.pubSub.Publish(ReminderTopic, msg); err != nil {
			s.logger.Error("sweeper", "failed to queue reminder", map[string]interface{}{
				"subscription_id": sub.Id.String(),
				"error":           err.Error(),
			})
			continue
		}
		queued++
	}

	s.logger.Info("sweeper", "reminder scan finished", map[string]interface{}{
		"due":    len(due),
		"queued": queued,
	})
	return nil
}
