// FILE: internal/service/subscription_service.go
// The subscription lifecycle engine: order and mandate creation, payment
// settlement, gateway webhook handling and cancellation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"portfolio-commerce-be/internal/dto"
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/apperror"
	"portfolio-commerce-be/internal/pkg/logger"
	"portfolio-commerce-be/internal/repository/specification"
	"portfolio-commerce-be/internal/repository/unitofwork"
	"portfolio-commerce-be/pkg/events"
	"portfolio-commerce-be/pkg/gateway"
	pktNats "portfolio-commerce-be/pkg/nats"
	"portfolio-commerce-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	currencyINR = "INR"

	// A recurring mandate funds one yearly commitment in monthly installments.
	mandateInstallments = 12
)

type ISubscriptionService interface {
	CheckRenewalEligibility(ctx context.Context, userId uuid.UUID, productType entity.ProductType, productId uuid.UUID) (*dto.RenewalEligibility, error)
	CreateOrder(ctx context.Context, userId uuid.UUID, req *dto.CreateOrderRequest) (*dto.CreateOrderResponse, error)
	CreateRecurringMandate(ctx context.Context, userId uuid.UUID, req *dto.CreateMandateRequest) (*dto.CreateMandateResponse, error)
	VerifyPayment(ctx context.Context, userId uuid.UUID, req *dto.VerifyPaymentRequest) (*dto.SettlementSummary, error)
	ProcessGatewayWebhook(ctx context.Context, eventId string, body []byte, signature string) error
	HandleMandateWebhookEvent(ctx context.Context, event *entity.MandateEvent) error
	CancelSubscription(ctx context.Context, userId uuid.UUID, subscriptionId uuid.UUID) error
	ListSubscriptions(ctx context.Context, userId uuid.UUID) ([]*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	uowFactory     unitofwork.RepositoryFactory
	catalog        ICatalogService
	gateway        gateway.Client
	access         IAccessService
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewSubscriptionService(
	uowFactory unitofwork.RepositoryFactory,
	catalog ICatalogService,
	gatewayClient gateway.Client,
	access IAccessService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) ISubscriptionService {
	return &subscriptionService{
		uowFactory:     uowFactory,
		catalog:        catalog,
		gateway:        gatewayClient,
		access:         access,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// priorState is what an existing purchase of the same product contributes to a
// new one: renewal status and the days carried over from unexpired access.
type priorState struct {
	isRenewal        bool
	compensationDays int
	previousSubId    *uuid.UUID
	currentExpiry    *time.Time
}

// grantedPortfolios lists the portfolio ids a purchase fans out into. A plain
// portfolio purchase is itself; a bundle expands to its constituents.
func (s *subscriptionService) grantedPortfolios(ctx context.Context, productType entity.ProductType, productId uuid.UUID) ([]uuid.UUID, *uuid.UUID, error) {
	if productType == entity.ProductTypePortfolio {
		return []uuid.UUID{productId}, nil, nil
	}
	bundle, portfolios, err := s.catalog.ExpandBundle(ctx, productId)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, len(portfolios))
	for i, p := range portfolios {
		ids[i] = p.Id
	}
	bundleId := bundle.Id
	return ids, &bundleId, nil
}

// activeGrants returns the caller's currently-active subscriptions covering
// any portfolio the purchase would grant.
func (s *subscriptionService) activeGrants(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, portfolioIds []uuid.UUID, now time.Time) ([]*entity.Subscription, error) {
	var active []*entity.Subscription
	for _, pid := range portfolioIds {
		subs, err := uow.SubscriptionRepository().FindAll(ctx,
			specification.UserOwnedBy{UserID: userId},
			specification.ByProduct{ProductType: string(entity.ProductTypePortfolio), ProductID: pid},
		)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if sub.IsActiveAt(now) {
				active = append(active, sub)
			}
		}
	}
	return active, nil
}

// gatePurchase enforces the renewal window. A purchase over live access is
// only allowed within the final days before expiry; the carried-over days are
// estimated from the latest-expiring grant.
func (s *subscriptionService) gatePurchase(active []*entity.Subscription, now time.Time) (*priorState, error) {
	if len(active) == 0 {
		return &priorState{}, nil
	}

	latest := active[0]
	for _, sub := range active[1:] {
		if sub.ExpiresAt != nil && latest.ExpiresAt != nil && sub.ExpiresAt.After(*latest.ExpiresAt) {
			latest = sub
		}
	}

	if !latest.WithinRenewalWindow(now) {
		nextEligible := latest.ExpiresAt.AddDate(0, 0, -entity.RenewalWindowDays)
		return nil, apperror.Conflict(nextEligible,
			"subscription active until %s, renewal opens %s",
			latest.ExpiresAt.Format("2006-01-02"), nextEligible.Format("2006-01-02"))
	}

	prevId := latest.Id
	return &priorState{
		isRenewal:        true,
		compensationDays: utils.CompensationDays(*latest.ExpiresAt, now),
		previousSubId:    &prevId,
		currentExpiry:    latest.ExpiresAt,
	}, nil
}

func (s *subscriptionService) CheckRenewalEligibility(ctx context.Context, userId uuid.UUID, productType entity.ProductType, productId uuid.UUID) (*dto.RenewalEligibility, error) {
	now := time.Now()
	portfolioIds, _, err := s.grantedPortfolios(ctx, productType, productId)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	active, err := s.activeGrants(ctx, uow, userId, portfolioIds, now)
	if err != nil {
		return nil, err
	}

	prior, err := s.gatePurchase(active, now)
	if err != nil {
		if conflict, ok := err.(*apperror.ConflictError); ok {
			latest := active[0]
			for _, sub := range active[1:] {
				if sub.ExpiresAt != nil && latest.ExpiresAt != nil && sub.ExpiresAt.After(*latest.ExpiresAt) {
					latest = sub
				}
			}
			return &dto.RenewalEligibility{
				HasActive:       true,
				CanRenew:        false,
				DaysUntilExpiry: latest.DaysUntilExpiry(now),
				NextEligibleAt:  &conflict.NextEligibleAt,
				CurrentId:       &latest.Id,
			}, nil
		}
		return nil, err
	}

	if !prior.isRenewal {
		return &dto.RenewalEligibility{HasActive: false, CanRenew: true}, nil
	}

	days := 0
	if prior.currentExpiry != nil {
		days = int(prior.currentExpiry.Sub(now).Hours() / 24)
	}
	return &dto.RenewalEligibility{
		HasActive:       true,
		CanRenew:        true,
		DaysUntilExpiry: days,
		CurrentId:       prior.previousSubId,
	}, nil
}

// CreateOrder creates a one-time gateway order. No local state is written: a
// subscription only comes into existence when its payment is verified, so an
// abandoned checkout leaves nothing behind.
func (s *subscriptionService) CreateOrder(ctx context.Context, userId uuid.UUID, req *dto.CreateOrderRequest) (*dto.CreateOrderResponse, error) {
	productId, err := uuid.Parse(req.ProductId)
	if err != nil {
		return nil, apperror.Validation("invalid product id")
	}
	productType := entity.ProductType(req.ProductType)
	planType := entity.PlanType(req.PlanType)
	now := time.Now()

	portfolioIds, _, err := s.grantedPortfolios(ctx, productType, productId)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	active, err := s.activeGrants(ctx, uow, userId, portfolioIds, now)
	if err != nil {
		return nil, err
	}
	prior, err := s.gatePurchase(active, now)
	if err != nil {
		return nil, err
	}

	price, err := s.catalog.ResolvePrice(ctx, productType, productId, planType)
	if err != nil {
		return nil, err
	}

	notes := gateway.OrderNotes{
		UserId:                   userId.String(),
		ProductType:              string(productType),
		ProductId:                productId.String(),
		PlanType:                 string(planType),
		Category:                 string(price.Category),
		BillingMode:              string(entity.BillingModeOneTime),
		IsRenewal:                prior.isRenewal,
		CompensationDaysEstimate: prior.compensationDays,
	}
	if prior.previousSubId != nil {
		notes.PreviousSubscriptionId = prior.previousSubId.String()
	}

	receipt := utils.ReceiptID("ord")
	order, err := s.gateway.CreateOrder(ctx, price.Amount, currencyINR, receipt, notes)
	if err != nil {
		return nil, apperror.GatewayUnavailable("order create", err)
	}

	s.logger.Info("billing", "gateway order created", map[string]interface{}{
		"user_id":    userId.String(),
		"order_id":   order.Id,
		"amount":     price.Amount,
		"is_renewal": prior.isRenewal,
	})

	return &dto.CreateOrderResponse{
		GatewayOrderId:   order.Id,
		Amount:           price.Amount,
		Currency:         currencyINR,
		Receipt:          receipt,
		CompensationDays: prior.compensationDays,
	}, nil
}

// CreateRecurringMandate sets up a gateway mandate charging a yearly
// commitment in monthly installments, and records pending subscriptions the
// activation webhook will flip to active.
func (s *subscriptionService) CreateRecurringMandate(ctx context.Context, userId uuid.UUID, req *dto.CreateMandateRequest) (*dto.CreateMandateResponse, error) {
	productId, err := uuid.Parse(req.ProductId)
	if err != nil {
		return nil, apperror.Validation("invalid product id")
	}
	productType := entity.ProductType(req.ProductType)
	now := time.Now()

	portfolioIds, sourceBundleId, err := s.grantedPortfolios(ctx, productType, productId)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	active, err := s.activeGrants(ctx, uow, userId, portfolioIds, now)
	if err != nil {
		return nil, err
	}
	prior, err := s.gatePurchase(active, now)
	if err != nil {
		return nil, err
	}

	price, err := s.catalog.ResolvePrice(ctx, productType, productId, entity.PlanTypeYearly)
	if err != nil {
		return nil, err
	}
	monthly := utils.MonthlyInstallment(price.Amount)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Validation("user not found")
	}

	customerId, err := s.ensureGatewayCustomer(ctx, uow, user)
	if err != nil {
		return nil, err
	}

	productName, err := s.catalog.ProductName(ctx, productType, productId)
	if err != nil {
		return nil, err
	}

	planId, err := s.gateway.CreatePlan(ctx, monthly, currencyINR, fmt.Sprintf("%s (yearly, billed monthly)", productName))
	if err != nil {
		return nil, apperror.GatewayUnavailable("plan create", err)
	}

	notes := gateway.OrderNotes{
		UserId:                   userId.String(),
		ProductType:              string(productType),
		ProductId:                productId.String(),
		PlanType:                 string(entity.PlanTypeYearly),
		Category:                 string(price.Category),
		BillingMode:              string(entity.BillingModeRecurring),
		IsRenewal:                prior.isRenewal,
		CompensationDaysEstimate: prior.compensationDays,
	}
	if prior.previousSubId != nil {
		notes.PreviousSubscriptionId = prior.previousSubId.String()
	}

	// The mandate must stay chargeable through the compensated year.
	expireBy := now.AddDate(1, 0, prior.compensationDays)
	mandate, err := s.gateway.CreateMandate(ctx, planId, customerId, mandateInstallments, expireBy, notes)
	if err != nil {
		return nil, apperror.GatewayUnavailable("mandate create", err)
	}

	shares := utils.SplitAmount(price.Amount, len(portfolioIds))

	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Persistence("mandate setup", err)
	}
	defer uow.Rollback()

	mandateId := mandate.Id
	for i, pid := range portfolioIds {
		sub := &entity.Subscription{
			Id:               uuid.New(),
			UserId:           userId,
			ProductType:      entity.ProductTypePortfolio,
			ProductId:        pid,
			SourceBundleId:   sourceBundleId,
			BillingMode:      entity.BillingModeRecurring,
			Category:         price.Category,
			Status:           entity.SubscriptionStatusPending,
			PlanType:         entity.PlanTypeYearly,
			Amount:           shares[i],
			IsRenewal:        prior.isRenewal,
			CompensationDays: prior.compensationDays,
			GatewayMandateId: &mandateId,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		sub.PreviousSubscriptionId = prior.previousSubId
		if err := uow.SubscriptionRepository().Upsert(ctx, sub); err != nil {
			return nil, apperror.Persistence("pending subscription upsert", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.Persistence("mandate setup commit", err)
	}

	s.logger.Info("billing", "recurring mandate created", map[string]interface{}{
		"user_id":    userId.String(),
		"mandate_id": mandate.Id,
		"yearly":     price.Amount,
		"monthly":    monthly,
	})

	return &dto.CreateMandateResponse{
		GatewayMandateId: mandate.Id,
		SetupUrl:         mandate.SetupUrl,
		MonthlyAmount:    monthly,
		YearlyAmount:     price.Amount,
	}, nil
}

func (s *subscriptionService) ensureGatewayCustomer(ctx context.Context, uow unitofwork.UnitOfWork, user *entity.User) (string, error) {
	if user.GatewayCustomerId != nil && *user.GatewayCustomerId != "" {
		return *user.GatewayCustomerId, nil
	}
	customerId, err := s.gateway.CreateCustomer(ctx,
		utils.SanitizeName(user.FullName), user.Email, utils.SanitizePhone(user.Phone))
	if err != nil {
		return "", apperror.GatewayUnavailable("customer create", err)
	}
	if err := uow.UserRepository().SetGatewayCustomerId(ctx, user.Id, customerId); err != nil {
		return "", err
	}
	return customerId, nil
}

// settlementRow is one portfolio's share of a settled payment.
type settlementRow struct {
	portfolioId    uuid.UUID
	sourceBundleId *uuid.UUID
	amount         int64
	category       entity.AccessCategory
	paymentId      string
}

// buildSettlementRows fans a payment out across the portfolios it grants.
// Bundle rows get derived payment ids so each insert stays unique under the
// gateway_payment_id index while remaining traceable to the source payment.
func (s *subscriptionService) buildSettlementRows(ctx context.Context, notes gateway.OrderNotes, total int64, rawPaymentId string) ([]settlementRow, error) {
	productId, err := uuid.Parse(notes.ProductId)
	if err != nil {
		return nil, apperror.Validation("order notes carry an invalid product id")
	}

	if entity.ProductType(notes.ProductType) == entity.ProductTypePortfolio {
		return []settlementRow{{
			portfolioId: productId,
			amount:      total,
			category:    entity.AccessCategory(notes.Category),
			paymentId:   rawPaymentId,
		}}, nil
	}

	bundle, portfolios, err := s.catalog.ExpandBundle(ctx, productId)
	if err != nil {
		return nil, err
	}
	shares := utils.SplitAmount(total, len(portfolios))
	rows := make([]settlementRow, len(portfolios))
	bundleId := bundle.Id
	for i, p := range portfolios {
		rows[i] = settlementRow{
			portfolioId:    p.Id,
			sourceBundleId: &bundleId,
			amount:         shares[i],
			category:       entity.AccessCategory(notes.Category),
			paymentId:      fmt.Sprintf("%s-%s", rawPaymentId, p.Id),
		}
	}
	return rows, nil
}

// VerifyPayment settles a completed one-time checkout. The gateway order's
// embedded notes are the source of truth for what was bought; the client only
// supplies the payment identifiers and signature.
func (s *subscriptionService) VerifyPayment(ctx context.Context, userId uuid.UUID, req *dto.VerifyPaymentRequest) (*dto.SettlementSummary, error) {
	now := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	// Fast path for redelivered confirmations of single-portfolio payments.
	exists, err := uow.PaymentRepository().ExistsByGatewayPaymentId(ctx, req.GatewayPaymentId)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.duplicateSummary(ctx, uow, req.GatewayPaymentId)
	}

	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderId, req.GatewayPaymentId, req.Signature) {
		s.logger.Warn("billing", "payment signature rejected", map[string]interface{}{
			"user_id":  userId.String(),
			"order_id": req.GatewayOrderId,
		})
		return nil, apperror.InvalidSignature("payment signature verification failed")
	}

	order, err := s.gateway.FetchOrder(ctx, req.GatewayOrderId)
	if err != nil {
		return nil, apperror.GatewayUnavailable("order fetch", err)
	}
	notes := order.Notes
	if notes.UserId != userId.String() {
		return nil, apperror.Validation("order does not belong to the caller")
	}

	rows, err := s.buildSettlementRows(ctx, notes, order.Amount, req.GatewayPaymentId)
	if err != nil {
		return nil, err
	}

	// Bundle payments store derived ids, so the raw-id check above cannot see
	// them. The first derived id stands in for the whole fan-out.
	exists, err = uow.PaymentRepository().ExistsByGatewayPaymentId(ctx, rows[0].paymentId)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.duplicateSummary(ctx, uow, rows[0].paymentId)
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Persistence("settlement", err)
	}
	defer uow.Rollback()

	summary := &dto.SettlementSummary{IsRenewal: notes.IsRenewal}
	planType := entity.PlanType(notes.PlanType)

	for _, row := range rows {
		sub, compDays, err := s.settleRow(ctx, uow, userId, row, planType, entity.BillingMode(notes.BillingMode), now)
		if err != nil {
			return nil, err
		}

		payment := &entity.PaymentRecord{
			Id:               uuid.New(),
			UserId:           userId,
			SubscriptionId:   &sub.Id,
			Amount:           row.amount,
			GatewayPaymentId: row.paymentId,
			GatewayOrderId:   req.GatewayOrderId,
			Status:           entity.PaymentStatusVerified,
			CreatedAt:        now,
		}
		if err := uow.PaymentRepository().Create(ctx, payment); err != nil {
			if apperror.IsDuplicatePayment(err) {
				// A concurrent settlement won the insert race between the
				// existence check and here. Converge on its outcome.
				return s.duplicateSummary(ctx, s.uowFactory.NewUnitOfWork(ctx), row.paymentId)
			}
			return nil, apperror.Persistence("payment record insert", err)
		}

		summary.SubscriptionIds = append(summary.SubscriptionIds, sub.Id)
		summary.AmountSettled += row.amount
		if compDays > summary.CompensationDays {
			summary.CompensationDays = compDays
		}
		if sub.ExpiresAt != nil && sub.ExpiresAt.After(summary.ExpiresAt) {
			summary.ExpiresAt = *sub.ExpiresAt
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.Persistence("settlement commit", err)
	}

	s.afterSettlement(ctx, userId, req.GatewayPaymentId, summary)
	return summary, nil
}

// settleRow activates one portfolio grant. The natural-key upsert makes the
// prior same-mode row the row being overwritten, so renewal replaces rather
// than duplicates; an active grant on the other billing mode is cancelled.
func (s *subscriptionService) settleRow(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, row settlementRow, planType entity.PlanType, mode entity.BillingMode, now time.Time) (*entity.Subscription, int, error) {
	subs, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ByProduct{ProductType: string(entity.ProductTypePortfolio), ProductID: row.portfolioId},
	)
	if err != nil {
		return nil, 0, apperror.Persistence("prior subscription lookup", err)
	}

	// Compensation is recomputed here from the live row, not the estimate
	// embedded at order time, so the days carried over reflect the moment of
	// settlement.
	var prior *entity.Subscription
	for _, sub := range subs {
		if !sub.IsActiveAt(now) {
			continue
		}
		if prior == nil || (sub.ExpiresAt != nil && prior.ExpiresAt != nil && sub.ExpiresAt.After(*prior.ExpiresAt)) {
			prior = sub
		}
		if sub.BillingMode != mode {
			cancelled := *sub
			cancelled.Status = entity.SubscriptionStatusCancelled
			cancelled.UpdatedAt = now
			if err := uow.SubscriptionRepository().Update(ctx, &cancelled); err != nil {
				return nil, 0, apperror.Persistence("cross-mode cancel", err)
			}
		}
	}

	compDays := 0
	var prevId *uuid.UUID
	if prior != nil {
		compDays = utils.CompensationDays(*prior.ExpiresAt, now)
		id := prior.Id
		prevId = &id
	}

	periodEnd, err := utils.PlanPeriodEnd(string(planType), now)
	if err != nil {
		return nil, 0, apperror.Validation("%s", err.Error())
	}
	expiresAt := periodEnd.AddDate(0, 0, compDays)

	sub := &entity.Subscription{
		Id:                     uuid.New(),
		UserId:                 userId,
		ProductType:            entity.ProductTypePortfolio,
		ProductId:              row.portfolioId,
		SourceBundleId:         row.sourceBundleId,
		BillingMode:            mode,
		Category:               row.category,
		Status:                 entity.SubscriptionStatusActive,
		PlanType:               planType,
		Amount:                 row.amount,
		ExpiresAt:              &expiresAt,
		LastPaymentAt:          &now,
		IsRenewal:              prior != nil,
		CompensationDays:       compDays,
		PreviousSubscriptionId: prevId,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := uow.SubscriptionRepository().Upsert(ctx, sub); err != nil {
		return nil, 0, apperror.Persistence("subscription upsert", err)
	}
	return sub, compDays, nil
}

// duplicateSummary reports an already-settled payment as success so client
// retries converge instead of erroring.
func (s *subscriptionService) duplicateSummary(ctx context.Context, uow unitofwork.UnitOfWork, gatewayPaymentId string) (*dto.SettlementSummary, error) {
	payment, err := uow.PaymentRepository().FindOne(ctx, specification.Filter("gateway_payment_id", gatewayPaymentId))
	if err != nil {
		return nil, err
	}
	summary := &dto.SettlementSummary{Duplicate: true}
	if payment != nil {
		summary.AmountSettled = payment.Amount
		if payment.SubscriptionId != nil {
			summary.SubscriptionIds = []uuid.UUID{*payment.SubscriptionId}
			sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: *payment.SubscriptionId})
			if err == nil && sub != nil && sub.ExpiresAt != nil {
				summary.ExpiresAt = *sub.ExpiresAt
				summary.IsRenewal = sub.IsRenewal
				summary.CompensationDays = sub.CompensationDays
			}
		}
	}
	return summary, nil
}

func (s *subscriptionService) afterSettlement(ctx context.Context, userId uuid.UUID, gatewayPaymentId string, summary *dto.SettlementSummary) {
	if err := s.access.RecomputeForUser(ctx, userId); err != nil {
		s.logger.Error("billing", "premium flag recompute failed after settlement", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}

	if s.eventPublisher != nil {
		evt := events.New(events.TypePaymentSettled, map[string]interface{}{
			"user_id":           userId.String(),
			"payment_id":        gatewayPaymentId,
			"amount":            summary.AmountSettled,
			"is_renewal":        summary.IsRenewal,
			"compensation_days": summary.CompensationDays,
			"expires_at":        summary.ExpiresAt,
		})
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("billing", "failed to publish settlement event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// ProcessGatewayWebhook verifies and records a raw webhook delivery, then
// dispatches the parsed event. Redelivered event ids are acknowledged without
// reprocessing.
func (s *subscriptionService) ProcessGatewayWebhook(ctx context.Context, eventId string, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.logger.Warn("billing", "webhook signature rejected", map[string]interface{}{
			"event_id": eventId,
		})
		return apperror.InvalidSignature("webhook signature verification failed")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	// Dedup keys on the processed flag, not on the log row existing: a row
	// left by a failed handling attempt must stay retryable or the gateway's
	// redelivery gets acknowledged without the event ever being applied.
	alreadyLogged := false
	if eventId != "" {
		prior, err := uow.WebhookEventRepository().FindByGatewayEventId(ctx, eventId)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior.Processed {
				s.logger.Info("billing", "webhook already processed, acknowledging", map[string]interface{}{
					"event_id": eventId,
				})
				return nil
			}
			alreadyLogged = true
		}
	}

	var req dto.GatewayWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperror.Validation("malformed webhook payload")
	}

	if eventId != "" && !alreadyLogged {
		logRow := &entity.WebhookEventLog{
			Id:             uuid.New(),
			GatewayEventId: eventId,
			Event:          req.Event,
			Payload:        body,
			CreatedAt:      time.Now(),
		}
		if err := uow.WebhookEventRepository().Create(ctx, logRow); err != nil {
			return err
		}
	}

	event := &entity.MandateEvent{
		Kind:      entity.ParseMandateEventKind(req.Event),
		EventId:   eventId,
		MandateId: req.Payload.Subscription.Entity.Id,
		UserId:    req.NoteString("user_id"),
		PaymentId: req.Payload.Payment.Entity.Id,
		Amount:    req.Payload.Payment.Entity.Amount,
		RawEvent:  req.Event,
	}

	if err := s.HandleMandateWebhookEvent(ctx, event); err != nil {
		return err
	}

	if eventId != "" {
		if err := uow.WebhookEventRepository().MarkProcessed(ctx, eventId); err != nil {
			s.logger.Warn("billing", "failed to mark webhook processed", map[string]interface{}{
				"event_id": eventId,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

// HandleMandateWebhookEvent applies a gateway mandate transition. Callers have
// already verified the webhook signature and logged the delivery.
func (s *subscriptionService) HandleMandateWebhookEvent(ctx context.Context, event *entity.MandateEvent) error {
	now := time.Now()

	switch event.Kind {
	case entity.MandateEventAuthenticated, entity.MandateEventActivated:
		return s.activateMandate(ctx, event, now)

	case entity.MandateEventCharged:
		return s.recordInstallment(ctx, event, now)

	case entity.MandateEventHalted, entity.MandateEventCancelled:
		return s.closeMandate(ctx, event, entity.SubscriptionStatusCancelled, now)

	case entity.MandateEventExpired:
		return s.closeMandate(ctx, event, entity.SubscriptionStatusExpired, now)

	default:
		s.logger.Info("billing", "ignoring unrecognized mandate event", map[string]interface{}{
			"event":      event.RawEvent,
			"mandate_id": event.MandateId,
		})
		return nil
	}
}

// activateMandate flips the mandate's pending grants to active and stamps
// each row's expiry from its own stored compensation.
func (s *subscriptionService) activateMandate(ctx context.Context, event *entity.MandateEvent, now time.Time) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.ByMandate{MandateID: event.MandateId})
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		s.logger.Warn("billing", "mandate event for unknown mandate", map[string]interface{}{
			"mandate_id": event.MandateId,
			"event":      event.RawEvent,
		})
		return nil
	}

	userId := subs[0].UserId

	// The notes embed the purchaser at mandate creation; local rows are the
	// source of truth, a mismatch only flags gateway-side tampering or reuse.
	if event.UserId != "" && event.UserId != userId.String() {
		s.logger.Warn("billing", "mandate notes user does not match local grants", map[string]interface{}{
			"mandate_id": event.MandateId,
			"notes_user": event.UserId,
			"local_user": userId.String(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Persistence("mandate activation", err)
	}
	defer uow.Rollback()
	for _, sub := range subs {
		if sub.Status == entity.SubscriptionStatusActive {
			continue // redelivered activation
		}
		periodEnd, err := utils.PlanPeriodEnd(string(sub.PlanType), now)
		if err != nil {
			return apperror.Validation("%s", err.Error())
		}
		expiresAt := periodEnd.AddDate(0, 0, sub.CompensationDays)

		// A renewal replaces the one-time grant it grew out of.
		if sub.PreviousSubscriptionId != nil {
			_, err := uow.SubscriptionRepository().UpdateStatus(ctx, entity.SubscriptionStatusCancelled, nil,
				specification.ByID{ID: *sub.PreviousSubscriptionId},
				specification.StatusIn{Statuses: []string{string(entity.SubscriptionStatusActive)}},
			)
			if err != nil {
				return apperror.Persistence("prior grant cancel", err)
			}
		}

		sub.Status = entity.SubscriptionStatusActive
		sub.ExpiresAt = &expiresAt
		sub.LastPaymentAt = &now
		sub.UpdatedAt = now
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return apperror.Persistence("mandate activation update", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return apperror.Persistence("mandate activation commit", err)
	}

	if err := s.access.RecomputeForUser(ctx, userId); err != nil {
		s.logger.Error("billing", "premium flag recompute failed after activation", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}

	if s.eventPublisher != nil {
		evt := events.New(events.TypeSubscriptionActivated, map[string]interface{}{
			"user_id":    userId.String(),
			"mandate_id": event.MandateId,
		})
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("billing", "failed to publish activation event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// recordInstallment books one monthly charge against the mandate's grants.
func (s *subscriptionService) recordInstallment(ctx context.Context, event *entity.MandateEvent, now time.Time) error {
	if event.PaymentId == "" {
		return apperror.Validation("charged event carries no payment id")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	subs, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.ByMandate{MandateID: event.MandateId},
		specification.OrderBy{Field: "product_id", Desc: false},
	)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		s.logger.Warn("billing", "charge for unknown mandate", map[string]interface{}{
			"mandate_id": event.MandateId,
			"payment_id": event.PaymentId,
		})
		return nil
	}

	paymentIds := make([]string, len(subs))
	for i, sub := range subs {
		if len(subs) == 1 {
			paymentIds[i] = event.PaymentId
		} else {
			paymentIds[i] = fmt.Sprintf("%s-%s", event.PaymentId, sub.ProductId)
		}
	}

	// Redelivery guard: the first fan-out id stands in for the whole charge.
	exists, err := uow.PaymentRepository().ExistsByGatewayPaymentId(ctx, paymentIds[0])
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("billing", "installment already recorded, skipping", map[string]interface{}{
			"payment_id": event.PaymentId,
		})
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Persistence("installment", err)
	}
	defer uow.Rollback()

	shares := utils.SplitAmount(event.Amount, len(subs))
	for i, sub := range subs {
		payment := &entity.PaymentRecord{
			Id:               uuid.New(),
			UserId:           sub.UserId,
			SubscriptionId:   &sub.Id,
			Amount:           shares[i],
			GatewayPaymentId: paymentIds[i],
			Status:           entity.PaymentStatusVerified,
			CreatedAt:        now,
		}
		if err := uow.PaymentRepository().Create(ctx, payment); err != nil {
			if apperror.IsDuplicatePayment(err) {
				s.logger.Info("billing", "installment raced a concurrent delivery, skipping", map[string]interface{}{
					"payment_id": event.PaymentId,
				})
				return nil
			}
			return apperror.Persistence("installment record insert", err)
		}
	}

	if _, err := uow.SubscriptionRepository().TouchLastPayment(ctx, now, specification.ByMandate{MandateID: event.MandateId}); err != nil {
		return apperror.Persistence("installment touch", err)
	}

	if err := uow.Commit(); err != nil {
		return apperror.Persistence("installment commit", err)
	}
	return nil
}

// closeMandate ends every grant funded by the mandate in one transition.
func (s *subscriptionService) closeMandate(ctx context.Context, event *entity.MandateEvent, status entity.SubscriptionStatus, now time.Time) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	userIds, err := uow.SubscriptionRepository().DistinctUserIds(ctx, specification.ByMandate{MandateID: event.MandateId})
	if err != nil {
		return err
	}

	affected, err := uow.SubscriptionRepository().UpdateStatus(ctx, status, nil,
		specification.ByMandate{MandateID: event.MandateId},
		specification.StatusIn{Statuses: []string{
			string(entity.SubscriptionStatusPending),
			string(entity.SubscriptionStatusActive),
		}},
	)
	if err != nil {
		return apperror.Persistence("mandate close", err)
	}

	s.logger.Info("billing", "mandate closed", map[string]interface{}{
		"mandate_id": event.MandateId,
		"status":     string(status),
		"affected":   affected,
	})

	if affected > 0 {
		if err := s.access.RecomputeForUsers(ctx, userIds); err != nil {
			s.logger.Error("billing", "premium flag recompute failed after mandate close", map[string]interface{}{
				"mandate_id": event.MandateId,
				"error":      err.Error(),
			})
		}
		if s.eventPublisher != nil {
			code := events.TypeSubscriptionCancelled
			if status == entity.SubscriptionStatusExpired {
				code = events.TypeSubscriptionExpired
			}
			evt := events.New(code, map[string]interface{}{
				"mandate_id": event.MandateId,
				"affected":   affected,
			})
			if err := s.eventPublisher.Publish(ctx, evt); err != nil {
				s.logger.Warn("billing", "failed to publish mandate close event", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
	return nil
}

// CancelSubscription ends a grant at the owner's request. When the grant is
// mandate-funded the remote cancel is best effort: local state is closed even
// if the gateway call fails, and the eventual cancelled webhook is a no-op.
func (s *subscriptionService) CancelSubscription(ctx context.Context, userId uuid.UUID, subscriptionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: subscriptionId})
	if err != nil {
		return err
	}
	if sub == nil || sub.UserId != userId {
		return apperror.Validation("subscription not found")
	}
	if sub.Status == entity.SubscriptionStatusCancelled || sub.Status == entity.SubscriptionStatusExpired {
		return nil
	}

	if sub.GatewayMandateId != nil && *sub.GatewayMandateId != "" {
		if err := s.gateway.CancelMandate(ctx, *sub.GatewayMandateId); err != nil {
			s.logger.Warn("billing", "remote mandate cancel failed, closing locally", map[string]interface{}{
				"mandate_id": *sub.GatewayMandateId,
				"error":      err.Error(),
			})
		}
		// Every grant funded by the mandate goes with it.
		_, err = uow.SubscriptionRepository().UpdateStatus(ctx, entity.SubscriptionStatusCancelled, nil,
			specification.ByMandate{MandateID: *sub.GatewayMandateId},
			specification.StatusIn{Statuses: []string{
				string(entity.SubscriptionStatusPending),
				string(entity.SubscriptionStatusActive),
			}},
		)
		if err != nil {
			return apperror.Persistence("mandate cancel", err)
		}
	} else {
		sub.Status = entity.SubscriptionStatusCancelled
		sub.UpdatedAt = time.Now()
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return apperror.Persistence("subscription cancel", err)
		}
	}

	if err := s.access.RecomputeForUser(ctx, userId); err != nil {
		s.logger.Error("billing", "premium flag recompute failed after cancel", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}

	if s.eventPublisher != nil {
		evt := events.New(events.TypeSubscriptionCancelled, map[string]interface{}{
			"user_id":         userId.String(),
			"subscription_id": subscriptionId.String(),
		})
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("billing", "failed to publish cancel event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, userId uuid.UUID) ([]*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	subs, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		res = append(res, &dto.SubscriptionResponse{
			Id:               sub.Id,
			ProductType:      string(sub.ProductType),
			ProductId:        sub.ProductId,
			SourceBundleId:   sub.SourceBundleId,
			BillingMode:      string(sub.BillingMode),
			Category:         string(sub.Category),
			Status:           string(sub.Status),
			PlanType:         string(sub.PlanType),
			Amount:           sub.Amount,
			ExpiresAt:        sub.ExpiresAt,
			LastPaymentAt:    sub.LastPaymentAt,
			IsRenewal:        sub.IsRenewal,
			CompensationDays: sub.CompensationDays,
			DaysUntilExpiry:  sub.DaysUntilExpiry(now),
			CanRenew:         sub.IsActiveAt(now) && sub.WithinRenewalWindow(now),
		})
	}
	return res, nil
}
