package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-commerce-be/internal/dto"
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/apperror"
	"portfolio-commerce-be/internal/repository/contract"
	"portfolio-commerce-be/internal/repository/specification"
	"portfolio-commerce-be/internal/repository/unitofwork"
	"portfolio-commerce-be/pkg/gateway"
)

// --- in-memory fakes ---

type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

// subMatches interprets the query specifications against an in-memory row.
func subMatches(sub *entity.Subscription, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			if sub.Id != s.ID {
				return false
			}
		case specification.UserOwnedBy:
			if sub.UserId != s.UserID {
				return false
			}
		case specification.ByProduct:
			if string(sub.ProductType) != s.ProductType || sub.ProductId != s.ProductID {
				return false
			}
		case specification.ByMandate:
			if sub.GatewayMandateId == nil || *sub.GatewayMandateId != s.MandateID {
				return false
			}
		case specification.StatusIn:
			found := false
			for _, st := range s.Statuses {
				if string(sub.Status) == st {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case specification.BillingModeIs:
			if string(sub.BillingMode) != s.Mode {
				return false
			}
		case specification.ExpiresBefore:
			if sub.ExpiresAt == nil || !sub.ExpiresAt.Before(s.At) {
				return false
			}
		case specification.ExpiresBetween:
			if sub.ExpiresAt == nil || sub.ExpiresAt.Before(s.From) || sub.ExpiresAt.After(s.To) {
				return false
			}
		case specification.StalledSince:
			if sub.LastPaymentAt != nil {
				if !sub.LastPaymentAt.Before(s.Cutoff) {
					return false
				}
			} else if !sub.CreatedAt.Before(s.Cutoff) {
				return false
			}
		case specification.ReminderNotSentSince:
			if sub.LastReminderSent != nil && !sub.LastReminderSent.Before(s.Cutoff) {
				return false
			}
		}
	}
	return true
}

type fakeSubscriptionRepo struct {
	subs []*entity.Subscription
}

func (r *fakeSubscriptionRepo) naturalKeyMatch(s *entity.Subscription) *entity.Subscription {
	for _, existing := range r.subs {
		if existing.UserId == s.UserId && existing.ProductType == s.ProductType &&
			existing.ProductId == s.ProductId && existing.BillingMode == s.BillingMode {
			return existing
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) Upsert(_ context.Context, s *entity.Subscription) error {
	if existing := r.naturalKeyMatch(s); existing != nil {
		id, createdAt := existing.Id, existing.CreatedAt
		*existing = *s
		existing.Id, existing.CreatedAt = id, createdAt
		*s = *existing
		return nil
	}
	clone := *s
	r.subs = append(r.subs, &clone)
	return nil
}

func (r *fakeSubscriptionRepo) Update(_ context.Context, s *entity.Subscription) error {
	for _, existing := range r.subs {
		if existing.Id == s.Id {
			*existing = *s
			return nil
		}
	}
	clone := *s
	r.subs = append(r.subs, &clone)
	return nil
}

func (r *fakeSubscriptionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	for _, sub := range r.subs {
		if subMatches(sub, specs) {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	var out []*entity.Subscription
	for _, sub := range r.subs {
		if subMatches(sub, specs) {
			clone := *sub
			out = append(out, &clone)
		}
	}
	for _, spec := range specs {
		if ob, ok := spec.(specification.OrderBy); ok && ob.Field == "product_id" {
			sort.Slice(out, func(i, j int) bool {
				return out[i].ProductId.String() < out[j].ProductId.String()
			})
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) UpdateStatus(_ context.Context, status entity.SubscriptionStatus, lastPaymentAt *time.Time, specs ...specification.Specification) (int64, error) {
	var affected int64
	for _, sub := range r.subs {
		if subMatches(sub, specs) {
			sub.Status = status
			if lastPaymentAt != nil {
				t := *lastPaymentAt
				sub.LastPaymentAt = &t
			}
			affected++
		}
	}
	return affected, nil
}

func (r *fakeSubscriptionRepo) DistinctUserIds(_ context.Context, specs ...specification.Specification) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, sub := range r.subs {
		if subMatches(sub, specs) {
			if _, ok := seen[sub.UserId]; !ok {
				seen[sub.UserId] = struct{}{}
				ids = append(ids, sub.UserId)
			}
		}
	}
	return ids, nil
}

func (r *fakeSubscriptionRepo) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, sub := range r.subs {
		if sub.Id == id {
			t := at
			sub.LastReminderSent = &t
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) TouchLastPayment(_ context.Context, at time.Time, specs ...specification.Specification) (int64, error) {
	var affected int64
	for _, sub := range r.subs {
		if subMatches(sub, specs) {
			t := at
			sub.LastPaymentAt = &t
			affected++
		}
	}
	return affected, nil
}

type fakePaymentRepo struct {
	payments []*entity.PaymentRecord
}

func (r *fakePaymentRepo) Create(_ context.Context, p *entity.PaymentRecord) error {
	for _, existing := range r.payments {
		if existing.GatewayPaymentId == p.GatewayPaymentId {
			return &apperror.DuplicatePaymentError{GatewayPaymentId: p.GatewayPaymentId}
		}
	}
	clone := *p
	r.payments = append(r.payments, &clone)
	return nil
}

func (r *fakePaymentRepo) ExistsByGatewayPaymentId(_ context.Context, id string) (bool, error) {
	for _, p := range r.payments {
		if p.GatewayPaymentId == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.PaymentRecord, error) {
	for _, p := range r.payments {
		match := true
		for _, spec := range specs {
			if f, ok := spec.(specification.FilterBy); ok && f.Field == "gateway_payment_id" {
				if p.GatewayPaymentId != f.Value.(string) {
					match = false
				}
			}
		}
		if match {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindAll(_ context.Context, _ ...specification.Specification) ([]*entity.PaymentRecord, error) {
	out := make([]*entity.PaymentRecord, len(r.payments))
	for i, p := range r.payments {
		clone := *p
		out[i] = &clone
	}
	return out, nil
}

type fakeProductRepo struct {
	portfolios map[uuid.UUID]*entity.Portfolio
	bundles    map[uuid.UUID]*entity.Bundle
}

func (r *fakeProductRepo) FindPortfolio(_ context.Context, id uuid.UUID) (*entity.Portfolio, error) {
	return r.portfolios[id], nil
}

func (r *fakeProductRepo) FindPortfolios(_ context.Context, ids []uuid.UUID) ([]*entity.Portfolio, error) {
	var out []*entity.Portfolio
	for _, id := range ids {
		if p, ok := r.portfolios[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) FindBundle(_ context.Context, id uuid.UUID) (*entity.Bundle, error) {
	return r.bundles[id], nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func (r *fakeUserRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.User, error) {
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			return r.users[byId.ID], nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetGatewayCustomerId(_ context.Context, userId uuid.UUID, customerId string) error {
	if u, ok := r.users[userId]; ok {
		u.GatewayCustomerId = &customerId
	}
	return nil
}

func (r *fakeUserRepo) SetPremiumFlag(_ context.Context, userId uuid.UUID, premium bool) error {
	if u, ok := r.users[userId]; ok {
		u.IsPremium = premium
	}
	return nil
}

type fakeWebhookEventRepo struct {
	events map[string]*entity.WebhookEventLog
}

func (r *fakeWebhookEventRepo) Create(_ context.Context, e *entity.WebhookEventLog) error {
	if r.events == nil {
		r.events = map[string]*entity.WebhookEventLog{}
	}
	clone := *e
	r.events[e.GatewayEventId] = &clone
	return nil
}

func (r *fakeWebhookEventRepo) FindByGatewayEventId(_ context.Context, id string) (*entity.WebhookEventLog, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (r *fakeWebhookEventRepo) MarkProcessed(_ context.Context, id string) error {
	if e, ok := r.events[id]; ok {
		e.Processed = true
	}
	return nil
}

type fakeUnitOfWork struct {
	subs     *fakeSubscriptionRepo
	payments *fakePaymentRepo
	products *fakeProductRepo
	users    *fakeUserRepo
	webhooks *fakeWebhookEventRepo

	// subsOverride and paymentsOverride let a test interpose on a repo.
	subsOverride     contract.SubscriptionRepository
	paymentsOverride contract.PaymentRepository

	begun     int
	committed int
}

func (u *fakeUnitOfWork) Begin(context.Context) error { u.begun++; return nil }
func (u *fakeUnitOfWork) Commit() error               { u.committed++; return nil }
func (u *fakeUnitOfWork) Rollback() error             { return nil }

func (u *fakeUnitOfWork) SubscriptionRepository() contract.SubscriptionRepository {
	if u.subsOverride != nil {
		return u.subsOverride
	}
	return u.subs
}
func (u *fakeUnitOfWork) PaymentRepository() contract.PaymentRepository {
	if u.paymentsOverride != nil {
		return u.paymentsOverride
	}
	return u.payments
}
func (u *fakeUnitOfWork) ProductRepository() contract.ProductRepository           { return u.products }
func (u *fakeUnitOfWork) UserRepository() contract.UserRepository                 { return u.users }
func (u *fakeUnitOfWork) WebhookEventRepository() contract.WebhookEventRepository { return u.webhooks }

type fakeFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type fakeGateway struct {
	orders       map[string]*gateway.Order
	mandates     map[string]*gateway.Mandate
	sigOK        bool
	webhookSigOK bool

	createdOrders    int
	cancelledIds     []string
	cancelErr        error
	nextCustomerId   string
	createdCustomers int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, notes gateway.OrderNotes) (*gateway.Order, error) {
	g.createdOrders++
	order := &gateway.Order{
		Id:       fmt.Sprintf("order_%d", g.createdOrders),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}
	if g.orders == nil {
		g.orders = map[string]*gateway.Order{}
	}
	g.orders[order.Id] = order
	return order, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderId string) (*gateway.Order, error) {
	order, ok := g.orders[orderId]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderId)
	}
	return order, nil
}

func (g *fakeGateway) CreateCustomer(context.Context, string, string, string) (string, error) {
	g.createdCustomers++
	if g.nextCustomerId != "" {
		return g.nextCustomerId, nil
	}
	return fmt.Sprintf("cust_%d", g.createdCustomers), nil
}

func (g *fakeGateway) CreatePlan(context.Context, int64, string, string) (string, error) {
	return "plan_test", nil
}

func (g *fakeGateway) CreateMandate(_ context.Context, planId, customerId string, _ int, _ time.Time, notes gateway.OrderNotes) (*gateway.Mandate, error) {
	mandate := &gateway.Mandate{
		Id:       "sub_mandate_1",
		Status:   "created",
		SetupUrl: "https://rzp.test/m/1",
		Notes:    notes,
	}
	if g.mandates == nil {
		g.mandates = map[string]*gateway.Mandate{}
	}
	g.mandates[mandate.Id] = mandate
	return mandate, nil
}

func (g *fakeGateway) FetchMandate(_ context.Context, id string) (*gateway.Mandate, error) {
	return g.mandates[id], nil
}

func (g *fakeGateway) CancelMandate(_ context.Context, id string) error {
	g.cancelledIds = append(g.cancelledIds, id)
	return g.cancelErr
}

func (g *fakeGateway) VerifyPaymentSignature(string, string, string) bool { return g.sigOK }
func (g *fakeGateway) VerifyWebhookSignature([]byte, string) bool        { return g.webhookSigOK }

type fakeAccess struct {
	recomputed []uuid.UUID
}

func (a *fakeAccess) RecomputeForUser(_ context.Context, id uuid.UUID) error {
	a.recomputed = append(a.recomputed, id)
	return nil
}

func (a *fakeAccess) RecomputeForUsers(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := a.RecomputeForUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (a *fakeAccess) HasPremiumAccess(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

// --- fixture ---

type fixture struct {
	svc     ISubscriptionService
	uow     *fakeUnitOfWork
	gateway *fakeGateway
	access  *fakeAccess

	userId      uuid.UUID
	portfolioId uuid.UUID
	bundleId    uuid.UUID
	memberIds   []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	userId := uuid.New()
	portfolioId := uuid.New()
	memberIds := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sort.Slice(memberIds, func(i, j int) bool { return memberIds[i].String() < memberIds[j].String() })
	bundleId := uuid.New()

	products := &fakeProductRepo{
		portfolios: map[uuid.UUID]*entity.Portfolio{
			portfolioId: {
				Id: portfolioId, Name: "Steady Growth", Category: entity.CategoryPremium,
				PriceMonthly: 99900, PriceQuarterly: 269900, PriceYearly: 999900, IsActive: true,
			},
		},
		bundles: map[uuid.UUID]*entity.Bundle{
			bundleId: {
				Id: bundleId, Name: "All Access", Category: entity.CategoryPremium,
				PriceMonthly: 199900, PriceYearly: 1999900,
				PortfolioIds: memberIds, IsActive: true,
			},
		},
	}
	for _, id := range memberIds {
		products.portfolios[id] = &entity.Portfolio{
			Id: id, Name: "Member " + id.String()[:8], Category: entity.CategoryPremium,
			PriceMonthly: 79900, IsActive: true,
		}
	}

	uow := &fakeUnitOfWork{
		subs:     &fakeSubscriptionRepo{},
		payments: &fakePaymentRepo{},
		products: products,
		users: &fakeUserRepo{users: map[uuid.UUID]*entity.User{
			userId: {Id: userId, Email: "asha@example.com", FullName: "Asha Rao", Phone: "+919876543210"},
		}},
		webhooks: &fakeWebhookEventRepo{},
	}
	factory := &fakeFactory{uow: uow}
	gw := &fakeGateway{sigOK: true, webhookSigOK: true}
	access := &fakeAccess{}

	svc := NewSubscriptionService(
		factory,
		NewCatalogService(factory),
		gw,
		access,
		nil,
		noopLogger{},
	)

	return &fixture{
		svc: svc, uow: uow, gateway: gw, access: access,
		userId: userId, portfolioId: portfolioId, bundleId: bundleId, memberIds: memberIds,
	}
}

func (f *fixture) seedActiveSubscription(expiresAt time.Time) *entity.Subscription {
	now := time.Now()
	lastPayment := now.AddDate(0, -1, 0)
	sub := &entity.Subscription{
		Id:            uuid.New(),
		UserId:        f.userId,
		ProductType:   entity.ProductTypePortfolio,
		ProductId:     f.portfolioId,
		BillingMode:   entity.BillingModeOneTime,
		Category:      entity.CategoryPremium,
		Status:        entity.SubscriptionStatusActive,
		PlanType:      entity.PlanTypeMonthly,
		Amount:        99900,
		ExpiresAt:     &expiresAt,
		LastPaymentAt: &lastPayment,
		CreatedAt:     now.AddDate(0, -1, 0),
		UpdatedAt:     now.AddDate(0, -1, 0),
	}
	f.uow.subs.subs = append(f.uow.subs.subs, sub)
	return sub
}

func (f *fixture) createVerifiedOrder(t *testing.T, req *dto.CreateOrderRequest) *dto.VerifyPaymentRequest {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), f.userId, req)
	require.NoError(t, err)
	return &dto.VerifyPaymentRequest{
		GatewayOrderId:   res.GatewayOrderId,
		GatewayPaymentId: "pay_" + uuid.NewString()[:8],
		Signature:        "sig",
	}
}

// --- tests ---

func TestVerifyPaymentSettlesPortfolio(t *testing.T) {
	f := newFixture(t)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})

	summary, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)

	assert.False(t, summary.Duplicate)
	assert.False(t, summary.IsRenewal)
	assert.Equal(t, int64(99900), summary.AmountSettled)
	require.Len(t, summary.SubscriptionIds, 1)

	require.Len(t, f.uow.subs.subs, 1)
	sub := f.uow.subs.subs[0]
	assert.Equal(t, entity.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, entity.BillingModeOneTime, sub.BillingMode)
	require.NotNil(t, sub.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *sub.ExpiresAt, time.Minute)

	require.Len(t, f.uow.payments.payments, 1)
	assert.Equal(t, verify.GatewayPaymentId, f.uow.payments.payments[0].GatewayPaymentId)

	assert.Contains(t, f.access.recomputed, f.userId)
}

func TestVerifyPaymentDuplicateIsSuccessShaped(t *testing.T) {
	f := newFixture(t)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})

	first, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	commitsAfterFirst := f.uow.committed

	second, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.SubscriptionIds, second.SubscriptionIds)

	assert.Len(t, f.uow.payments.payments, 1)
	assert.Equal(t, commitsAfterFirst, f.uow.committed, "duplicate must not open a transaction")
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})
	f.gateway.sigOK = false

	_, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidSignature(err))

	assert.Empty(t, f.uow.subs.subs, "no subscription may exist after a rejected signature")
	assert.Empty(t, f.uow.payments.payments)
}

func TestVerifyPaymentRenewalCarriesCompensation(t *testing.T) {
	f := newFixture(t)

	// Prior subscription with 3 whole days of access left.
	oldExpiry := time.Now().Add(72 * time.Hour)
	prior := f.seedActiveSubscription(oldExpiry)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
		IsRenewal:   true,
	})

	summary, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)

	assert.True(t, summary.IsRenewal)
	assert.Equal(t, 3, summary.CompensationDays)

	// The natural key keeps one row per (user, product, mode).
	require.Len(t, f.uow.subs.subs, 1)
	sub := f.uow.subs.subs[0]
	assert.Equal(t, prior.Id, sub.Id, "upsert must land on the surviving row")
	assert.True(t, sub.IsRenewal)
	assert.Equal(t, 3, sub.CompensationDays)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 3), *sub.ExpiresAt, time.Minute)
}

func TestVerifyPaymentBundleFanOut(t *testing.T) {
	f := newFixture(t)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "bundle",
		ProductId:   f.bundleId.String(),
		PlanType:    "monthly",
	})

	summary, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)

	require.Len(t, summary.SubscriptionIds, 3)
	assert.Equal(t, int64(199900), summary.AmountSettled)

	require.Len(t, f.uow.subs.subs, 3)
	for _, sub := range f.uow.subs.subs {
		require.NotNil(t, sub.SourceBundleId)
		assert.Equal(t, f.bundleId, *sub.SourceBundleId)
		assert.Equal(t, entity.ProductTypePortfolio, sub.ProductType)
	}

	require.Len(t, f.uow.payments.payments, 3)
	var sum int64
	for _, p := range f.uow.payments.payments {
		require.NotNil(t, p.SubscriptionId)
		want := fmt.Sprintf("%s-%s", verify.GatewayPaymentId, findProductId(f, *p.SubscriptionId))
		assert.Equal(t, want, p.GatewayPaymentId)
		sum += p.Amount
	}
	assert.Equal(t, int64(199900), sum, "split shares must sum back to the charge")
}

func findProductId(f *fixture, subId uuid.UUID) uuid.UUID {
	for _, sub := range f.uow.subs.subs {
		if sub.Id == subId {
			return sub.ProductId
		}
	}
	return uuid.Nil
}

func TestCreateOrderConflictOutsideRenewalWindow(t *testing.T) {
	f := newFixture(t)

	expiry := time.Now().AddDate(0, 0, 30)
	f.seedActiveSubscription(expiry)

	_, err := f.svc.CreateOrder(context.Background(), f.userId, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})
	require.Error(t, err)
	require.True(t, apperror.IsConflict(err))

	var conflict *apperror.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.WithinDuration(t, expiry.AddDate(0, 0, -7), conflict.NextEligibleAt, time.Second)

	assert.Zero(t, f.gateway.createdOrders, "blocked orders must not reach the gateway")
}

func TestCreateOrderAllowedInsideRenewalWindow(t *testing.T) {
	f := newFixture(t)

	f.seedActiveSubscription(time.Now().AddDate(0, 0, 5))

	res, err := f.svc.CreateOrder(context.Background(), f.userId, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.CompensationDays)
	assert.Equal(t, 1, f.gateway.createdOrders)
}

func TestCreateRecurringMandateReusesCustomer(t *testing.T) {
	f := newFixture(t)

	existing := "cust_existing"
	f.uow.users.users[f.userId].GatewayCustomerId = &existing

	res, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
	})
	require.NoError(t, err)

	assert.Zero(t, f.gateway.createdCustomers, "existing gateway customer must be reused")
	assert.Equal(t, int64(999900), res.YearlyAmount)
	assert.Equal(t, int64(83325), res.MonthlyAmount)

	require.Len(t, f.uow.subs.subs, 1)
	sub := f.uow.subs.subs[0]
	assert.Equal(t, entity.SubscriptionStatusPending, sub.Status)
	assert.Equal(t, entity.BillingModeRecurring, sub.BillingMode)
	require.NotNil(t, sub.GatewayMandateId)
	assert.Equal(t, res.GatewayMandateId, *sub.GatewayMandateId)
}

func TestMandateActivationFlipsPendingRows(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "bundle",
		ProductId:   f.bundleId.String(),
	})
	require.NoError(t, err)
	require.Len(t, f.uow.subs.subs, 3)

	err = f.svc.HandleMandateWebhookEvent(context.Background(), &entity.MandateEvent{
		Kind:      entity.MandateEventActivated,
		MandateId: "sub_mandate_1",
		RawEvent:  "subscription.activated",
	})
	require.NoError(t, err)

	for _, sub := range f.uow.subs.subs {
		assert.Equal(t, entity.SubscriptionStatusActive, sub.Status)
		require.NotNil(t, sub.ExpiresAt)
		assert.WithinDuration(t, time.Now().AddDate(1, 0, 0), *sub.ExpiresAt, time.Minute)
		require.NotNil(t, sub.LastPaymentAt)
	}
	assert.Contains(t, f.access.recomputed, f.userId)
}

func TestChargedEventDedupesOnRedelivery(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "bundle",
		ProductId:   f.bundleId.String(),
	})
	require.NoError(t, err)

	charged := &entity.MandateEvent{
		Kind:      entity.MandateEventCharged,
		MandateId: "sub_mandate_1",
		PaymentId: "pay_install_1",
		Amount:    166659,
		RawEvent:  "subscription.charged",
	}

	require.NoError(t, f.svc.HandleMandateWebhookEvent(context.Background(), charged))
	require.NoError(t, f.svc.HandleMandateWebhookEvent(context.Background(), charged))

	assert.Len(t, f.uow.payments.payments, 3, "redelivered charge must not double-book")

	var sum int64
	for _, p := range f.uow.payments.payments {
		sum += p.Amount
	}
	assert.Equal(t, int64(166659), sum)
}

func TestMandateHaltCancelsAllRows(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "bundle",
		ProductId:   f.bundleId.String(),
	})
	require.NoError(t, err)

	err = f.svc.HandleMandateWebhookEvent(context.Background(), &entity.MandateEvent{
		Kind:      entity.MandateEventHalted,
		MandateId: "sub_mandate_1",
		RawEvent:  "subscription.halted",
	})
	require.NoError(t, err)

	for _, sub := range f.uow.subs.subs {
		assert.Equal(t, entity.SubscriptionStatusCancelled, sub.Status)
	}
	assert.Contains(t, f.access.recomputed, f.userId)
}

func TestCancelSubscriptionClosesWholeMandate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "bundle",
		ProductId:   f.bundleId.String(),
	})
	require.NoError(t, err)

	// Remote cancel failing must not keep the local rows alive.
	f.gateway.cancelErr = fmt.Errorf("gateway timeout")

	err = f.svc.CancelSubscription(context.Background(), f.userId, f.uow.subs.subs[0].Id)
	require.NoError(t, err)

	assert.Equal(t, []string{"sub_mandate_1"}, f.gateway.cancelledIds)
	for _, sub := range f.uow.subs.subs {
		assert.Equal(t, entity.SubscriptionStatusCancelled, sub.Status)
	}
}

func TestCancelSubscriptionRejectsForeignOwner(t *testing.T) {
	f := newFixture(t)
	sub := f.seedActiveSubscription(time.Now().AddDate(0, 1, 0))

	err := f.svc.CancelSubscription(context.Background(), uuid.New(), sub.Id)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, entity.SubscriptionStatusActive, f.uow.subs.subs[0].Status)
}

func TestProcessGatewayWebhookIdempotentByEventId(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
	})
	require.NoError(t, err)

	body := []byte(`{
		"event": "subscription.activated",
		"payload": {
			"subscription": {"entity": {"id": "sub_mandate_1", "status": "active", "notes": {"user_id": "` + f.userId.String() + `"}}},
			"payment": {"entity": {"id": "", "amount": 0}}
		}
	}`)

	require.NoError(t, f.svc.ProcessGatewayWebhook(context.Background(), "evt_1", body, "sig"))
	assert.Equal(t, entity.SubscriptionStatusActive, f.uow.subs.subs[0].Status)
	assert.True(t, f.uow.webhooks.events["evt_1"].Processed)

	// Redelivery acknowledges without touching state.
	f.uow.subs.subs[0].Status = entity.SubscriptionStatusCancelled
	require.NoError(t, f.svc.ProcessGatewayWebhook(context.Background(), "evt_1", body, "sig"))
	assert.Equal(t, entity.SubscriptionStatusCancelled, f.uow.subs.subs[0].Status)
}

func TestProcessGatewayWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.gateway.webhookSigOK = false

	err := f.svc.ProcessGatewayWebhook(context.Background(), "evt_x", []byte(`{}`), "bad")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidSignature(err))
	assert.Empty(t, f.uow.webhooks.events)
}

func TestCheckRenewalEligibility(t *testing.T) {
	f := newFixture(t)

	// No subscription yet: purchasable.
	res, err := f.svc.CheckRenewalEligibility(context.Background(), f.userId, entity.ProductTypePortfolio, f.portfolioId)
	require.NoError(t, err)
	assert.False(t, res.HasActive)
	assert.True(t, res.CanRenew)

	// Active far from expiry: blocked with a date.
	expiry := time.Now().AddDate(0, 0, 20)
	sub := f.seedActiveSubscription(expiry)

	res, err = f.svc.CheckRenewalEligibility(context.Background(), f.userId, entity.ProductTypePortfolio, f.portfolioId)
	require.NoError(t, err)
	assert.True(t, res.HasActive)
	assert.False(t, res.CanRenew)
	require.NotNil(t, res.NextEligibleAt)
	assert.WithinDuration(t, expiry.AddDate(0, 0, -7), *res.NextEligibleAt, time.Second)
	require.NotNil(t, res.CurrentId)
	assert.Equal(t, sub.Id, *res.CurrentId)

	// Inside the window: renewable.
	nearExpiry := time.Now().AddDate(0, 0, 4)
	sub.ExpiresAt = &nearExpiry

	res, err = f.svc.CheckRenewalEligibility(context.Background(), f.userId, entity.ProductTypePortfolio, f.portfolioId)
	require.NoError(t, err)
	assert.True(t, res.HasActive)
	assert.True(t, res.CanRenew)
}

// flakyUpdateSubRepo fails a configured number of Update calls before
// recovering, standing in for transient storage trouble mid-webhook.
type flakyUpdateSubRepo struct {
	*fakeSubscriptionRepo
	failures int
}

func (r *flakyUpdateSubRepo) Update(ctx context.Context, s *entity.Subscription) error {
	if r.failures > 0 {
		r.failures--
		return fmt.Errorf("connection reset")
	}
	return r.fakeSubscriptionRepo.Update(ctx, s)
}

func TestProcessGatewayWebhookRetriesAfterFailedHandling(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
	})
	require.NoError(t, err)

	body := []byte(`{
		"event": "subscription.activated",
		"payload": {
			"subscription": {"entity": {"id": "sub_mandate_1", "status": "active", "notes": {"user_id": "` + f.userId.String() + `"}}},
			"payment": {"entity": {"id": "", "amount": 0}}
		}
	}`)

	// First delivery hits transient storage trouble and must surface an
	// error so the gateway redelivers.
	f.uow.subsOverride = &flakyUpdateSubRepo{fakeSubscriptionRepo: f.uow.subs, failures: 1}

	err = f.svc.ProcessGatewayWebhook(context.Background(), "evt_retry", body, "sig")
	require.Error(t, err)
	assert.Equal(t, entity.SubscriptionStatusPending, f.uow.subs.subs[0].Status)
	require.NotNil(t, f.uow.webhooks.events["evt_retry"])
	assert.False(t, f.uow.webhooks.events["evt_retry"].Processed)

	// The redelivery must be applied, not acknowledged away because a log
	// row from the failed attempt already exists.
	require.NoError(t, f.svc.ProcessGatewayWebhook(context.Background(), "evt_retry", body, "sig"))
	assert.Equal(t, entity.SubscriptionStatusActive, f.uow.subs.subs[0].Status)
	assert.True(t, f.uow.webhooks.events["evt_retry"].Processed)
}

// racingPaymentRepo never sees an existing payment, so the unique-insert
// backstop is the only thing standing between two concurrent settlements.
type racingPaymentRepo struct {
	*fakePaymentRepo
}

func (r *racingPaymentRepo) ExistsByGatewayPaymentId(context.Context, string) (bool, error) {
	return false, nil
}

func TestVerifyPaymentConvergesOnInsertRace(t *testing.T) {
	f := newFixture(t)

	verify := f.createVerifiedOrder(t, &dto.CreateOrderRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
		PlanType:    "monthly",
	})

	first, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	// The concurrent attempt slips past both existence checks and loses the
	// insert race instead. It must converge on the winner's outcome.
	f.uow.paymentsOverride = &racingPaymentRepo{fakePaymentRepo: f.uow.payments}

	second, err := f.svc.VerifyPayment(context.Background(), f.userId, verify)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.SubscriptionIds, second.SubscriptionIds)
	assert.Len(t, f.uow.payments.payments, 1)
}

type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) Debug(string, string, map[string]interface{}) {}
func (l *recordingLogger) Info(string, string, map[string]interface{})  {}
func (l *recordingLogger) Warn(_ string, message string, _ map[string]interface{}) {
	l.warns = append(l.warns, message)
}
func (l *recordingLogger) Error(string, string, map[string]interface{}) {}
func (l *recordingLogger) Sync() error                                  { return nil }

func TestMandateActivationFlagsNotesUserMismatch(t *testing.T) {
	f := newFixture(t)
	log := &recordingLogger{}
	svc := NewSubscriptionService(
		&fakeFactory{uow: f.uow},
		NewCatalogService(&fakeFactory{uow: f.uow}),
		f.gateway,
		f.access,
		nil,
		log,
	)

	_, err := svc.CreateRecurringMandate(context.Background(), f.userId, &dto.CreateMandateRequest{
		ProductType: "portfolio",
		ProductId:   f.portfolioId.String(),
	})
	require.NoError(t, err)

	err = svc.HandleMandateWebhookEvent(context.Background(), &entity.MandateEvent{
		Kind:      entity.MandateEventActivated,
		MandateId: "sub_mandate_1",
		UserId:    uuid.NewString(),
		RawEvent:  "subscription.activated",
	})
	require.NoError(t, err)

	// Local rows stay authoritative; the mismatch is flagged, not fatal.
	assert.Equal(t, entity.SubscriptionStatusActive, f.uow.subs.subs[0].Status)
	assert.Contains(t, log.warns, "mandate notes user does not match local grants")
}
