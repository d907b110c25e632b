package gateway

import (
	"context"
	"time"
)

// OrderNotes is the opaque metadata the engine embeds in gateway orders and
// mandates. At settlement the engine re-fetches it from the gateway and treats
// it as the source of truth for product/plan/renewal fields; client-supplied
// values are never trusted for these.
type OrderNotes struct {
	UserId                   string
	ProductType              string
	ProductId                string
	PlanType                 string
	Category                 string
	BillingMode              string
	IsRenewal                bool
	PreviousSubscriptionId   string
	CompensationDaysEstimate int
}

// Order mirrors a gateway order.
type Order struct {
	Id       string
	Amount   int64 // paise
	Currency string
	Receipt  string
	Notes    OrderNotes
}

// Mandate mirrors a gateway recurring authorization (a gateway-side
// "subscription" funding a yearly commitment in monthly installments).
type Mandate struct {
	Id       string
	Status   string
	SetupUrl string
	Notes    OrderNotes
}

// Client is the engine's port onto the payment gateway. Implementations carry
// a bounded per-call timeout; a timeout surfaces as an error with no local
// state written by the caller.
type Client interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes OrderNotes) (*Order, error)
	FetchOrder(ctx context.Context, orderId string) (*Order, error)

	CreateCustomer(ctx context.Context, name, email, phone string) (string, error)
	CreatePlan(ctx context.Context, amountPerPeriod int64, currency, name string) (string, error)
	CreateMandate(ctx context.Context, planId, customerId string, totalInstallments int, expireBy time.Time, notes OrderNotes) (*Mandate, error)
	FetchMandate(ctx context.Context, mandateId string) (*Mandate, error)
	CancelMandate(ctx context.Context, mandateId string) error

	VerifyPaymentSignature(orderId, paymentId, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}
