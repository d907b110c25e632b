package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Order / mandate creation ---

type CreateOrderRequest struct {
	ProductType string `json:"product_type" validate:"required,oneof=portfolio bundle"`
	ProductId   string `json:"product_id" validate:"required,uuid4"`
	PlanType    string `json:"plan_type" validate:"required,oneof=monthly quarterly yearly"`
	IsRenewal   bool   `json:"is_renewal"`
}

type CreateOrderResponse struct {
	GatewayOrderId   string `json:"gateway_order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Receipt          string `json:"receipt"`
	CompensationDays int    `json:"compensation_days"`
}

type CreateMandateRequest struct {
	ProductType string `json:"product_type" validate:"required,oneof=portfolio bundle"`
	ProductId   string `json:"product_id" validate:"required,uuid4"`
}

type CreateMandateResponse struct {
	GatewayMandateId string `json:"gateway_mandate_id"`
	SetupUrl         string `json:"setup_url"`
	MonthlyAmount    int64  `json:"monthly_amount"`
	YearlyAmount     int64  `json:"yearly_amount"`
}

// --- Payment verification ---

type VerifyPaymentRequest struct {
	GatewayOrderId   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentId string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// SettlementSummary reports what a verified payment did. Duplicate is true
// when the payment id had already been settled and nothing was changed.
type SettlementSummary struct {
	Duplicate        bool        `json:"duplicate"`
	IsRenewal        bool        `json:"is_renewal"`
	CompensationDays int         `json:"compensation_days"`
	ExpiresAt        time.Time   `json:"expires_at"`
	SubscriptionIds  []uuid.UUID `json:"subscription_ids"`
	AmountSettled    int64       `json:"amount_settled"`
}

// --- Eligibility / listing ---

type RenewalEligibility struct {
	HasActive       bool       `json:"has_active"`
	CanRenew        bool       `json:"can_renew"`
	DaysUntilExpiry int        `json:"days_until_expiry"`
	NextEligibleAt  *time.Time `json:"next_eligible_at,omitempty"`
	CurrentId       *uuid.UUID `json:"current_id,omitempty"`
}

type SubscriptionResponse struct {
	Id               uuid.UUID  `json:"id"`
	ProductType      string     `json:"product_type"`
	ProductId        uuid.UUID  `json:"product_id"`
	SourceBundleId   *uuid.UUID `json:"source_bundle_id,omitempty"`
	BillingMode      string     `json:"billing_mode"`
	Category         string     `json:"category"`
	Status           string     `json:"status"`
	PlanType         string     `json:"plan_type"`
	Amount           int64      `json:"amount"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	LastPaymentAt    *time.Time `json:"last_payment_at,omitempty"`
	IsRenewal        bool       `json:"is_renewal"`
	CompensationDays int        `json:"compensation_days"`
	DaysUntilExpiry  int        `json:"days_until_expiry"`
	CanRenew         bool       `json:"can_renew"`
}
