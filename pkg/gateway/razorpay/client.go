package razorpay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	razorpaygo "github.com/razorpay/razorpay-go"

	"portfolio-commerce-be/pkg/gateway"
)

// Client implements gateway.Client on top of the Razorpay REST SDK.
// The SDK does not take a context per call, so the bounded timeout is set
// once on construction and ctx is checked before each outbound call.
type Client struct {
	rz            *razorpaygo.Client
	keySecret     string
	webhookSecret string
}

func NewClient(keyId, keySecret, webhookSecret string, timeout time.Duration) *Client {
	rz := razorpaygo.NewClient(keyId, keySecret)
	rz.SetTimeout(int16(timeout.Seconds()))
	return &Client{
		rz:            rz,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes gateway.OrderNotes) (*gateway.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notesToMap(notes),
	}
	body, err := c.rz.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	return orderFromBody(body), nil
}

func (c *Client) FetchOrder(ctx context.Context, orderId string) (*gateway.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := c.rz.Order.Fetch(orderId, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order fetch: %w", err)
	}
	return orderFromBody(body), nil
}

func (c *Client) CreateCustomer(ctx context.Context, name, email, phone string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := map[string]interface{}{
		"name":  name,
		"email": email,
		// fail_existing=0 returns the existing customer instead of erroring,
		// which is what mandate re-creation after a retry wants.
		"fail_existing": "0",
	}
	if phone != "" {
		data["contact"] = phone
	}
	body, err := c.rz.Customer.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay customer create: %w", err)
	}
	return asString(body["id"]), nil
}

func (c *Client) CreatePlan(ctx context.Context, amountPerPeriod int64, currency, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := map[string]interface{}{
		"period":   "monthly",
		"interval": 1,
		"item": map[string]interface{}{
			"name":     name,
			"amount":   amountPerPeriod,
			"currency": currency,
		},
	}
	body, err := c.rz.Plan.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay plan create: %w", err)
	}
	return asString(body["id"]), nil
}

func (c *Client) CreateMandate(ctx context.Context, planId, customerId string, totalInstallments int, expireBy time.Time, notes gateway.OrderNotes) (*gateway.Mandate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"plan_id":         planId,
		"customer_id":     customerId,
		"total_count":     totalInstallments,
		"expire_by":       expireBy.Unix(),
		"customer_notify": 1,
		"notes":           notesToMap(notes),
	}
	body, err := c.rz.Subscription.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay subscription create: %w", err)
	}
	return mandateFromBody(body), nil
}

func (c *Client) FetchMandate(ctx context.Context, mandateId string) (*gateway.Mandate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := c.rz.Subscription.Fetch(mandateId, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay subscription fetch: %w", err)
	}
	return mandateFromBody(body), nil
}

func (c *Client) CancelMandate(ctx context.Context, mandateId string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.rz.Subscription.Cancel(mandateId, map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}, nil)
	if err != nil {
		return fmt.Errorf("razorpay subscription cancel: %w", err)
	}
	return nil
}

func (c *Client) VerifyPaymentSignature(orderId, paymentId, signature string) bool {
	return verifyHMAC(orderId+"|"+paymentId, signature, c.keySecret)
}

func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifyHMAC(string(body), signature, c.webhookSecret)
}

// Response decoding. The SDK returns map[string]interface{} with numbers as
// float64.

func orderFromBody(body map[string]interface{}) *gateway.Order {
	return &gateway.Order{
		Id:       asString(body["id"]),
		Amount:   asInt64(body["amount"]),
		Currency: asString(body["currency"]),
		Receipt:  asString(body["receipt"]),
		Notes:    notesFromMap(body["notes"]),
	}
}

func mandateFromBody(body map[string]interface{}) *gateway.Mandate {
	return &gateway.Mandate{
		Id:       asString(body["id"]),
		Status:   asString(body["status"]),
		SetupUrl: asString(body["short_url"]),
		Notes:    notesFromMap(body["notes"]),
	}
}

func notesToMap(n gateway.OrderNotes) map[string]interface{} {
	return map[string]interface{}{
		"user_id":           n.UserId,
		"product_type":      n.ProductType,
		"product_id":        n.ProductId,
		"plan_type":         n.PlanType,
		"category":          n.Category,
		"billing_mode":      n.BillingMode,
		"is_renewal":        strconv.FormatBool(n.IsRenewal),
		"previous_sub_id":   n.PreviousSubscriptionId,
		"compensation_days": strconv.Itoa(n.CompensationDaysEstimate),
	}
}

func notesFromMap(v interface{}) gateway.OrderNotes {
	m, ok := v.(map[string]interface{})
	if !ok {
		return gateway.OrderNotes{}
	}
	isRenewal, _ := strconv.ParseBool(asString(m["is_renewal"]))
	compDays, _ := strconv.Atoi(asString(m["compensation_days"]))
	return gateway.OrderNotes{
		UserId:                   asString(m["user_id"]),
		ProductType:              asString(m["product_type"]),
		ProductId:                asString(m["product_id"]),
		PlanType:                 asString(m["plan_type"]),
		Category:                 asString(m["category"]),
		BillingMode:              asString(m["billing_mode"]),
		IsRenewal:                isRenewal,
		PreviousSubscriptionId:   asString(m["previous_sub_id"]),
		CompensationDaysEstimate: compDays,
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
