package dto

import "encoding/json"

// GatewayWebhookRequest is the raw shape of a Razorpay webhook delivery.
// Only the fields the engine reads are declared; the rest stays in the raw
// body which is logged verbatim.
type GatewayWebhookRequest struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				Id     string                 `json:"id"`
				Status string                 `json:"status"`
				Notes  map[string]interface{} `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity struct {
				Id     string `json:"id"`
				Amount int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// NoteString pulls a string note out of the mandate notes map.
func (r *GatewayWebhookRequest) NoteString(key string) string {
	if v, ok := r.Payload.Subscription.Entity.Notes[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ReminderMessage is the payload handed to the notification pipeline for a
// subscription nearing expiry.
type ReminderMessage struct {
	SubscriptionId string `json:"subscription_id"`
	UserId         string `json:"user_id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	ProductType    string `json:"product_type"`
	ProductId      string `json:"product_id"`
	ExpiresAt      string `json:"expires_at"`
	DaysRemaining  int    `json:"days_remaining"`
}

func (m ReminderMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
