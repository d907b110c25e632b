package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	secret := "test_secret"
	payload := "order_ABC|pay_XYZ"

	tests := []struct {
		name      string
		payload   string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			signature: sign(payload, secret),
			secret:    secret,
			want:      true,
		},
		{
			name:      "tampered signature",
			payload:   payload,
			signature: sign(payload, secret)[:10] + "deadbeef",
			secret:    secret,
			want:      false,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			signature: sign(payload, "other_secret"),
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty signature",
			payload:   payload,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty secret",
			payload:   payload,
			signature: sign(payload, secret),
			secret:    "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyHMAC(tt.payload, tt.signature, tt.secret); got != tt.want {
				t.Errorf("verifyHMAC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientSignatureVerification(t *testing.T) {
	c := NewClient("key_id", "key_secret", "hook_secret", 0)

	if !c.VerifyPaymentSignature("order_1", "pay_1", sign("order_1|pay_1", "key_secret")) {
		t.Error("expected valid payment signature to verify")
	}
	if c.VerifyPaymentSignature("order_1", "pay_2", sign("order_1|pay_1", "key_secret")) {
		t.Error("expected signature for different payment id to fail")
	}

	body := []byte(`{"event":"subscription.charged"}`)
	if !c.VerifyWebhookSignature(body, sign(string(body), "hook_secret")) {
		t.Error("expected valid webhook signature to verify")
	}
	if c.VerifyWebhookSignature(body, sign(string(body), "key_secret")) {
		t.Error("expected webhook signature with wrong secret to fail")
	}
}
