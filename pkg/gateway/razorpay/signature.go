package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// verifyHMAC checks a hex-encoded HMAC-SHA256 signature. Razorpay signs
// payment confirmations over "orderId|paymentId" with the key secret and
// webhook bodies over the raw payload with the webhook secret.
func verifyHMAC(payload, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
