package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"
)

// Plan period lengths in calendar months.
const (
	PlanMonthly   = "monthly"
	PlanQuarterly = "quarterly"
	PlanYearly    = "yearly"
)

// PlanPeriodEnd returns the end of one billing period starting at `from`.
// Calendar arithmetic (AddDate), so "monthly" from Jan 31 lands on Mar 2/3
// the same way the gateway computes it.
func PlanPeriodEnd(planType string, from time.Time) (time.Time, error) {
	switch planType {
	case PlanMonthly:
		return from.AddDate(0, 1, 0), nil
	case PlanQuarterly:
		return from.AddDate(0, 3, 0), nil
	case PlanYearly:
		return from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown plan type: %s", planType)
	}
}

// CompensationDays returns the whole days carried over from an unexpired
// prior subscription: ceil((oldExpiry - now) / 24h), never negative.
func CompensationDays(oldExpiry, now time.Time) int {
	if !oldExpiry.After(now) {
		return 0
	}
	remaining := oldExpiry.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// SplitAmount divides `total` paise across n parts. The first part absorbs
// the remainder so the parts always sum back to total.
func SplitAmount(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	parts := make([]int64, n)
	base := total / int64(n)
	for i := range parts {
		parts[i] = base
	}
	parts[0] += total - base*int64(n)
	return parts
}

// MonthlyInstallment derives the per-month charge funding a yearly price,
// rounded up so twelve installments never undershoot the yearly amount.
func MonthlyInstallment(yearlyAmount int64) int64 {
	return (yearlyAmount + 11) / 12
}

// ReceiptID generates a gateway receipt identifier, e.g. "rcpt_1724918400123_4821".
// Razorpay caps receipts at 40 chars; this stays well under.
func ReceiptID(prefix string) string {
	return fmt.Sprintf("%s_%d_%04d", prefix, time.Now().UnixMilli(), rand.Intn(10000))
}

// SanitizeName strips characters the gateway rejects on customer records and
// collapses whitespace. Falls back to "Investor" for empty results.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '-' || r == '\'' {
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return "Investor"
	}
	if len(out) > 50 {
		out = out[:50]
	}
	return out
}

// SanitizePhone keeps digits and a single leading "+". Returns "" when fewer
// than 10 digits remain, so callers can omit the field entirely.
func SanitizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 10 {
		return ""
	}
	// Keep the last 10 digits plus country code if one was present.
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + d
	}
	return d
}
