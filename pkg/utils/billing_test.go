package utils

import (
	"testing"
	"time"
)

func TestPlanPeriodEnd(t *testing.T) {
	from := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		planType string
		want     time.Time
		wantErr  bool
	}{
		{
			name:     "monthly",
			planType: PlanMonthly,
			want:     time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "quarterly",
			planType: PlanQuarterly,
			want:     time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "yearly",
			planType: PlanYearly,
			want:     time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "unknown plan",
			planType: "weekly",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanPeriodEnd(tt.planType, from)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for plan %q", tt.planType)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("PlanPeriodEnd = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompensationDays(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		oldExpiry time.Time
		want      int
	}{
		{
			name:      "three whole days left",
			oldExpiry: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			want:      3,
		},
		{
			name:      "partial day rounds up",
			oldExpiry: time.Date(2024, 1, 5, 6, 0, 0, 0, time.UTC),
			want:      4,
		},
		{
			name:      "already expired",
			oldExpiry: time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC),
			want:      0,
		},
		{
			name:      "expires exactly now",
			oldExpiry: now,
			want:      0,
		},
		{
			name:      "less than a day left",
			oldExpiry: now.Add(2 * time.Hour),
			want:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompensationDays(tt.oldExpiry, now); got != tt.want {
				t.Errorf("CompensationDays = %d, want %d", got, tt.want)
			}
		})
	}
}

// A renewal settled on Jan 2 against a subscription expiring Jan 5 carries
// 3 days: the new monthly period lands on Feb 2 and the compensated expiry on
// Feb 5.
func TestRenewalCompensationExample(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	oldExpiry := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	comp := CompensationDays(oldExpiry, now)
	if comp != 3 {
		t.Fatalf("compensation = %d, want 3", comp)
	}

	periodEnd, err := PlanPeriodEnd(PlanMonthly, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := periodEnd.AddDate(0, 0, comp)
	want := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("compensated expiry = %v, want %v", got, want)
	}
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		n     int
		want  []int64
	}{
		{
			name:  "even split",
			total: 30000,
			n:     3,
			want:  []int64{10000, 10000, 10000},
		},
		{
			name:  "remainder goes to first part",
			total: 10000,
			n:     3,
			want:  []int64{3334, 3333, 3333},
		},
		{
			name:  "single part",
			total: 4999,
			n:     1,
			want:  []int64{4999},
		},
		{
			name:  "zero parts",
			total: 100,
			n:     0,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitAmount(tt.total, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			var sum int64
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part[%d] = %d, want %d", i, got[i], tt.want[i])
				}
				sum += got[i]
			}
			if tt.n > 0 && sum != tt.total {
				t.Errorf("parts sum to %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestMonthlyInstallment(t *testing.T) {
	tests := []struct {
		yearly int64
		want   int64
	}{
		{12000, 1000},
		{11999, 1000},
		{12001, 1001},
		{0, 0},
	}

	for _, tt := range tests {
		if got := MonthlyInstallment(tt.yearly); got != tt.want {
			t.Errorf("MonthlyInstallment(%d) = %d, want %d", tt.yearly, got, tt.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name", "Asha Rao", "Asha Rao"},
		{"strips symbols", "Asha <Rao>!!", "Asha Rao"},
		{"collapses whitespace", "  Asha   Rao  ", "Asha Rao"},
		{"empty falls back", "@#$%", "Investor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain digits", "9876543210", "9876543210"},
		{"formatted with country code", "+91 98765-43210", "+919876543210"},
		{"too short", "12345", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePhone(tt.in); got != tt.want {
				t.Errorf("SanitizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
