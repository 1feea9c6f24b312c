package domain

import "testing"

func TestTierForPoints(t *testing.T) {
	cases := []struct {
		points int64
		want   string
	}{
		{0, TierNone},
		{-3, TierNone},
		{1, TierBronze},
		{199, TierBronze},
		{200, TierSilver},
		{499, TierSilver},
		{500, TierGold},
		{10000, TierGold},
	}
	for _, tc := range cases {
		if got := TierForPoints(tc.points); got != tc.want {
			t.Errorf("TierForPoints(%d) = %q, want %q", tc.points, got, tc.want)
		}
	}
}

func TestIsValidPaymentMode(t *testing.T) {
	for _, mode := range []string{PaymentModeCash, PaymentModeUPI, PaymentModeCard, PaymentModeCheque} {
		if !IsValidPaymentMode(mode) {
			t.Errorf("IsValidPaymentMode(%q) = false, want true", mode)
		}
	}
	for _, mode := range []string{"", "CASH", "crypto", "cash "} {
		if IsValidPaymentMode(mode) {
			t.Errorf("IsValidPaymentMode(%q) = true, want false", mode)
		}
	}
}
