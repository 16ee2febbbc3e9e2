package webhook

import (
	"net/url"
	"testing"
)

func validForm() url.Values {
	return url.Values{
		"m_payment_id":   {"BLM-ABC123"},
		"payment_status": {"COMPLETE"},
		"pf_payment_id":  {"1089250"},
		"amount_gross":   {"235.00"},
		"signature":      {"d41d8cd98f00b204e9800998ecf8427e"},
	}
}

func TestParseNotification(t *testing.T) {
	t.Run("parses a complete payload", func(t *testing.T) {
		n, err := ParseNotification(validForm())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n.MPaymentID != "BLM-ABC123" {
			t.Errorf("unexpected m_payment_id: %s", n.MPaymentID)
		}
		if !n.Complete() {
			t.Error("expected COMPLETE status to report complete")
		}
		if n.AmountGross != 23500 {
			t.Errorf("expected 23500 minor units, got %d", n.AmountGross)
		}
		if n.Raw["pf_payment_id"] != "1089250" {
			t.Error("expected raw fields to be preserved for signature verification")
		}
	})

	t.Run("rejects missing m_payment_id", func(t *testing.T) {
		form := validForm()
		form.Del("m_payment_id")
		if _, err := ParseNotification(form); err == nil {
			t.Error("expected error for missing m_payment_id")
		}
	})

	t.Run("rejects missing payment_status", func(t *testing.T) {
		form := validForm()
		form.Del("payment_status")
		if _, err := ParseNotification(form); err == nil {
			t.Error("expected error for missing payment_status")
		}
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		form := validForm()
		form.Del("signature")
		if _, err := ParseNotification(form); err == nil {
			t.Error("expected error for missing signature")
		}
	})

	t.Run("non-complete status reports incomplete", func(t *testing.T) {
		form := validForm()
		form.Set("payment_status", "FAILED")
		n, err := ParseNotification(form)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n.Complete() {
			t.Error("expected FAILED status to report incomplete")
		}
	})
}

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"235.00", 23500},
		{"235", 23500},
		{"0.50", 50},
		{"1089.5", 108950},
		{"-5.41", -541},
		{"", 0},
		{"abc", 0},
	}

	for _, tc := range cases {
		if got := parseAmountCents(tc.in); got != tc.want {
			t.Errorf("parseAmountCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
