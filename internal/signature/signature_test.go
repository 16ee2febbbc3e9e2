package signature

import "testing"

func referenceParams() map[string]string {
	return map[string]string{
		"m_payment_id":   "BLM-ABC123",
		"pf_payment_id":  "1089250",
		"payment_status": "COMPLETE",
		"item_name":      "Bloomlane order BLM-ABC123",
		"amount_gross":   "235.00",
		"amount_fee":     "-5.41",
		"amount_net":     "229.59",
		"name_first":     "Thandi",
		"name_last":      "Mokoena",
		"email_address":  "thandi@example.com",
		"custom_str1":    "",
	}
}

func TestSign(t *testing.T) {
	t.Run("matches reference digest without passphrase", func(t *testing.T) {
		v := NewVerifier("")
		got := v.Sign(referenceParams())
		want := "65a7c34f42803dbe0123e24a748fa130"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("matches reference digest with passphrase", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		got := v.Sign(referenceParams())
		want := "5de4c43094bf920bee62a8939157e4a1"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		if v.Sign(referenceParams()) != v.Sign(referenceParams()) {
			t.Error("expected identical digests for identical input")
		}
	})

	t.Run("changes when any field value changes", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		params := referenceParams()
		params["amount_gross"] = "1.00"
		got := v.Sign(params)
		want := "275827b7b28b82ea69f7d15630adc63d"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
		if got == v.Sign(referenceParams()) {
			t.Error("expected digest to differ after mutating a field")
		}
	})

	t.Run("excludes empty-valued fields", func(t *testing.T) {
		v := NewVerifier("")
		withEmpty := referenceParams()
		withoutEmpty := referenceParams()
		delete(withoutEmpty, "custom_str1")
		if v.Sign(withEmpty) != v.Sign(withoutEmpty) {
			t.Error("expected empty-valued fields to be excluded from the signed string")
		}
	})

	t.Run("excludes the signature field itself", func(t *testing.T) {
		v := NewVerifier("")
		params := referenceParams()
		params[FieldName] = "65a7c34f42803dbe0123e24a748fa130"
		if v.Sign(params) != "65a7c34f42803dbe0123e24a748fa130" {
			t.Error("expected signature field to be excluded from the signed string")
		}
	})
}

func TestVerify(t *testing.T) {
	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		params := referenceParams()
		params[FieldName] = v.Sign(params)
		if !v.Verify(params) {
			t.Error("expected valid signature to verify")
		}
	})

	t.Run("compares hex digest case-insensitively", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		params := referenceParams()
		params[FieldName] = "5DE4C43094BF920BEE62A8939157E4A1"
		if !v.Verify(params) {
			t.Error("expected uppercase digest to verify")
		}
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		params := referenceParams()
		params[FieldName] = v.Sign(params)
		params["amount_gross"] = "1.00"
		if v.Verify(params) {
			t.Error("expected tampered payload to fail verification")
		}
	})

	t.Run("rejects a missing signature field", func(t *testing.T) {
		v := NewVerifier("orchid-lane-9201")
		if v.Verify(referenceParams()) {
			t.Error("expected payload without signature to fail verification")
		}
	})

	t.Run("rejects when passphrase differs", func(t *testing.T) {
		signer := NewVerifier("orchid-lane-9201")
		params := referenceParams()
		params[FieldName] = signer.Sign(params)
		if NewVerifier("wrong-passphrase").Verify(params) {
			t.Error("expected wrong passphrase to fail verification")
		}
	})
}
