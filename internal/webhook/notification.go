package webhook

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// StatusComplete is the gateway's payment_status value for a settled payment.
// Anything else is treated as a failure notification.
const StatusComplete = "COMPLETE"

// Notification is the validated shape of one inbound gateway notification.
// The raw field map is kept alongside because the signature is computed over
// every delivered field, not just the ones this pipeline reads.
type Notification struct {
	MPaymentID    string
	PaymentStatus string
	GatewayID     string
	AmountGross   int64 // minor units; 0 when absent or unparseable
	ItemName      string
	BuyerEmail    string

	Raw map[string]string
}

// ParseNotification validates the form fields once at the boundary. Missing
// required fields reject the payload before anything downstream sees it.
func ParseNotification(values url.Values) (*Notification, error) {
	raw := make(map[string]string, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}

	n := &Notification{
		MPaymentID:    strings.TrimSpace(raw["m_payment_id"]),
		PaymentStatus: strings.TrimSpace(raw["payment_status"]),
		GatewayID:     raw["pf_payment_id"],
		ItemName:      raw["item_name"],
		BuyerEmail:    raw["email_address"],
		Raw:           raw,
	}

	if n.MPaymentID == "" {
		return nil, fmt.Errorf("missing required field m_payment_id")
	}
	if n.PaymentStatus == "" {
		return nil, fmt.Errorf("missing required field payment_status")
	}
	if _, ok := raw["signature"]; !ok {
		return nil, fmt.Errorf("missing required field signature")
	}

	n.AmountGross = parseAmountCents(raw["amount_gross"])

	return n, nil
}

func (n *Notification) Complete() bool {
	return n.PaymentStatus == StatusComplete
}

// parseAmountCents converts the gateway's decimal amount string to minor
// units. The amount is only used for a mismatch warning, so anything
// unparseable degrades to zero instead of failing the notification.
func parseAmountCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}

	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0
	}

	if units < 0 || strings.HasPrefix(whole, "-") {
		return units*100 - cents
	}
	return units*100 + cents
}
