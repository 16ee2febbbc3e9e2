package domain

import "time"

// OrderPaidEvent is published once per pending→paid transition. Re-delivered
// webhooks short-circuit before publication, so consumers see each order at
// most once per transition.
type OrderPaidEvent struct {
	OrderID     string      `json:"order_id"`
	MPaymentID  string      `json:"m_payment_id"`
	OrderNumber string      `json:"order_number"`
	Total       int64       `json:"total"`
	Currency    string      `json:"currency"`
	BuyerName   string      `json:"buyer_name"`
	BuyerEmail  string      `json:"buyer_email"`
	InvoiceURL  string      `json:"invoice_url,omitempty"`
	Items       []OrderItem `json:"items"`
	PaidAt      time.Time   `json:"paid_at"`
}
