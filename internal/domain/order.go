package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

type FulfillmentMethod string

const (
	FulfillmentDelivery   FulfillmentMethod = "delivery"
	FulfillmentCollection FulfillmentMethod = "collection"
	FulfillmentDigital    FulfillmentMethod = "digital"
)

// OrderItem is one purchased line. Items are immutable after checkout;
// ProductID is nil for lines that never resolved to a catalog product.
type OrderItem struct {
	ProductID *string `json:"product_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	LineTotal int64   `json:"line_total"`
}

// Order is one checkout attempt. All amounts are integer minor currency
// units. MPaymentID is the merchant payment id the gateway echoes back and
// is the webhook correlation key.
type Order struct {
	ID            string            `json:"id"`
	MPaymentID    string            `json:"m_payment_id"`
	OrderNumber   string            `json:"order_number"`
	Status        OrderStatus       `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Subtotal      int64             `json:"subtotal"`
	Shipping      int64             `json:"shipping"`
	Discount      int64             `json:"discount"`
	Tax           int64             `json:"tax"`
	Total         int64             `json:"total"`
	Currency      string            `json:"currency"`
	BuyerName     string            `json:"buyer_name"`
	BuyerEmail    string            `json:"buyer_email"`
	BuyerPhone    string            `json:"buyer_phone"`
	Fulfillment   FulfillmentMethod `json:"fulfillment"`
	DeliveryAddr  string            `json:"delivery_address,omitempty"`
	CollectionLoc string            `json:"collection_location,omitempty"`
	CouponCode    string            `json:"coupon_code,omitempty"`
	InvoiceURL    string            `json:"invoice_url,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItem       `json:"items"`
}

// EffectiveLineTotal recomputes from quantity and unit price when the stored
// line total is missing. Checkout occasionally wrote zero line totals;
// invoices must never inherit that.
func (i OrderItem) EffectiveLineTotal() int64 {
	if i.LineTotal > 0 {
		return i.LineTotal
	}
	return int64(i.Quantity) * i.UnitPrice
}

// ItemsTotal is the sum of effective line totals.
func (o *Order) ItemsTotal() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += item.EffectiveLineTotal()
	}
	return sum
}
