// Package notify delivers the outbound paid-order event to the downstream
// automation endpoint. Delivery is fire-and-forget: failures are logged,
// never retried here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bloomlane/payflow/internal/domain"
)

type Dispatcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDispatcher(endpoint string, client *http.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{endpoint: endpoint, httpClient: client, logger: logger}
}

type itemSummary struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type paidEvent struct {
	Event       string        `json:"event"`
	Timestamp   time.Time     `json:"timestamp"`
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	MPaymentID  string        `json:"m_payment_id"`
	Paid        bool          `json:"paid"`
	Total       int64         `json:"total"`
	Currency    string        `json:"currency"`
	BuyerName   string        `json:"buyer_name"`
	BuyerEmail  string        `json:"buyer_email"`
	Items       []itemSummary `json:"items"`
}

// NotifyPaid posts one JSON event describing the paid order. A non-2xx
// response is an error so the caller can log it; the caller decides whether
// anything more happens (nothing does, in the webhook pipeline).
func (d *Dispatcher) NotifyPaid(ctx context.Context, order *domain.Order) error {
	if d.endpoint == "" {
		return nil
	}

	items := make([]itemSummary, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemSummary{Name: item.Name, Quantity: item.Quantity})
	}

	event := paidEvent{
		Event:       "order.paid",
		Timestamp:   time.Now().UTC(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		MPaymentID:  order.MPaymentID,
		Paid:        true,
		Total:       order.Total,
		Currency:    order.Currency,
		BuyerName:   order.BuyerName,
		BuyerEmail:  order.BuyerEmail,
		Items:       items,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal paid event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send paid notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	d.logger.Info("paid notification delivered", "order_id", order.ID, "status", resp.StatusCode)
	return nil
}
