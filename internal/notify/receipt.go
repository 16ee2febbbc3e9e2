package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bloomlane/payflow/internal/domain"
)

// ReceiptWorker consumes order.paid events off the bus and sends the buyer
// a receipt email through the configured email-service endpoint. It runs in
// cmd/notifier, decoupled from the webhook request path.
type ReceiptWorker struct {
	emailEndpoint string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewReceiptWorker(emailEndpoint string, client *http.Client, logger *slog.Logger) *ReceiptWorker {
	return &ReceiptWorker{emailEndpoint: emailEndpoint, httpClient: client, logger: logger}
}

func (w *ReceiptWorker) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPaidEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order paid event: %w", err)
	}

	w.logger.Info("processing order paid event", "order_id", event.OrderID, "order_number", event.OrderNumber)

	body := fmt.Sprintf("Thank you for your order %s. Payment has been received.", event.OrderNumber)
	if event.InvoiceURL != "" {
		body += " Your receipt: " + event.InvoiceURL
	}

	if err := w.sendEmail(ctx, map[string]string{
		"to":      event.BuyerEmail,
		"subject": "Payment received: " + event.OrderNumber,
		"body":    body,
	}); err != nil {
		w.logger.Error("failed to send receipt email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send receipt email: %w", err)
	}

	w.logger.Info("receipt email sent", "order_id", event.OrderID, "to", event.BuyerEmail)
	return nil
}

func (w *ReceiptWorker) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.emailEndpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
