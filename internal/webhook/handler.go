// Package webhook orchestrates the payment confirmation pipeline: verify the
// inbound notification, transition the order exactly once, then run the
// paid-order side effects with each one fault-isolated from the rest.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bloomlane/payflow/internal/domain"
	"github.com/bloomlane/payflow/internal/signature"
)

type Ledger interface {
	FindByPaymentID(ctx context.Context, mPaymentID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID string) (*domain.Order, bool, error)
	MarkFailed(ctx context.Context, orderID string) (*domain.Order, error)
}

type StockDeducter interface {
	Deduct(ctx context.Context, order *domain.Order) int
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, order *domain.Order) (string, error)
}

type CouponAccountant interface {
	RecordUsage(ctx context.Context, code string) error
}

type Notifier interface {
	NotifyPaid(ctx context.Context, order *domain.Order) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	verifier *signature.Verifier
	ledger   Ledger
	stock    StockDeducter
	invoices InvoiceGenerator
	coupons  CouponAccountant
	notifier Notifier
	producer EventPublisher // optional; nil disables event publication
	logger   *slog.Logger
}

func NewHandler(
	verifier *signature.Verifier,
	ledger Ledger,
	stock StockDeducter,
	invoices InvoiceGenerator,
	coupons CouponAccountant,
	notifier Notifier,
	producer EventPublisher,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		verifier: verifier,
		ledger:   ledger,
		stock:    stock,
		invoices: invoices,
		coupons:  coupons,
		notifier: notifier,
		producer: producer,
		logger:   logger,
	}
}

// HandleNotify processes one gateway notification. Response codes steer the
// gateway's retry schedule: 200 stops retries (including signature failures,
// which must not trigger a retry storm), 404 asks for a retry because the
// order row may still be in flight from checkout, 500 asks for a retry
// because the paid transition itself failed.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic handling payment notification", "panic", rec)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("unparseable notification body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	n, err := ParseNotification(r.PostForm)
	if err != nil {
		h.logger.Warn("malformed notification", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	logger := h.logger.With("m_payment_id", n.MPaymentID, "gateway_id", n.GatewayID)

	if !h.verifier.Verify(n.Raw) {
		// Deliberate 200: a bad signature will not become valid on retry,
		// and nothing was mutated.
		logger.Error("notification signature verification failed", "payment_status", n.PaymentStatus)
		w.WriteHeader(http.StatusOK)
		return
	}

	if !n.Complete() {
		h.handleFailed(r.Context(), w, n, logger)
		return
	}

	order, err := h.ledger.FindByPaymentID(r.Context(), n.MPaymentID)
	if err != nil {
		logger.Error("order lookup failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if order == nil {
		// Checkout may not have persisted the order yet; the gateway's
		// retry schedule resolves this race.
		logger.Warn("notification for unknown order")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if n.AmountGross != 0 && n.AmountGross != order.Total {
		logger.Warn("gateway amount differs from order total",
			"amount_gross", n.AmountGross, "order_total", order.Total)
	}

	if order.Status == domain.OrderStatusPaid {
		logger.Info("order already paid, ignoring re-delivery", "order_id", order.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	order, transitioned, err := h.ledger.MarkPaid(r.Context(), order.ID)
	if err != nil {
		logger.Error("mark paid failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !transitioned {
		// A concurrent delivery won the conditional update.
		logger.Info("order concurrently marked paid, ignoring", "order_id", order.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	logger.Info("order marked paid", "order_id", order.ID, "order_number", order.OrderNumber)
	h.runSideEffects(r.Context(), order, logger)

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleFailed(ctx context.Context, w http.ResponseWriter, n *Notification, logger *slog.Logger) {
	order, err := h.ledger.FindByPaymentID(ctx, n.MPaymentID)
	if err != nil {
		logger.Error("order lookup failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if order == nil {
		logger.Warn("failure notification for unknown order", "payment_status", n.PaymentStatus)
		w.WriteHeader(http.StatusOK)
		return
	}

	if order.Status != domain.OrderStatusPending {
		logger.Info("failure notification for settled order, ignoring",
			"order_id", order.ID, "status", order.Status)
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.ledger.MarkFailed(ctx, order.ID); err != nil {
		logger.Error("mark failed failed", "error", err, "order_id", order.ID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logger.Info("order cancelled on failed payment", "order_id", order.ID, "payment_status", n.PaymentStatus)
	w.WriteHeader(http.StatusOK)
}

// runSideEffects runs only on the actual pending→paid transition. Each step
// is isolated: the order is already durably paid, so a broken step is an
// operational follow-up, never a reason to make the gateway retry.
func (h *Handler) runSideEffects(ctx context.Context, order *domain.Order, logger *slog.Logger) {
	applied := h.stock.Deduct(ctx, order)
	logger.Info("stock deducted", "order_id", order.ID, "movements", applied)

	if _, err := h.invoices.Generate(ctx, order); err != nil {
		logger.Error("invoice generation failed", "error", err, "order_id", order.ID)
	}

	if order.CouponCode != "" {
		if err := h.coupons.RecordUsage(ctx, order.CouponCode); err != nil {
			logger.Error("coupon accounting failed", "error", err, "coupon", order.CouponCode)
		}
	}

	if err := h.notifier.NotifyPaid(ctx, order); err != nil {
		logger.Error("paid notification failed", "error", err, "order_id", order.ID)
	}

	if h.producer != nil {
		paidAt := time.Now().UTC()
		if order.PaidAt != nil {
			paidAt = *order.PaidAt
		}
		event := domain.OrderPaidEvent{
			OrderID:     order.ID,
			MPaymentID:  order.MPaymentID,
			OrderNumber: order.OrderNumber,
			Total:       order.Total,
			Currency:    order.Currency,
			BuyerName:   order.BuyerName,
			BuyerEmail:  order.BuyerEmail,
			InvoiceURL:  order.InvoiceURL,
			Items:       order.Items,
			PaidAt:      paidAt,
		}
		if err := h.producer.Publish(ctx, order.ID, event); err != nil {
			logger.Error("failed to publish order paid event", "error", err, "order_id", order.ID)
		}
	}
}
