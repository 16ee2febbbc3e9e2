package invoice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bloomlane/payflow/internal/domain"
)

// OrderFinder resolves the correlation id the caller supplies to an order.
type OrderFinder interface {
	FindByPaymentID(ctx context.Context, mPaymentID string) (*domain.Order, error)
}

// Handler serves invoice PDFs on demand. Each request re-renders and
// republishes the artifact, which doubles as the manual regeneration path
// when the paid-order pipeline's invoice step failed.
type Handler struct {
	orders    OrderFinder
	generator *Generator
	logger    *slog.Logger
}

func NewHandler(orders OrderFinder, generator *Generator, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, generator: generator, logger: logger}
}

type retrieveRequest struct {
	MPaymentID string `json:"m_payment_id"`
}

// HandleRetrieve accepts the payment id via the X-Payment-Id header, the
// query string or the request body (form or JSON), renders the PDF and
// serves it inline or as an attachment.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	mPaymentID := h.paymentID(r)
	if mPaymentID == "" {
		h.writeError(w, http.StatusBadRequest, "missing payment id")
		return
	}

	order, err := h.orders.FindByPaymentID(r.Context(), mPaymentID)
	if err != nil {
		h.logger.Error("failed to look up order", "error", err, "m_payment_id", mPaymentID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	version, _ := strconv.Atoi(r.FormValue("version"))

	if v := r.FormValue("cached"); v == "1" || v == "true" {
		pdf, err := h.generator.Stored(r.Context(), mPaymentID, version)
		if err == nil && len(pdf) > 0 {
			h.servePDF(w, r, order, pdf, mPaymentID)
			return
		}
		// No stored artifact; fall through to a fresh render.
	}

	pdf, err := h.generator.Render(order, r.FormValue("site_url"))
	if err != nil {
		h.logger.Error("failed to render invoice", "error", err, "m_payment_id", mPaymentID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	url, err := h.generator.Publish(r.Context(), order, pdf, version)
	if err != nil {
		// The render succeeded; serve it even if the upload did not.
		h.logger.Error("failed to publish invoice", "error", err, "m_payment_id", mPaymentID)
	} else {
		w.Header().Set("X-Invoice-Url", url)
	}

	h.servePDF(w, r, order, pdf, mPaymentID)
}

func (h *Handler) servePDF(w http.ResponseWriter, r *http.Request, order *domain.Order, pdf []byte, mPaymentID string) {
	disposition := "inline"
	if v := r.FormValue("download"); v == "1" || v == "true" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+order.OrderNumber+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.logger.Error("failed to write invoice response", "error", err)
	}

	h.logger.Info("invoice served", "m_payment_id", mPaymentID, "bytes", len(pdf), "disposition", disposition)
}

func (h *Handler) paymentID(r *http.Request) string {
	if id := r.Header.Get("X-Payment-Id"); id != "" {
		return id
	}
	// FormValue covers both the query string and form-encoded bodies.
	if id := r.FormValue("m_payment_id"); id != "" {
		return id
	}
	if r.Header.Get("Content-Type") == "application/json" {
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			return req.MPaymentID
		}
	}
	return ""
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
