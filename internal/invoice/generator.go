// Package invoice renders the PDF receipt/invoice for an order and publishes
// it to durable object storage, recording the public URL on the order.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/bloomlane/payflow/internal/domain"
	"github.com/bloomlane/payflow/internal/storage"
)

// OrderWriter records the published invoice URL back on the order row.
type OrderWriter interface {
	SetInvoiceURL(ctx context.Context, orderID, url string) error
}

type Config struct {
	SiteName string
	SiteURL  string
	// FreeShippingThreshold is the subtotal (minor units) above which
	// checkout waives shipping; invoices label the derived shipping line
	// accordingly when no shipping was charged.
	FreeShippingThreshold int64
}

type Generator struct {
	store  storage.ObjectStore
	orders OrderWriter
	cfg    Config
	logger *slog.Logger
}

func NewGenerator(store storage.ObjectStore, orders OrderWriter, cfg Config, logger *slog.Logger) *Generator {
	return &Generator{store: store, orders: orders, cfg: cfg, logger: logger}
}

// ObjectKey is the deterministic storage key for an order's invoice.
// version > 0 produces a distinct key so stale CDN caches can be bypassed
// without the previous URL disappearing.
func ObjectKey(mPaymentID string, version int) string {
	if version > 0 {
		return "invoices/" + mPaymentID + "-v" + strconv.Itoa(version) + ".pdf"
	}
	return "invoices/" + mPaymentID + ".pdf"
}

// Generate renders the order's invoice, uploads it and records the URL on
// the order. Safe to call repeatedly; each call overwrites the artifact
// under the same key and refreshes the stored URL.
func (g *Generator) Generate(ctx context.Context, order *domain.Order) (string, error) {
	pdf, err := g.Render(order, "")
	if err != nil {
		return "", err
	}
	return g.Publish(ctx, order, pdf, 0)
}

// Publish uploads rendered bytes and writes the resulting URL back on the
// order. Upload failure is returned; URL write-back failure is logged only,
// since the artifact is already durable and the URL is derivable.
func (g *Generator) Publish(ctx context.Context, order *domain.Order, pdf []byte, version int) (string, error) {
	key := ObjectKey(order.MPaymentID, version)
	url, err := g.store.Put(ctx, key, pdf, "application/pdf")
	if err != nil {
		return "", fmt.Errorf("publish invoice: %w", err)
	}

	if err := g.orders.SetInvoiceURL(ctx, order.ID, url); err != nil {
		g.logger.Error("failed to record invoice url", "error", err, "order_id", order.ID, "url", url)
	}

	order.InvoiceURL = url
	return url, nil
}

// Stored fetches the previously published artifact for an order, if any.
func (g *Generator) Stored(ctx context.Context, mPaymentID string, version int) ([]byte, error) {
	return g.store.Get(ctx, ObjectKey(mPaymentID, version))
}

// totals derives the displayed amounts, rebuilding any stored zeros from the
// item lines. An invoice must never show a zero total when the items allow
// reconstruction.
type totals struct {
	subtotal int64
	shipping int64
	discount int64
	tax      int64
	total    int64
}

func computeTotals(order *domain.Order) totals {
	t := totals{
		subtotal: order.Subtotal,
		shipping: order.Shipping,
		discount: order.Discount,
		tax:      order.Tax,
		total:    order.Total,
	}
	if t.subtotal == 0 {
		t.subtotal = order.ItemsTotal()
	}
	if t.total == 0 {
		t.total = t.subtotal + t.shipping + t.tax - t.discount
	}
	return t
}

// Render lays out the PDF. siteURL overrides the configured branding link
// when non-empty (used by the retrieval endpoint).
func (g *Generator) Render(order *domain.Order, siteURL string) ([]byte, error) {
	if siteURL == "" {
		siteURL = g.cfg.SiteURL
	}
	t := computeTotals(order)

	title := "INVOICE"
	if order.PaymentStatus == domain.PaymentStatusPaid {
		title = "RECEIPT"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title+" "+order.OrderNumber, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(120, 10, title)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(70, 10, g.cfg.SiteName, "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(120, 5, "Order "+order.OrderNumber)
	pdf.CellFormat(70, 5, order.MPaymentID, "", 1, "R", false, 0, "")
	issued := order.CreatedAt
	if order.PaidAt != nil {
		issued = *order.PaidAt
	}
	pdf.Cell(120, 5, issued.Format("2 January 2006"))
	pdf.Ln(10)

	// Buyer block
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, "Billed to", "", 1, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, order.BuyerName, "", 1, "", false, 0, "")
	if order.BuyerEmail != "" {
		pdf.CellFormat(0, 5, order.BuyerEmail, "", 1, "", false, 0, "")
	}
	if order.BuyerPhone != "" {
		pdf.CellFormat(0, 5, order.BuyerPhone, "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	// Fulfillment block
	pdf.SetFont("Helvetica", "B", 10)
	switch order.Fulfillment {
	case domain.FulfillmentDelivery:
		pdf.CellFormat(0, 5, "Deliver to", "", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, order.DeliveryAddr, "", "", false)
	case domain.FulfillmentCollection:
		pdf.CellFormat(0, 5, "Collection", "", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, order.CollectionLoc, "", 1, "", false, 0, "")
	case domain.FulfillmentDigital:
		pdf.CellFormat(0, 5, "Digital order", "", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, "Access details are sent to the email address above.", "", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	// Item table
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(95, 7, "Item", "B", 0, "", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Unit", "B", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, "Total", "B", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range order.Items {
		pdf.CellFormat(95, 6, item.Name, "", 0, "", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, formatAmount(order.Currency, item.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatAmount(order.Currency, item.EffectiveLineTotal()), "", 1, "R", false, 0, "")

		if isCourseLine(item.SKU) {
			g.renderCourseDetail(pdf, item)
		}
	}

	// Derived shipping line
	if t.shipping > 0 {
		pdf.CellFormat(115, 6, "Shipping", "", 0, "", false, 0, "")
		pdf.CellFormat(75, 6, formatAmount(order.Currency, t.shipping), "", 1, "R", false, 0, "")
	} else if g.cfg.FreeShippingThreshold > 0 && t.subtotal >= g.cfg.FreeShippingThreshold && order.Fulfillment == domain.FulfillmentDelivery {
		pdf.CellFormat(115, 6, "Shipping (free over "+formatAmount(order.Currency, g.cfg.FreeShippingThreshold)+")", "", 0, "", false, 0, "")
		pdf.CellFormat(75, 6, formatAmount(order.Currency, 0), "", 1, "R", false, 0, "")
	}

	// Coupon discount as a negative line
	if t.discount > 0 {
		label := "Discount"
		if order.CouponCode != "" {
			label = "Coupon " + order.CouponCode
		}
		pdf.CellFormat(115, 6, label, "", 0, "", false, 0, "")
		pdf.CellFormat(75, 6, formatAmount(order.Currency, -t.discount), "", 1, "R", false, 0, "")
	}

	// Total block
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(115, 8, "Total", "T", 0, "", false, 0, "")
	pdf.CellFormat(75, 8, formatAmount(order.Currency, t.total), "T", 1, "R", false, 0, "")
	if t.tax > 0 {
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, "Includes tax of "+formatAmount(order.Currency, t.tax), "", 1, "R", false, 0, "")
	}

	// Footer
	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, g.cfg.SiteName+"  |  "+siteURL, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}

	return buf.Bytes(), nil
}

func (g *Generator) renderCourseDetail(pdf *fpdf.Fpdf, item domain.OrderItem) {
	detail := parseCourseDetail(item.Name)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(90, 90, 90)
	if detail.Course != "" {
		pdf.CellFormat(0, 4, "    Course: "+detail.Course, "", 1, "", false, 0, "")
	}
	if detail.Package != "" {
		pdf.CellFormat(0, 4, "    Package: "+detail.Package, "", 1, "", false, 0, "")
	}
	if detail.Date != "" {
		pdf.CellFormat(0, 4, "    Date: "+detail.Date, "", 1, "", false, 0, "")
	}
	payment := "Full payment"
	if detail.Deposit {
		payment = "Deposit"
	}
	pdf.CellFormat(0, 4, "    Payment: "+payment, "", 1, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
}
