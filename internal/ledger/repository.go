// Package ledger is the authoritative order-state store. State transitions
// are conditional updates keyed on the current status, so a re-delivered
// webhook observes rows-affected == 0 instead of re-running the transition.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bloomlane/payflow/internal/domain"
)

var ErrNotFound = errors.New("order not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `
	id, m_payment_id, order_number, status, payment_status,
	subtotal, shipping, discount, tax, total, currency,
	buyer_name, buyer_email, buyer_phone,
	fulfillment, delivery_address, collection_location,
	coupon_code, invoice_url, paid_at, created_at
`

// FindByPaymentID looks up an order by the merchant payment id the gateway
// echoes back. Exact match only; returns nil when no order exists yet.
func (r *Repository) FindByPaymentID(ctx context.Context, mPaymentID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE m_payment_id = $1
	`, mPaymentID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by payment id: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetByID fetches an order and its items by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// MarkPaid transitions a pending order to paid. The status guard in the
// WHERE clause is the idempotency signal: when zero rows are affected the
// order was already paid (or cancelled) and the call is a no-op. The bool
// return reports whether this call performed the transition.
func (r *Repository) MarkPaid(ctx context.Context, id string) (*domain.Order, bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, domain.OrderStatusPaid, domain.PaymentStatusPaid, domain.OrderStatusPending)
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if order == nil {
		return nil, false, ErrNotFound
	}

	return order, rowsAffected > 0, nil
}

// MarkFailed transitions a pending order to cancelled. Paid and cancelled
// orders are terminal and untouched.
func (r *Repository) MarkFailed(ctx context.Context, id string) (*domain.Order, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, domain.OrderStatusCancelled, domain.PaymentStatusFailed, domain.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	return order, nil
}

// SetInvoiceURL records the published invoice location on the order.
func (r *Repository) SetInvoiceURL(ctx context.Context, id, url string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET invoice_url = $2, updated_at = NOW()
		WHERE id = $1
	`, id, url)
	if err != nil {
		return fmt.Errorf("set invoice url: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set invoice url: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, sku, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, order.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.SKU, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var deliveryAddr, collectionLoc, couponCode, invoiceURL sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(
		&order.ID, &order.MPaymentID, &order.OrderNumber, &order.Status, &order.PaymentStatus,
		&order.Subtotal, &order.Shipping, &order.Discount, &order.Tax, &order.Total, &order.Currency,
		&order.BuyerName, &order.BuyerEmail, &order.BuyerPhone,
		&order.Fulfillment, &deliveryAddr, &collectionLoc,
		&couponCode, &invoiceURL, &paidAt, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.DeliveryAddr = deliveryAddr.String
	order.CollectionLoc = collectionLoc.String
	order.CouponCode = couponCode.String
	order.InvoiceURL = invoiceURL.String
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}

	return order, nil
}
