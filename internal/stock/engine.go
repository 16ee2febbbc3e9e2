// Package stock converts paid line items into inventory decrements,
// recorded as an append-only movement ledger alongside the tracked stock
// level on products.
package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bloomlane/payflow/internal/domain"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// pgCheckViolation is the class 23 code raised when the non-negative stock
// constraint rejects an update.
const pgCheckViolation = "23514"

type Engine struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEngine(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{db: db, logger: logger}
}

// Deduct records a sale movement per order item with a product reference and
// applies the decrement to the product's stock level. Items without a
// product reference are skipped. A failed item is logged and the remaining
// items still run; stock shortfalls must never block a paid order.
// Returns the number of movements applied.
func (e *Engine) Deduct(ctx context.Context, order *domain.Order) int {
	applied := 0
	for _, item := range order.Items {
		if item.ProductID == nil || *item.ProductID == "" {
			continue
		}
		err := e.apply(ctx, domain.StockMovement{
			ProductID:     *item.ProductID,
			OrderID:       order.ID,
			QuantityDelta: -item.Quantity,
			Reason:        domain.MovementSale,
			UnitPrice:     item.UnitPrice,
			Note:          "order " + order.OrderNumber,
		})
		if err != nil {
			e.logger.Error("stock deduction failed",
				"error", err, "order_id", order.ID, "product_id", *item.ProductID, "quantity", item.Quantity)
			continue
		}
		applied++
	}
	return applied
}

// Restock records a positive movement, e.g. supplier delivery or a return.
func (e *Engine) Restock(ctx context.Context, productID string, quantity int, reason domain.MovementReason, note string) error {
	if quantity <= 0 {
		return fmt.Errorf("restock quantity must be positive, got %d", quantity)
	}
	return e.apply(ctx, domain.StockMovement{
		ProductID:     productID,
		QuantityDelta: quantity,
		Reason:        reason,
		Note:          note,
	})
}

// Adjust records a signed correction movement.
func (e *Engine) Adjust(ctx context.Context, productID string, delta int, note string) error {
	return e.apply(ctx, domain.StockMovement{
		ProductID:     productID,
		QuantityDelta: delta,
		Reason:        domain.MovementAdjustment,
		Note:          note,
	})
}

// apply runs one movement in its own transaction: conditional stock update,
// read-back of the resulting level, append to the movement ledger.
func (e *Engine) apply(ctx context.Context, m domain.StockMovement) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stock movement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
	`, m.ProductID, m.QuantityDelta)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgCheckViolation {
			return ErrInsufficientStock
		}
		return fmt.Errorf("apply stock delta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply stock delta: %w", err)
	}
	if rowsAffected == 0 {
		// Either the product is unknown or the delta would go negative.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, m.ProductID).Scan(&exists); err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if !exists {
			return fmt.Errorf("product %s not found", m.ProductID)
		}
		return ErrInsufficientStock
	}

	var resulting int
	if err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, m.ProductID).Scan(&resulting); err != nil {
		return fmt.Errorf("read resulting stock: %w", err)
	}

	var orderID any
	if m.OrderID != "" {
		orderID = m.OrderID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, order_id, quantity_delta, resulting_stock, reason, unit_price, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, uuid.New().String(), m.ProductID, orderID, m.QuantityDelta, resulting, m.Reason, m.UnitPrice, m.Note)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}

	return tx.Commit()
}

// Movements lists the ledger entries for a product, newest first.
func (e *Engine) Movements(ctx context.Context, productID string) ([]domain.StockMovement, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, product_id, COALESCE(order_id::text, ''), quantity_delta, resulting_stock, reason, unit_price, note, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.OrderID, &m.QuantityDelta, &m.ResultingStock, &m.Reason, &m.UnitPrice, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}

	return movements, rows.Err()
}
