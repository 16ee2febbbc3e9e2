package domain

import "time"

type MovementReason string

const (
	MovementSale       MovementReason = "sale"
	MovementRestock    MovementReason = "restock"
	MovementAdjustment MovementReason = "adjustment"
	MovementReturn     MovementReason = "return"
	MovementDamage     MovementReason = "damage"
)

// StockMovement is one entry in the append-only inventory ledger. Rows are
// never updated or deleted; the current stock level on products is derived
// state kept alongside for cheap reads.
type StockMovement struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"product_id"`
	OrderID        string         `json:"order_id,omitempty"`
	QuantityDelta  int            `json:"quantity_delta"`
	ResultingStock int            `json:"resulting_stock"`
	Reason         MovementReason `json:"reason"`
	UnitPrice      int64          `json:"unit_price,omitempty"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
