// Package coupon tracks usage counters for discount codes. Accounting here
// is best-effort: a failed increment is reported to the caller, which logs
// and moves on — it must never block fulfillment of a paid order.
package coupon

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Accountant struct {
	db *sql.DB
}

func NewAccountant(db *sql.DB) *Accountant {
	return &Accountant{db: db}
}

// RecordUsage increments the usage counter for a coupon code. Unknown codes
// are not an error; checkout may have accepted a code that was since removed.
func (a *Accountant) RecordUsage(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	_, err := a.db.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, last_used_at = NOW()
		WHERE code = $1
	`, code)
	if err != nil {
		return fmt.Errorf("record coupon usage: %w", err)
	}

	return nil
}
