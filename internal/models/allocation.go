package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAllocation records the portion of a payment applied to one term.
type PaymentAllocation struct {
	ID            string          `db:"id" json:"id"`
	PaymentID     *string         `db:"payment_id" json:"payment_id,omitempty"`
	AccountID     string          `db:"account_id" json:"account_id"`
	TermID        string          `db:"term_id" json:"term_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
