package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentAccount carries the derived aggregate balance of one student ledger.
// Balances are always recomputed from terms and charges, never adjusted in place.
type StudentAccount struct {
	ID            string          `db:"id" json:"id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	TermBalance   decimal.Decimal `db:"term_balance" json:"term_balance"`
	ChargeBalance decimal.Decimal `db:"charge_balance" json:"charge_balance"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AccountCharge is an un-termed charge (e.g. uniform, ID replacement).
type AccountCharge struct {
	ID         string          `db:"id" json:"id"`
	AccountID  string          `db:"account_id" json:"account_id"`
	Label      string          `db:"label" json:"label"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	PaidAmount decimal.Decimal `db:"paid_amount" json:"paid_amount"`
}

// AccountSummary aggregates an account's outstanding position.
type AccountSummary struct {
	AccountID       string             `json:"account_id"`
	TermBalance     decimal.Decimal    `json:"term_balance"`
	ChargeBalance   decimal.Decimal    `json:"charge_balance"`
	Balance         decimal.Decimal    `json:"balance"`
	TotalAssessed   decimal.Decimal    `json:"total_assessed"`
	TotalPaid       decimal.Decimal    `json:"total_paid"`
	OverdueBalance  decimal.Decimal    `json:"overdue_balance"`
	OverdueTerms    int                `json:"overdue_terms"`
	NextDueTermID   *string            `json:"next_due_term_id,omitempty"`
	NextDueDate     *time.Time         `json:"next_due_date,omitempty"`
	NextDueBalance  decimal.Decimal    `json:"next_due_balance"`
	StatusBreakdown map[TermStatus]int `json:"status_breakdown"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
