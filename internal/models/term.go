package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TermStatus represents the payment state of an installment term.
type TermStatus string

const (
	TermStatusPending TermStatus = "pending"
	TermStatusPartial TermStatus = "partial"
	TermStatusPaid    TermStatus = "paid"
	TermStatusOverdue TermStatus = "overdue"
)

// Valid reports whether the status is a known value.
func (s TermStatus) Valid() bool {
	switch s {
	case TermStatusPending, TermStatusPartial, TermStatusPaid, TermStatusOverdue:
		return true
	}
	return false
}

// InstallmentTerm is one scheduled installment obligation of a student account.
type InstallmentTerm struct {
	ID           string          `db:"id" json:"id"`
	AccountID    string          `db:"account_id" json:"account_id"`
	AssessmentID string          `db:"assessment_id" json:"assessment_id"`
	Name         string          `db:"name" json:"name"`
	Sequence     int             `db:"sequence" json:"order"`
	DueDate      time.Time       `db:"due_date" json:"due_date"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	PaidAmount   decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Status       TermStatus      `db:"status" json:"status"`
	Remarks      *string         `db:"remarks" json:"remarks,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Balance returns the outstanding amount, never negative.
func (t InstallmentTerm) Balance() decimal.Decimal {
	balance := t.Amount.Sub(t.PaidAmount)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// IsSettled reports whether the term has been paid in full.
func (t InstallmentTerm) IsSettled() bool {
	return t.PaidAmount.GreaterThanOrEqual(t.Amount)
}

// BindAccount sets the owning account. Terms never move between accounts, so
// rebinding to a different account panics.
func (t *InstallmentTerm) BindAccount(accountID string) {
	if t.AccountID != "" && t.AccountID != accountID {
		panic(fmt.Sprintf("installment term %s already belongs to account %s, refusing to rebind to %s", t.ID, t.AccountID, accountID))
	}
	t.AccountID = accountID
}

// SetRemarks replaces the remarks annotation; an empty string clears it.
func (t *InstallmentTerm) SetRemarks(remarks string) {
	if remarks == "" {
		t.Remarks = nil
		return
	}
	t.Remarks = &remarks
}

// InstallmentTermView is the JSON shape returned to clients, with the derived
// balance materialised.
type InstallmentTermView struct {
	InstallmentTerm
	Balance decimal.Decimal `json:"balance"`
}

// NewInstallmentTermView builds the client view of a term.
func NewInstallmentTermView(t InstallmentTerm) InstallmentTermView {
	return InstallmentTermView{InstallmentTerm: t, Balance: t.Balance()}
}
