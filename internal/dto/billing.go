package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// AllocationMode describes how a payment was distributed.
type AllocationMode string

const (
	AllocationModeSequential AllocationMode = "SEQUENTIAL"
	AllocationModeTargeted   AllocationMode = "TARGETED"
)

// GenerateTermsRequest creates (or restructures) an account's installment terms.
type GenerateTermsRequest struct {
	AccountID     string             `json:"-" validate:"required,max=64"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	ScheduleStart string             `json:"schedule_start"`
	Policy        models.SplitPolicy `json:"policy" validate:"omitempty,oneof=PERCENTAGE UNIFORM"`
}

// GenerateTermsResult is returned after a generation or restructuring run.
type GenerateTermsResult struct {
	Assessment      models.Assessment            `json:"assessment"`
	Terms           []models.InstallmentTermView `json:"terms"`
	Restructured    bool                         `json:"restructured"`
	ReappliedAmount decimal.Decimal              `json:"reapplied_amount"`
	CarriedCredit   decimal.Decimal              `json:"carried_credit"`
	AnchorFallback  bool                         `json:"anchor_fallback"`
	AccountBalance  decimal.Decimal              `json:"account_balance"`
}

// AllocatePaymentRequest applies a recorded payment to an account's terms.
type AllocatePaymentRequest struct {
	AccountID string          `json:"-" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
	TermID    string          `json:"term_id" validate:"omitempty,max=64"`
	PaymentID string          `json:"payment_id" validate:"omitempty,max=64"`
}

// AllocationResult reports how a payment was distributed.
type AllocationResult struct {
	AccountID       string                       `json:"account_id"`
	PaymentID       string                       `json:"payment_id,omitempty"`
	Mode            AllocationMode               `json:"mode"`
	AppliedAmount   decimal.Decimal              `json:"applied_amount"`
	RemainderAmount decimal.Decimal              `json:"remainder_amount"`
	UpdatedTerms    []models.InstallmentTermView `json:"updated_terms"`
	Allocations     []models.PaymentAllocation   `json:"allocations"`
	AccountBalance  decimal.Decimal              `json:"account_balance"`
}

// SweepOverdueRequest triggers an on-demand overdue sweep. Now defaults to the
// server clock.
type SweepOverdueRequest struct {
	Now *time.Time `json:"now"`
}

// SweepOverdueResult summarises a sweep run.
type SweepOverdueResult struct {
	Transitioned   int       `json:"transitioned"`
	AccountsSwept  int       `json:"accounts_swept"`
	FailedAccounts int       `json:"failed_accounts"`
	RanAt          time.Time `json:"ran_at"`
}
