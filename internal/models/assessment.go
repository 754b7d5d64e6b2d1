package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitPolicy selects how an assessment total is divided across terms.
type SplitPolicy string

const (
	SplitPolicyPercentage SplitPolicy = "PERCENTAGE"
	SplitPolicyUniform    SplitPolicy = "UNIFORM"
)

// Valid reports whether the policy is supported.
func (p SplitPolicy) Valid() bool {
	return p == SplitPolicyPercentage || p == SplitPolicyUniform
}

// Assessment is the total owed by an account for a billing period.
type Assessment struct {
	ID            string          `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Policy        SplitPolicy     `db:"policy" json:"policy"`
	ScheduleStart time.Time       `db:"schedule_start" json:"schedule_start"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
