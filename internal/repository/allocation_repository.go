package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// AllocationRepository records how payments were distributed across terms.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs the repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ExistsForPayment reports whether a payment already has allocation rows.
func (r *AllocationRepository) ExistsForPayment(ctx context.Context, exec sqlx.ExtContext, paymentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM payment_allocations WHERE payment_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, paymentID); err != nil {
		return false, fmt.Errorf("check payment allocation: %w", err)
	}
	return exists, nil
}

// CreateBatch inserts allocation rows.
func (r *AllocationRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, allocations []models.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range allocations {
		if allocations[i].ID == "" {
			allocations[i].ID = uuid.NewString()
		}
		if allocations[i].CreatedAt.IsZero() {
			allocations[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO payment_allocations (id, payment_id, account_id, term_id, amount, balance_before, balance_after, created_at)
VALUES (:id, :payment_id, :account_id, :term_id, :amount, :balance_before, :balance_after, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, allocations); err != nil {
		return fmt.Errorf("create payment allocations: %w", err)
	}
	return nil
}
