package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const accountColumns = `id, student_id, term_balance, charge_balance, balance, updated_at`

// AccountRepository persists student account aggregates.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an account. sql.ErrNoRows is returned unwrapped.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.StudentAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM student_accounts WHERE id = $1`
	var account models.StudentAccount
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// LockForUpdate takes the row lock that serialises every write to the
// account's terms. It must run inside a transaction. A positive timeout bounds
// the wait; Postgres reports lock_not_available (55P03) when it expires.
func (r *AccountRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string, timeout time.Duration) (*models.StudentAccount, error) {
	target := r.exec(exec)
	if timeout > 0 {
		// SET cannot take bind parameters; the value is a formatted integer.
		if _, err := target.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	query := `SELECT ` + accountColumns + ` FROM student_accounts WHERE id = $1 FOR UPDATE`
	var account models.StudentAccount
	if err := sqlx.GetContext(ctx, target, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// RecomputeBalance resums outstanding term and charge balances from scratch and
// stores them on the account row.
func (r *AccountRepository) RecomputeBalance(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error) {
	const query = `UPDATE student_accounts SET
    term_balance = t.open,
    charge_balance = c.open,
    balance = t.open + c.open,
    updated_at = $2
FROM
    (SELECT COALESCE(SUM(GREATEST(amount - paid_amount, 0)), 0) AS open FROM installment_terms WHERE account_id = $1) t,
    (SELECT COALESCE(SUM(GREATEST(amount - paid_amount, 0)), 0) AS open FROM account_charges WHERE account_id = $1) c
WHERE student_accounts.id = $1
RETURNING student_accounts.id, student_accounts.student_id, student_accounts.term_balance,
    student_accounts.charge_balance, student_accounts.balance, student_accounts.updated_at`
	var account models.StudentAccount
	if err := sqlx.GetContext(ctx, r.exec(exec), &account, query, id, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recompute account balance: %w", err)
	}
	return &account, nil
}

// ListCharges returns the account's un-termed charges.
func (r *AccountRepository) ListCharges(ctx context.Context, accountID string) ([]models.AccountCharge, error) {
	const query = `SELECT id, account_id, label, amount, paid_amount FROM account_charges WHERE account_id = $1 ORDER BY id`
	var charges []models.AccountCharge
	if err := r.db.SelectContext(ctx, &charges, query, accountID); err != nil {
		return nil, fmt.Errorf("list account charges: %w", err)
	}
	return charges, nil
}
