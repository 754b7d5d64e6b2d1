package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const termColumns = `id, account_id, assessment_id, name, sequence, due_date, amount, paid_amount, status, remarks, created_at, updated_at`

// TermRepository handles persistence for installment terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

func (r *TermRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByAccount returns every term of the account in schedule order.
func (r *TermRepository) ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error) {
	query := `SELECT ` + termColumns + ` FROM installment_terms WHERE account_id = $1 ORDER BY due_date ASC, sequence ASC`
	var terms []models.InstallmentTerm
	if err := sqlx.SelectContext(ctx, r.exec(exec), &terms, query, accountID); err != nil {
		return nil, fmt.Errorf("list installment terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier. sql.ErrNoRows is returned unwrapped.
func (r *TermRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.InstallmentTerm, error) {
	query := `SELECT ` + termColumns + ` FROM installment_terms WHERE id = $1`
	var term models.InstallmentTerm
	if err := sqlx.GetContext(ctx, r.exec(exec), &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// CreateBatch inserts all terms of one assessment in a single statement.
func (r *TermRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, terms []models.InstallmentTerm) error {
	if len(terms) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range terms {
		if terms[i].ID == "" {
			terms[i].ID = uuid.NewString()
		}
		if terms[i].CreatedAt.IsZero() {
			terms[i].CreatedAt = now
		}
		terms[i].UpdatedAt = now
	}

	const query = `INSERT INTO installment_terms (` + termColumns + `)
VALUES (:id, :account_id, :assessment_id, :name, :sequence, :due_date, :amount, :paid_amount, :status, :remarks, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, terms); err != nil {
		return fmt.Errorf("create installment terms: %w", err)
	}
	return nil
}

// DeleteByAccount removes the whole term batch of an account (restructuring).
func (r *TermRepository) DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM installment_terms WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete installment terms: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete installment terms rows: %w", err)
	}
	return affected, nil
}

// UpdatePayment persists paid amount, status and remarks of a term. The
// paid_amount guard rejects writes that would move it backwards.
func (r *TermRepository) UpdatePayment(ctx context.Context, exec sqlx.ExtContext, term *models.InstallmentTerm) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE installment_terms SET paid_amount = $3, status = $4, remarks = $5, updated_at = $6
WHERE id = $1 AND account_id = $2 AND paid_amount <= $3 AND paid_amount <= amount`
	res, err := r.exec(exec).ExecContext(ctx, query, term.ID, term.AccountID, term.PaidAmount, term.Status, term.Remarks, term.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update installment term payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update installment term payment rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("update installment term payment: term %s not updated (%d rows)", term.ID, affected)
	}
	return nil
}

// ListOverdueCandidateAccounts returns accounts holding pending or partial
// terms due before cutoff.
func (r *TermRepository) ListOverdueCandidateAccounts(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `SELECT DISTINCT account_id FROM installment_terms WHERE status IN ('pending', 'partial') AND due_date < $1 ORDER BY account_id`
	var accounts []string
	if err := r.db.SelectContext(ctx, &accounts, query, cutoff); err != nil {
		return nil, fmt.Errorf("list overdue candidate accounts: %w", err)
	}
	return accounts, nil
}

// MarkOverdue flips the given terms to overdue. Terms already overdue or paid
// are left untouched, so the number of rows changed is returned.
func (r *TermRepository) MarkOverdue(ctx context.Context, exec sqlx.ExtContext, termIDs []string, now time.Time) (int64, error) {
	if len(termIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE installment_terms SET status = 'overdue', updated_at = $2 WHERE id = ANY($1) AND status IN ('pending', 'partial')`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(termIDs), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark installment terms overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark installment terms overdue rows: %w", err)
	}
	return affected, nil
}
