package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// AssessmentRepository persists assessments and the split policy used.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an assessment.
func (r *AssessmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assessments (id, account_id, total_amount, policy, schedule_start, created_at)
VALUES (:id, :account_id, :total_amount, :policy, :schedule_start, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// DeleteByAccount removes the account's assessments ahead of restructuring.
func (r *AssessmentRepository) DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM assessments WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("delete assessments: %w", err)
	}
	return nil
}

// FindLatestByAccount returns the account's current assessment. sql.ErrNoRows
// is returned unwrapped.
func (r *AssessmentRepository) FindLatestByAccount(ctx context.Context, accountID string) (*models.Assessment, error) {
	const query = `SELECT id, account_id, total_amount, policy, schedule_start, created_at FROM assessments WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, accountID); err != nil {
		return nil, err
	}
	return &assessment, nil
}
