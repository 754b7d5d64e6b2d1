package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type accountLocker interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string, timeout time.Duration) (*models.StudentAccount, error)
	RecomputeBalance(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error)
}

// Clock abstracts the current time so sweeps and anchors can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// accountTx runs fn inside one transaction holding the account row lock.
// Every write to an account's terms goes through here.
type accountTx struct {
	tx          txProvider
	accounts    accountLocker
	lockTimeout time.Duration
}

func (a accountTx) run(ctx context.Context, accountID string, fn func(exec sqlx.ExtContext, account *models.StudentAccount) error) (err error) {
	if a.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := a.tx.BeginTxx(ctx, nil)
	if err != nil {
		return classifyStorageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	account, err := a.accounts.LockForUpdate(ctx, tx, accountID, a.lockTimeout)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "account not found")
			return err
		}
		err = classifyStorageError(err, "failed to lock account")
		return err
	}

	if err = fn(tx, account); err != nil {
		err = classifyStorageError(err, "account update failed")
		return err
	}

	if err = tx.Commit(); err != nil {
		err = classifyStorageError(err, "failed to commit account transaction")
		return err
	}
	return nil
}

// classifyStorageError maps lock and serialization conflicts to the retryable
// CONCURRENT_MODIFICATION error, keeps typed errors and wraps everything else
// as internal.
func classifyStorageError(err error, message string) error {
	if err == nil {
		return nil
	}
	if database.IsConcurrencyConflict(err) {
		return appErrors.WrapAs(err, appErrors.ErrConcurrentModification, "")
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
