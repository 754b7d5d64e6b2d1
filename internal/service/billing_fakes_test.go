package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// ledgerStub is the shared in-memory state behind the repository fakes.
type ledgerStub struct {
	mu          sync.Mutex
	accounts    map[string]*models.StudentAccount
	terms       map[string]models.InstallmentTerm
	charges     map[string][]models.AccountCharge
	assessments map[string]models.Assessment
	allocations []models.PaymentAllocation

	lockErr      map[string]error
	listErr      error
	updateErr    error
	markErr      map[string]error
	allocErr     error
	locked       []string
	updateCalls  int
	findAccounts int
}

func newLedgerStub(accountIDs ...string) *ledgerStub {
	l := &ledgerStub{
		accounts:    make(map[string]*models.StudentAccount),
		terms:       make(map[string]models.InstallmentTerm),
		charges:     make(map[string][]models.AccountCharge),
		assessments: make(map[string]models.Assessment),
		lockErr:     make(map[string]error),
		markErr:     make(map[string]error),
	}
	for _, id := range accountIDs {
		l.accounts[id] = &models.StudentAccount{ID: id, StudentID: "stu-" + id}
	}
	return l
}

func (l *ledgerStub) addTerms(terms ...models.InstallmentTerm) {
	for _, term := range terms {
		l.terms[term.ID] = term
	}
}

func (l *ledgerStub) accountTerms(accountID string) []models.InstallmentTerm {
	var out []models.InstallmentTerm
	for _, term := range l.terms {
		if term.AccountID == accountID {
			out = append(out, term)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

type termRepoFake struct{ *ledgerStub }

func (r termRepoFake) ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.accountTerms(accountID), nil
}

func (r termRepoFake) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.InstallmentTerm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term, ok := r.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

func (r termRepoFake) CreateBatch(ctx context.Context, exec sqlx.ExtContext, terms []models.InstallmentTerm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addTerms(terms...)
	return nil
}

func (r termRepoFake) DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, term := range r.terms {
		if term.AccountID == accountID {
			delete(r.terms, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r termRepoFake) UpdatePayment(ctx context.Context, exec sqlx.ExtContext, term *models.InstallmentTerm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.terms[term.ID] = *term
	return nil
}

func (r termRepoFake) ListOverdueCandidateAccounts(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	seen := make(map[string]struct{})
	var out []string
	for _, term := range r.terms {
		if (term.Status == models.TermStatusPending || term.Status == models.TermStatusPartial) && term.DueDate.Before(cutoff) {
			if _, ok := seen[term.AccountID]; !ok {
				seen[term.AccountID] = struct{}{}
				out = append(out, term.AccountID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r termRepoFake) MarkOverdue(ctx context.Context, exec sqlx.ExtContext, termIDs []string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, id := range termIDs {
		term := r.terms[id]
		if err := r.markErr[term.AccountID]; err != nil {
			return 0, err
		}
		if term.Status == models.TermStatusPending || term.Status == models.TermStatusPartial {
			term.Status = models.TermStatusOverdue
			r.terms[id] = term
			changed++
		}
	}
	return changed, nil
}

type assessmentRepoFake struct{ *ledgerStub }

func (r assessmentRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, assessment *models.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments[assessment.ID] = *assessment
	return nil
}

func (r assessmentRepoFake) DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, assessment := range r.assessments {
		if assessment.AccountID == accountID {
			delete(r.assessments, id)
		}
	}
	return nil
}

type accountRepoFake struct{ *ledgerStub }

func (r accountRepoFake) FindByID(ctx context.Context, id string) (*models.StudentAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findAccounts++
	account, ok := r.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func (r accountRepoFake) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string, timeout time.Duration) (*models.StudentAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, id)
	if err := r.lockErr[id]; err != nil {
		return nil, err
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func (r accountRepoFake) RecomputeBalance(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account := r.accounts[id]
	account.TermBalance = outstandingBalance(r.accountTerms(id))
	account.ChargeBalance = chargeBalance(r.charges[id])
	account.Balance = account.TermBalance.Add(account.ChargeBalance)
	copied := *account
	return &copied, nil
}

func (r accountRepoFake) ListCharges(ctx context.Context, accountID string) ([]models.AccountCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.charges[accountID], nil
}

type allocationRepoFake struct{ *ledgerStub }

func (r allocationRepoFake) ExistsForPayment(ctx context.Context, exec sqlx.ExtContext, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, allocation := range r.allocations {
		if allocation.PaymentID != nil && *allocation.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (r allocationRepoFake) CreateBatch(ctx context.Context, exec sqlx.ExtContext, allocations []models.PaymentAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocErr != nil {
		return r.allocErr
	}
	r.allocations = append(r.allocations, allocations...)
	return nil
}

type cacheDeleteSpy struct {
	deleted []string
}

func (c *cacheDeleteSpy) Delete(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	return nil
}

func (l *ledgerStub) totalBalance(accountID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return outstandingBalance(l.accountTerms(accountID))
}

// mockExpect wraps the sqlmock transaction expectations used by locked
// account operations.
type mockExpect struct {
	mock sqlmock.Sqlmock
}

func (m mockExpect) committed() {
	m.mock.ExpectBegin()
	m.mock.ExpectCommit()
}

func (m mockExpect) rolledBack() {
	m.mock.ExpectBegin()
	m.mock.ExpectRollback()
}

func (m mockExpect) met(t *testing.T) {
	t.Helper()
	require.NoError(t, m.mock.ExpectationsWereMet())
}
