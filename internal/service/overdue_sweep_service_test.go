package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
)

func newSweepServiceForTest(t *testing.T, ledger *ledgerStub, now time.Time) (*OverdueSweepService, *cacheDeleteSpy, mockExpect) {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	spy := &cacheDeleteSpy{}
	svc := NewOverdueSweepService(termRepoFake{ledger}, accountRepoFake{ledger}, tx, spy, NewMetricsService(), fixedClock{now: now}, TermServiceConfig{}, nil)
	return svc, spy, mockExpect{mock}
}

func sweepLedger() *ledgerStub {
	ledger := newLedgerStub("acc-1", "acc-2")
	partial := pendingTerm("a2", 2, "100", day(2025, 9, 1))
	partial.PaidAmount = dec("40")
	partial.Status = models.TermStatusPartial
	paid := pendingTerm("a3", 3, "100", day(2025, 8, 1))
	paid.PaidAmount = dec("100")
	paid.Status = models.TermStatusPaid
	ledger.addTerms(
		pendingTerm("a1", 1, "100", day(2025, 8, 15)),
		partial,
		paid,
		pendingTerm("a4", 4, "100", day(2025, 9, 13)),
	)
	other := pendingTerm("b1", 1, "100", day(2025, 9, 12))
	other.AccountID = "acc-2"
	ledger.addTerms(other)
	return ledger
}

func TestOverdueSweepFlipsPastDueTerms(t *testing.T) {
	now := time.Date(2025, 9, 13, 1, 0, 0, 0, time.UTC)
	ledger := sweepLedger()
	svc, spy, mock := newSweepServiceForTest(t, ledger, now)
	mock.committed()
	mock.committed()

	transitioned, err := svc.SweepOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, transitioned)

	assert.Equal(t, models.TermStatusOverdue, ledger.terms["a1"].Status)
	assert.Equal(t, models.TermStatusOverdue, ledger.terms["a2"].Status)
	assert.Equal(t, models.TermStatusPaid, ledger.terms["a3"].Status)
	assert.Equal(t, models.TermStatusPending, ledger.terms["a4"].Status, "due today is not overdue")
	assert.Equal(t, models.TermStatusOverdue, ledger.terms["b1"].Status)
	assert.ElementsMatch(t, []string{"billing:account:acc-1:summary", "billing:account:acc-2:summary"}, spy.deleted)
	mock.met(t)
}

func TestOverdueSweepIsIdempotent(t *testing.T) {
	now := time.Date(2025, 9, 13, 1, 0, 0, 0, time.UTC)
	ledger := sweepLedger()
	svc, _, mock := newSweepServiceForTest(t, ledger, now)
	mock.committed()
	mock.committed()

	first, err := svc.SweepOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, first)

	second, err := svc.SweepOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second)
	mock.met(t)
}

func TestOverdueSweepSkipsFailingAccount(t *testing.T) {
	now := time.Date(2025, 9, 13, 1, 0, 0, 0, time.UTC)
	ledger := sweepLedger()
	ledger.markErr["acc-1"] = errors.New("disk full")
	svc, _, mock := newSweepServiceForTest(t, ledger, now)
	mock.rolledBack()
	mock.committed()

	result, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.FailedAccounts)
	assert.Equal(t, 1, result.AccountsSwept)
	assert.Equal(t, models.TermStatusOverdue, ledger.terms["b1"].Status)
	mock.met(t)
}

func TestOverdueSweepListFailure(t *testing.T) {
	ledger := sweepLedger()
	ledger.listErr = errors.New("db down")
	svc, _, _ := newSweepServiceForTest(t, ledger, time.Now())

	_, err := svc.SweepOverdue(context.Background(), time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestOverdueSweepHandleJob(t *testing.T) {
	now := time.Date(2025, 9, 13, 1, 0, 0, 0, time.UTC)
	ledger := sweepLedger()
	svc, _, mock := newSweepServiceForTest(t, ledger, now)
	mock.committed()
	mock.committed()

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{Type: JobTypeOverdueSweep}))
	assert.Equal(t, models.TermStatusOverdue, ledger.terms["a1"].Status)

	err := svc.Handle(context.Background(), jobs.Job{Type: "other"})
	assert.True(t, errors.Is(err, jobs.ErrPermanent))
}
