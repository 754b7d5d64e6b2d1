package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
)

// JobTypeOverdueSweep is the queue job type handled by OverdueSweepService.
const JobTypeOverdueSweep = "billing.overdue_sweep"

type sweepTermRepository interface {
	ListOverdueCandidateAccounts(ctx context.Context, cutoff time.Time) ([]string, error)
	ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error)
	MarkOverdue(ctx context.Context, exec sqlx.ExtContext, termIDs []string, now time.Time) (int64, error)
}

// OverdueSweepService flips past-due pending and partial terms to overdue.
type OverdueSweepService struct {
	terms    sweepTermRepository
	accounts accountLocker
	locker   accountTx
	cache    cacheInvalidator
	metrics  *MetricsService
	clock    Clock
	logger   *zap.Logger
}

// NewOverdueSweepService wires sweep dependencies.
func NewOverdueSweepService(
	terms sweepTermRepository,
	accounts accountLocker,
	tx txProvider,
	cache cacheInvalidator,
	metrics *MetricsService,
	clock Clock,
	cfg TermServiceConfig,
	logger *zap.Logger,
) *OverdueSweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &OverdueSweepService{
		terms:    terms,
		accounts: accounts,
		locker:   accountTx{tx: tx, accounts: accounts, lockTimeout: cfg.LockTimeout},
		cache:    cache,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
	}
}

// SweepOverdue marks every pending or partial term due before the calendar
// day of now as overdue and returns how many terms changed.
func (s *OverdueSweepService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	result, err := s.Run(ctx, now)
	if result == nil {
		return 0, err
	}
	return result.Transitioned, err
}

// Run performs a sweep and reports per-account statistics. Each account is
// swept in its own transaction; an account that fails is logged and skipped.
func (s *OverdueSweepService) Run(ctx context.Context, now time.Time) (*dto.SweepOverdueResult, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	started := time.Now()
	result := &dto.SweepOverdueResult{RanAt: now.UTC()}

	accounts, err := s.terms.ListOverdueCandidateAccounts(ctx, calendarDate(now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue candidates")
	}

	for _, accountID := range accounts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.metrics.RecordSweep(result.Transitioned, result.FailedAccounts, time.Since(started))
			return result, appErrors.Wrap(ctxErr, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "overdue sweep interrupted")
		}

		changed, err := s.sweepAccount(ctx, accountID, now)
		if err != nil {
			result.FailedAccounts++
			s.logger.Error("overdue sweep failed for account", zap.String("account_id", accountID), zap.Error(err))
			continue
		}
		result.AccountsSwept++
		result.Transitioned += changed
		if changed > 0 && s.cache != nil {
			if cacheErr := s.cache.Delete(ctx, summaryCacheKey(accountID)); cacheErr != nil {
				s.logger.Warn("failed to invalidate account summary", zap.String("account_id", accountID), zap.Error(cacheErr))
			}
		}
	}

	s.metrics.RecordSweep(result.Transitioned, result.FailedAccounts, time.Since(started))
	s.logger.Info("overdue sweep completed",
		zap.Time("now", now),
		zap.Int("candidate_accounts", len(accounts)),
		zap.Int("accounts_swept", result.AccountsSwept),
		zap.Int("failed_accounts", result.FailedAccounts),
		zap.Int("transitioned", result.Transitioned),
	)
	return result, nil
}

func (s *OverdueSweepService) sweepAccount(ctx context.Context, accountID string, now time.Time) (int, error) {
	var changed int64
	err := s.locker.run(ctx, accountID, func(exec sqlx.ExtContext, _ *models.StudentAccount) error {
		terms, err := s.terms.ListByAccount(ctx, exec, accountID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(terms))
		for _, term := range terms {
			if isSweepCandidate(term, now) {
				ids = append(ids, term.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		changed, err = s.terms.MarkOverdue(ctx, exec, ids, now)
		if err != nil {
			return err
		}
		_, err = s.accounts.RecomputeBalance(ctx, exec, accountID)
		return err
	})
	if err != nil {
		if appErrors.IsRetryable(err) {
			s.metrics.RecordConcurrentModification("overdue_sweep")
		}
		return 0, err
	}
	return int(changed), nil
}

// Handle runs a sweep for a queued job. Only a failure to enumerate candidates
// is returned, so the queue retries the whole run; per-account failures are
// picked up by the next scheduled run.
func (s *OverdueSweepService) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeOverdueSweep {
		return fmt.Errorf("%w: unexpected job type %q", jobs.ErrPermanent, job.Type)
	}
	now := s.clock.Now()
	if at, ok := job.Payload.(time.Time); ok && !at.IsZero() {
		now = at
	}
	_, err := s.Run(ctx, now)
	return err
}
