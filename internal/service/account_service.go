package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

type summaryAccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentAccount, error)
	ListCharges(ctx context.Context, accountID string) ([]models.AccountCharge, error)
}

type summaryTermRepository interface {
	ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AccountService serves the read-side balance summary of an account.
type AccountService struct {
	accounts summaryAccountRepository
	terms    summaryTermRepository
	cache    summaryCache
	cacheTTL time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewAccountService constructs the summary service. cache may be nil.
func NewAccountService(accounts summaryAccountRepository, terms summaryTermRepository, cache summaryCache, cacheTTL time.Duration, clock Clock, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &AccountService{accounts: accounts, terms: terms, cache: cache, cacheTTL: cacheTTL, clock: clock, logger: logger}
}

// Summary returns outstanding balances, overdue exposure and the next due term.
func (s *AccountService) Summary(ctx context.Context, accountID string) (*models.AccountSummary, error) {
	if accountID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "accountId is required")
	}

	key := summaryCacheKey(accountID)
	if s.cache != nil {
		var cached models.AccountSummary
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	terms, err := s.terms.ListByAccount(ctx, nil, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list installment terms")
	}
	charges, err := s.accounts.ListCharges(ctx, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list account charges")
	}

	fresh := *account
	fresh.TermBalance = outstandingBalance(terms)
	fresh.ChargeBalance = chargeBalance(charges)
	fresh.Balance = money.Sum(fresh.TermBalance, fresh.ChargeBalance)
	if !fresh.Balance.Equal(account.Balance) {
		// stored balance is only written inside locked transactions, so drift
		// means a write bypassed the billing core
		s.logger.Warn("stored account balance differs from resum",
			zap.String("account_id", accountID),
			zap.String("stored", money.Format(account.Balance)),
			zap.String("resum", money.Format(fresh.Balance)),
		)
	}

	summary := summariseAccount(fresh, terms, s.clock.Now())
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, summary, s.cacheTTL)
	}
	return &summary, nil
}
