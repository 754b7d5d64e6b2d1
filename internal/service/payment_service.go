package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

type paymentTermRepository interface {
	ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.InstallmentTerm, error)
	UpdatePayment(ctx context.Context, exec sqlx.ExtContext, term *models.InstallmentTerm) error
}

type allocationRepository interface {
	ExistsForPayment(ctx context.Context, exec sqlx.ExtContext, paymentID string) (bool, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, allocations []models.PaymentAllocation) error
}

// PaymentService applies recorded payments to installment terms.
type PaymentService struct {
	terms       paymentTermRepository
	allocations allocationRepository
	accounts    accountLocker
	locker      accountTx
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService wires allocation dependencies.
func NewPaymentService(
	terms paymentTermRepository,
	allocations allocationRepository,
	accounts accountLocker,
	tx txProvider,
	cache cacheInvalidator,
	metrics *MetricsService,
	cfg TermServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		terms:       terms,
		allocations: allocations,
		accounts:    accounts,
		locker:      accountTx{tx: tx, accounts: accounts, lockTimeout: cfg.LockTimeout},
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// AllocatePayment distributes a payment across the account's terms. With a
// term id the payment goes to that term only; otherwise terms are settled in
// due-date order. Money the terms cannot absorb is reported as remainder.
func (s *PaymentService) AllocatePayment(ctx context.Context, req dto.AllocatePaymentRequest) (*dto.AllocationResult, error) {
	req.TermID = strings.TrimSpace(req.TermID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !money.IsPositiveAmount(req.Amount) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive with at most two decimals")
	}

	mode := dto.AllocationModeSequential
	if req.TermID != "" {
		mode = dto.AllocationModeTargeted
	}

	result := &dto.AllocationResult{
		AccountID: req.AccountID,
		PaymentID: req.PaymentID,
		Mode:      mode,
	}

	err := s.locker.run(ctx, req.AccountID, func(exec sqlx.ExtContext, account *models.StudentAccount) error {
		if req.PaymentID != "" {
			exists, err := s.allocations.ExistsForPayment(ctx, exec, req.PaymentID)
			if err != nil {
				return err
			}
			if exists {
				return appErrors.Clone(appErrors.ErrPaymentAllocated, "payment "+req.PaymentID+" was already allocated")
			}
		}

		var outcome allocationOutcome
		if mode == dto.AllocationModeTargeted {
			term, err := s.terms.FindByID(ctx, exec, req.TermID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "installment term not found")
				}
				return err
			}
			if term.AccountID != account.ID {
				return appErrors.Clone(appErrors.ErrTermOwnershipMismatch, "installment term does not belong to account")
			}
			outcome = allocateTargeted(req.Amount, *term)
		} else {
			terms, err := s.terms.ListByAccount(ctx, exec, account.ID)
			if err != nil {
				return err
			}
			outcome = allocateSequential(req.Amount, terms)
		}

		for i := range outcome.Touched {
			if err := s.terms.UpdatePayment(ctx, exec, &outcome.Touched[i]); err != nil {
				return err
			}
		}

		rows := allocationRows(account.ID, req.PaymentID, outcome.Applications)
		if err := s.allocations.CreateBatch(ctx, exec, rows); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.WrapAs(err, appErrors.ErrPaymentAllocated, "payment "+req.PaymentID+" was already allocated")
			}
			return err
		}

		updated, err := s.accounts.RecomputeBalance(ctx, exec, account.ID)
		if err != nil {
			return err
		}

		result.AppliedAmount = outcome.Applied
		result.RemainderAmount = outcome.Remainder
		result.Allocations = rows
		result.AccountBalance = updated.Balance
		result.UpdatedTerms = make([]models.InstallmentTermView, 0, len(outcome.Touched))
		for _, term := range outcome.Touched {
			result.UpdatedTerms = append(result.UpdatedTerms, models.NewInstallmentTermView(term))
		}
		return nil
	})
	if err != nil {
		if appErrors.IsRetryable(err) {
			s.metrics.RecordConcurrentModification("allocate_payment")
		}
		return nil, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Delete(ctx, summaryCacheKey(req.AccountID)); cacheErr != nil {
			s.logger.Warn("failed to invalidate account summary", zap.String("account_id", req.AccountID), zap.Error(cacheErr))
		}
	}
	s.metrics.RecordAllocation(string(mode), result.AppliedAmount.InexactFloat64())

	fields := []zap.Field{
		zap.String("account_id", req.AccountID),
		zap.String("mode", string(mode)),
		zap.String("amount", money.Format(req.Amount)),
		zap.String("applied", money.Format(result.AppliedAmount)),
		zap.String("remainder", money.Format(result.RemainderAmount)),
		zap.Int("terms_touched", len(result.UpdatedTerms)),
	}
	if req.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", req.PaymentID))
	}
	if result.RemainderAmount.IsPositive() {
		s.logger.Warn("payment exceeded outstanding term balance", fields...)
	} else {
		s.logger.Info("payment allocated", fields...)
	}
	return result, nil
}

func allocationRows(accountID, paymentID string, applications []termApplication) []models.PaymentAllocation {
	var ref *string
	if paymentID != "" {
		ref = &paymentID
	}
	rows := make([]models.PaymentAllocation, 0, len(applications))
	for _, application := range applications {
		rows = append(rows, models.PaymentAllocation{
			PaymentID:     ref,
			AccountID:     accountID,
			TermID:        application.TermID,
			Amount:        application.Amount,
			BalanceBefore: application.BalanceBefore,
			BalanceAfter:  application.BalanceAfter,
		})
	}
	return rows
}
