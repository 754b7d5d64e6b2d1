package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

const reappliedRemark = "Payments reapplied after restructuring"

type termRepository interface {
	ListByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.InstallmentTerm, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, terms []models.InstallmentTerm) error
	DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) (int64, error)
}

type assessmentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assessment *models.Assessment) error
	DeleteByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) error
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentAccount, error)
}

type accountStore interface {
	accountLocker
	accountReader
}

type cacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// TermServiceConfig governs generation behaviour.
type TermServiceConfig struct {
	DefaultPolicy         models.SplitPolicy
	LenientScheduleAnchor bool
	LockTimeout           time.Duration
}

// TermService generates, restructures and lists installment terms.
type TermService struct {
	terms       termRepository
	assessments assessmentRepository
	accounts    accountStore
	locker      accountTx
	cache       cacheInvalidator
	metrics     *MetricsService
	clock       Clock
	cfg         TermServiceConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTermService wires term generation dependencies.
func NewTermService(
	terms termRepository,
	assessments assessmentRepository,
	accounts accountStore,
	tx txProvider,
	cache cacheInvalidator,
	metrics *MetricsService,
	clock Clock,
	cfg TermServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if !cfg.DefaultPolicy.Valid() {
		cfg.DefaultPolicy = models.SplitPolicyPercentage
	}
	return &TermService{
		terms:       terms,
		assessments: assessments,
		accounts:    accounts,
		locker:      accountTx{tx: tx, accounts: accounts, lockTimeout: cfg.LockTimeout},
		cache:       cache,
		metrics:     metrics,
		clock:       clock,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// GenerateTerms splits an assessment into installment terms for the account.
// When the account already has terms they are replaced and the money already
// paid against them is reapplied to the new batch.
func (s *TermService) GenerateTerms(ctx context.Context, req dto.GenerateTermsRequest) (*dto.GenerateTermsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term generation payload")
	}
	if !money.IsPositiveAmount(req.TotalAmount) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAssessmentAmount, "total_amount must be positive with at most two decimals")
	}

	policy := req.Policy
	if policy == "" {
		policy = s.cfg.DefaultPolicy
	}

	now := s.clock.Now()
	anchor, fallback, err := parseScheduleAnchor(req.ScheduleStart, s.cfg.LenientScheduleAnchor, now)
	if err != nil {
		return nil, err
	}
	if fallback {
		s.logger.Warn("schedule start missing or invalid, anchoring terms to today",
			zap.String("account_id", req.AccountID),
			zap.String("schedule_start", req.ScheduleStart),
			zap.Time("anchor", anchor),
		)
	}

	assessment := models.Assessment{
		ID:            uuid.NewString(),
		AccountID:     req.AccountID,
		TotalAmount:   req.TotalAmount,
		Policy:        policy,
		ScheduleStart: anchor,
		CreatedAt:     now.UTC(),
	}
	terms, err := buildInstallmentTerms(assessment)
	if err != nil {
		return nil, err
	}

	result := &dto.GenerateTermsResult{
		Assessment:      assessment,
		AnchorFallback:  fallback,
		ReappliedAmount: decimal.Zero,
		CarriedCredit:   decimal.Zero,
	}

	err = s.locker.run(ctx, req.AccountID, func(exec sqlx.ExtContext, _ *models.StudentAccount) error {
		existing, err := s.terms.ListByAccount(ctx, exec, req.AccountID)
		if err != nil {
			return err
		}

		if len(existing) > 0 {
			result.Restructured = true
			paid := decimal.Zero
			for _, term := range existing {
				paid = paid.Add(term.PaidAmount)
			}
			if _, err := s.terms.DeleteByAccount(ctx, exec, req.AccountID); err != nil {
				return err
			}
			if err := s.assessments.DeleteByAccount(ctx, exec, req.AccountID); err != nil {
				return err
			}
			if paid.IsPositive() {
				reapplied, credit := reapplyPaid(terms, paid)
				result.ReappliedAmount = reapplied
				result.CarriedCredit = credit
			}
		}

		if err := s.assessments.Create(ctx, exec, &assessment); err != nil {
			return err
		}
		if err := s.terms.CreateBatch(ctx, exec, terms); err != nil {
			return err
		}
		account, err := s.accounts.RecomputeBalance(ctx, exec, req.AccountID)
		if err != nil {
			return err
		}
		result.AccountBalance = account.Balance
		return nil
	})
	if err != nil {
		if appErrors.IsRetryable(err) {
			s.metrics.RecordConcurrentModification("generate_terms")
		}
		return nil, err
	}

	s.invalidateSummary(ctx, req.AccountID)
	s.metrics.RecordTermGeneration(string(policy), result.Restructured)

	result.Assessment = assessment
	result.Terms = make([]models.InstallmentTermView, 0, len(terms))
	for _, term := range terms {
		result.Terms = append(result.Terms, models.NewInstallmentTermView(term))
	}

	s.logger.Info("installment terms generated",
		zap.String("account_id", req.AccountID),
		zap.String("assessment_id", assessment.ID),
		zap.String("policy", string(policy)),
		zap.String("total", money.Format(req.TotalAmount)),
		zap.Bool("restructured", result.Restructured),
		zap.String("reapplied", money.Format(result.ReappliedAmount)),
		zap.String("carried_credit", money.Format(result.CarriedCredit)),
	)
	return result, nil
}

// reapplyPaid distributes money paid against a replaced batch onto the new
// terms in place. It returns the amount applied and the excess.
func reapplyPaid(terms []models.InstallmentTerm, paid decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	outcome := allocateSequential(paid, terms)
	byID := make(map[string]models.InstallmentTerm, len(outcome.Touched))
	for _, term := range outcome.Touched {
		term.SetRemarks(reappliedRemark)
		byID[term.ID] = term
	}
	for i := range terms {
		if updated, ok := byID[terms[i].ID]; ok {
			terms[i] = updated
		}
	}
	return outcome.Applied, outcome.Remainder
}

// ListTerms returns the account's terms in allocation order.
func (s *TermService) ListTerms(ctx context.Context, accountID string) ([]models.InstallmentTermView, error) {
	if accountID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "accountId is required")
	}
	terms, err := s.terms.ListByAccount(ctx, nil, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list installment terms")
	}
	if len(terms) == 0 {
		if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
		}
	}

	views := make([]models.InstallmentTermView, 0, len(terms))
	for _, term := range terms {
		views = append(views, models.NewInstallmentTermView(term))
	}
	return views, nil
}

func (s *TermService) invalidateSummary(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryCacheKey(accountID)); err != nil {
		s.logger.Warn("failed to invalidate account summary", zap.String("account_id", accountID), zap.Error(err))
	}
}
