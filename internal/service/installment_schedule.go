package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

// installmentSlot is one row of the fixed five-installment schedule.
type installmentSlot struct {
	Name       string
	Percentage decimal.Decimal
	WeekOffset int
}

var installmentSchedule = []installmentSlot{
	{Name: "Upon Registration", Percentage: decimal.RequireFromString("42.15"), WeekOffset: 0},
	{Name: "Prelim", Percentage: decimal.RequireFromString("17.86"), WeekOffset: 6},
	{Name: "Midterm", Percentage: decimal.RequireFromString("17.86"), WeekOffset: 12},
	{Name: "Semi-Final", Percentage: decimal.RequireFromString("14.88"), WeekOffset: 15},
	{Name: "Final", Percentage: decimal.RequireFromString("7.26"), WeekOffset: 18},
}

var scheduleAnchorLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// splitAssessment divides total across the schedule slots. The last slot
// absorbs every rounding remainder so the parts always sum to total.
func splitAssessment(total decimal.Decimal, policy models.SplitPolicy) ([]decimal.Decimal, error) {
	if !money.IsPositiveAmount(total) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAssessmentAmount, fmt.Sprintf("invalid assessment amount %s", total.String()))
	}

	count := len(installmentSchedule)
	parts := make([]decimal.Decimal, count)
	allocated := decimal.Zero
	for i := 0; i < count-1; i++ {
		switch policy {
		case models.SplitPolicyPercentage:
			parts[i] = money.Percent(total, installmentSchedule[i].Percentage)
		case models.SplitPolicyUniform:
			parts[i] = money.Round(total.Div(decimal.NewFromInt(int64(count))))
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported split policy %q", policy))
		}
		allocated = allocated.Add(parts[i])
	}
	parts[count-1] = total.Sub(allocated)
	if parts[count-1].IsNegative() {
		// only reachable for sub-cent totals under the uniform policy
		return nil, appErrors.Clone(appErrors.ErrInvalidAssessmentAmount, "assessment amount too small to split")
	}
	return parts, nil
}

// buildInstallmentTerms creates the term batch for one assessment.
func buildInstallmentTerms(assessment models.Assessment) ([]models.InstallmentTerm, error) {
	parts, err := splitAssessment(assessment.TotalAmount, assessment.Policy)
	if err != nil {
		return nil, err
	}

	start := calendarDate(assessment.ScheduleStart)
	terms := make([]models.InstallmentTerm, 0, len(parts))
	for i, slot := range installmentSchedule {
		term := models.InstallmentTerm{
			ID:           uuid.NewString(),
			AssessmentID: assessment.ID,
			Name:         slot.Name,
			Sequence:     i + 1,
			DueDate:      start.AddDate(0, 0, 7*slot.WeekOffset),
			Amount:       parts[i],
			PaidAmount:   decimal.Zero,
			Status:       models.TermStatusPending,
		}
		if term.Amount.IsZero() {
			// sub-cent uniform splits can leave empty slots
			term.Status = models.TermStatusPaid
		}
		term.BindAccount(assessment.AccountID)
		terms = append(terms, term)
	}
	return terms, nil
}

// parseScheduleAnchor resolves the schedule start date. With lenient set, a
// missing or unparseable value falls back to now and reports fallback=true.
func parseScheduleAnchor(raw string, lenient bool, now time.Time) (anchor time.Time, fallback bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range scheduleAnchorLayouts {
			if parsed, parseErr := time.Parse(layout, raw); parseErr == nil {
				return calendarDate(parsed), false, nil
			}
		}
	}
	if lenient {
		return calendarDate(now), true, nil
	}
	if raw == "" {
		return time.Time{}, false, appErrors.Clone(appErrors.ErrInsufficientTermData, "schedule_start is required")
	}
	return time.Time{}, false, appErrors.Clone(appErrors.ErrInsufficientTermData, fmt.Sprintf("schedule_start %q is not a valid date", raw))
}

// calendarDate keeps the calendar day of t as seen in t's own location and
// expresses it as UTC midnight, matching how DATE columns are scanned.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
