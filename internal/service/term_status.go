package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

// statusAfterPayment derives the status of a term once money has been applied.
// Overdue terms stay overdue until fully settled.
func statusAfterPayment(term models.InstallmentTerm) models.TermStatus {
	switch {
	case term.IsSettled():
		return models.TermStatusPaid
	case term.Status == models.TermStatusOverdue:
		return models.TermStatusOverdue
	case term.PaidAmount.IsPositive():
		return models.TermStatusPartial
	default:
		return term.Status
	}
}

// isSweepCandidate reports whether the sweep should flag term as overdue.
// A term becomes overdue on the calendar day after its due date.
func isSweepCandidate(term models.InstallmentTerm, now time.Time) bool {
	if term.Status != models.TermStatusPending && term.Status != models.TermStatusPartial {
		return false
	}
	return calendarDate(term.DueDate).Before(calendarDate(now))
}

// outstandingBalance resums the open balance of terms from scratch.
func outstandingBalance(terms []models.InstallmentTerm) decimal.Decimal {
	total := decimal.Zero
	for _, term := range terms {
		total = total.Add(term.Balance())
	}
	return total
}

// chargeBalance resums the open balance of un-termed charges.
func chargeBalance(charges []models.AccountCharge) decimal.Decimal {
	total := decimal.Zero
	for _, charge := range charges {
		total = total.Add(money.NonNegative(charge.Amount.Sub(charge.PaidAmount)))
	}
	return total
}

// summariseAccount builds the read-side summary of an account from its terms.
func summariseAccount(account models.StudentAccount, terms []models.InstallmentTerm, now time.Time) models.AccountSummary {
	summary := models.AccountSummary{
		AccountID:       account.ID,
		TermBalance:     account.TermBalance,
		ChargeBalance:   account.ChargeBalance,
		Balance:         account.Balance,
		TotalAssessed:   decimal.Zero,
		TotalPaid:       decimal.Zero,
		OverdueBalance:  decimal.Zero,
		NextDueBalance:  decimal.Zero,
		StatusBreakdown: make(map[models.TermStatus]int),
		GeneratedAt:     now.UTC(),
	}

	for _, term := range terms {
		summary.TotalAssessed = summary.TotalAssessed.Add(term.Amount)
		summary.TotalPaid = summary.TotalPaid.Add(term.PaidAmount)
		summary.StatusBreakdown[term.Status]++
		if term.Status == models.TermStatusOverdue {
			summary.OverdueTerms++
			summary.OverdueBalance = summary.OverdueBalance.Add(term.Balance())
		}
	}

	if next := allocationOrder(terms); len(next) > 0 {
		id := next[0].ID
		due := next[0].DueDate
		summary.NextDueTermID = &id
		summary.NextDueDate = &due
		summary.NextDueBalance = next[0].Balance()
	}
	return summary
}
