package service

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// termApplication is the portion of a payment applied to a single term.
type termApplication struct {
	TermID        string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// allocationOutcome is the pure result of distributing a payment. Touched holds
// the mutated copies of every term that received money, in allocation order.
type allocationOutcome struct {
	Applied      decimal.Decimal
	Remainder    decimal.Decimal
	Touched      []models.InstallmentTerm
	Applications []termApplication
}

// allocationOrder returns the unpaid terms in allocation priority: due date
// ascending, then sequence ascending.
func allocationOrder(terms []models.InstallmentTerm) []models.InstallmentTerm {
	ordered := make([]models.InstallmentTerm, 0, len(terms))
	for _, term := range terms {
		if term.Status == models.TermStatusPaid {
			continue
		}
		ordered = append(ordered, term)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].DueDate.Before(ordered[j].DueDate)
		}
		return ordered[i].Sequence < ordered[j].Sequence
	})
	return ordered
}

const tailPartialRemark = "Balance carries to next term"

// allocateSequential walks the unpaid terms in priority order, settling each
// one before carrying the rest of the payment forward. A term that receives
// carry is annotated with its predecessor; a term the payment leaves short
// without having carried into it is annotated as carrying forward.
func allocateSequential(amount decimal.Decimal, terms []models.InstallmentTerm) allocationOutcome {
	outcome := allocationOutcome{Applied: decimal.Zero, Remainder: amount}
	var carriedFrom *models.InstallmentTerm

	for _, term := range allocationOrder(terms) {
		if !outcome.Remainder.IsPositive() {
			break
		}
		application, ok := applyToTerm(&term, outcome.Remainder)
		if !ok {
			continue
		}
		switch {
		case carriedFrom != nil:
			term.SetRemarks(fmt.Sprintf("Balance carried from %s", carriedFrom.Name))
		case !term.IsSettled():
			term.SetRemarks(tailPartialRemark)
		}

		outcome.Remainder = outcome.Remainder.Sub(application.Amount)
		outcome.Applied = outcome.Applied.Add(application.Amount)
		outcome.Touched = append(outcome.Touched, term)
		outcome.Applications = append(outcome.Applications, application)

		settled := term
		carriedFrom = &settled
	}
	return outcome
}

// allocateTargeted applies the payment to one term only. Whatever the term
// cannot absorb is returned as remainder.
func allocateTargeted(amount decimal.Decimal, term models.InstallmentTerm) allocationOutcome {
	outcome := allocationOutcome{Applied: decimal.Zero, Remainder: amount}
	application, ok := applyToTerm(&term, amount)
	if !ok {
		return outcome
	}
	outcome.Applied = application.Amount
	outcome.Remainder = amount.Sub(application.Amount)
	outcome.Touched = []models.InstallmentTerm{term}
	outcome.Applications = []termApplication{application}
	return outcome
}

// applyToTerm applies min(amount, balance) to term and advances its status.
// It reports false when nothing could be applied.
func applyToTerm(term *models.InstallmentTerm, amount decimal.Decimal) (termApplication, bool) {
	before := term.Balance()
	applied := decimal.Min(amount, before)
	if !applied.IsPositive() {
		return termApplication{}, false
	}
	term.PaidAmount = term.PaidAmount.Add(applied)
	term.Status = statusAfterPayment(*term)
	return termApplication{
		TermID:        term.ID,
		Amount:        applied,
		BalanceBefore: before,
		BalanceAfter:  term.Balance(),
	}, true
}
