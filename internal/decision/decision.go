// Package decision applies the prequalification rules to a scored
// application. Pure: same inputs, same outcome.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

const minimumScore = 650

// loanTermMonths is the amortization divisor: a 4-year term.
var loanTermMonths = decimal.NewFromInt(48)

var twelve = decimal.NewFromInt(12)

// MonthlyIncome derives monthly income from the stored annual figure.
func MonthlyIncome(annual decimal.Decimal) decimal.Decimal {
	return annual.Div(twelve)
}

// Evaluate decides the terminal status for (monthly income, requested
// amount, score).
//
// Rules:
//   - score < 650                                     -> REJECTED
//   - score >= 650 and monthly > requested/48          -> PRE_APPROVED (strict >)
//   - score >= 650 and monthly <= requested/48         -> MANUAL_REVIEW
//
// MaxApprovedAmount is monthly * 48, nil when rejected.
func Evaluate(monthlyIncome, requestedAmount decimal.Decimal, score int) domain.Decision {
	if score < minimumScore {
		return domain.Decision{
			Status:      domain.StatusRejected,
			CreditScore: score,
			Reason: fmt.Sprintf("CIBIL score %d is below minimum threshold of %d",
				score, minimumScore),
		}
	}

	required := requestedAmount.Div(loanTermMonths)
	maxApproved := monthlyIncome.Mul(loanTermMonths)

	if monthlyIncome.GreaterThan(required) {
		return domain.Decision{
			Status:      domain.StatusPreApproved,
			CreditScore: score,
			Reason: fmt.Sprintf("CIBIL score %d meets threshold and monthly income %s exceeds required %s for %s loan",
				score, monthlyIncome.StringFixed(2), required.StringFixed(2), requestedAmount.StringFixed(2)),
			MaxApprovedAmount: &maxApproved,
		}
	}

	return domain.Decision{
		Status:      domain.StatusManualReview,
		CreditScore: score,
		Reason: fmt.Sprintf("CIBIL score %d meets threshold but monthly income %s does not exceed required %s for %s loan; requires manual review",
			score, monthlyIncome.StringFixed(2), required.StringFixed(2), requestedAmount.StringFixed(2)),
		MaxApprovedAmount: &maxApproved,
	}
}
