// Package scoring turns a bill's line items into a deterministic fraud
// assessment. No I/O, no randomness, no wall clock: the same items always
// produce the same score, summary and details, so results are cache-stable
// across retries and process restarts.
package scoring

import (
	"fmt"
	"strings"

	"billing-api/internal/models"
)

// Flag codes raised by the scoring rules
const (
	FlagHighAmount        = "HIGH_AMOUNT"
	FlagMediumAmount      = "MEDIUM_AMOUNT"
	FlagNonCompliantItems = "NON_COMPLIANT_ITEMS"
)

const (
	highAmountThreshold   = 50000
	mediumAmountThreshold = 20000

	highAmountPoints   = 30
	mediumAmountPoints = 15
	nonCompliantPoints = 10

	maxScore = 100
)

// Result is the outcome of scoring one bill
type Result struct {
	FraudScore int
	Summary    string
	Details    models.AnalysisDetails
}

// Score computes the fraud assessment for an ordered list of line items.
// An empty list is legal (zero totals, zero score, no flags). A negative
// amount is the only malformed input.
func Score(items []models.LineItem) (*Result, error) {
	var subtotal int64
	for i, item := range items {
		if item.Amount < 0 {
			return nil, fmt.Errorf("line item %d has negative amount %d", i, item.Amount)
		}
		subtotal += item.Amount
	}

	tax := subtotal / 10
	total := subtotal + tax

	score := 0
	flags := []models.ComplianceFlag{}

	// Amount thresholds, mutually exclusive, highest first
	if total > highAmountThreshold {
		score += highAmountPoints
		flags = append(flags, models.ComplianceFlag{
			Code:    FlagHighAmount,
			Message: "Total exceeds 50,000",
		})
	} else if total > mediumAmountThreshold {
		score += mediumAmountPoints
		flags = append(flags, models.ComplianceFlag{
			Code:    FlagMediumAmount,
			Message: "Total exceeds 20,000",
		})
	}

	nonCompliant := 0
	for _, item := range items {
		if !item.Compliant {
			score += nonCompliantPoints
			nonCompliant++
		}
	}
	if nonCompliant > 0 {
		flags = append(flags, models.ComplianceFlag{
			Code:    FlagNonCompliantItems,
			Message: fmt.Sprintf("%d non-compliant line items", nonCompliant),
		})
	}

	if score > maxScore {
		score = maxScore
	}

	// Copy into a non-nil slice so the details encoding is identical for
	// nil and empty inputs
	lineItems := make([]models.LineItem, len(items))
	copy(lineItems, items)

	result := &Result{
		FraudScore: score,
		Summary:    summarize(score, len(items), total, flags),
		Details: models.AnalysisDetails{
			LineItems:       lineItems,
			ComplianceFlags: flags,
			Totals: models.Totals{
				Subtotal: subtotal,
				Tax:      tax,
				Total:    total,
			},
		},
	}

	return result, nil
}

func summarize(score, itemCount int, total int64, flags []models.ComplianceFlag) string {
	if len(flags) == 0 {
		return fmt.Sprintf("Fraud score %d/100 for %d line items totaling %d; no flags raised", score, itemCount, total)
	}

	codes := make([]string, len(flags))
	for i, flag := range flags {
		codes[i] = flag.Code
	}

	return fmt.Sprintf("Fraud score %d/100 for %d line items totaling %d; flags: %s", score, itemCount, total, strings.Join(codes, ", "))
}
