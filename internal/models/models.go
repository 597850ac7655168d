package models

import (
	"time"

	"billing-api/cmd/defines"
)

// Bill represents a submitted bill awaiting or having undergone fraud analysis
type Bill struct {
	ID        int64              `json:"id"`
	UserID    string             `json:"user_id"`
	Status    defines.BillStatus `json:"status"`
	FileURL   string             `json:"file_url"`
	Attempts  int                `json:"attempts"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// LineItem is a single billed position on a bill. Amounts are integer
// minor units and never negative.
type LineItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Compliant   bool   `json:"compliant"`
}

// Analysis is the persisted scoring result for exactly one bill.
// Immutable once written; a reprocessed bill gets a fresh row.
type Analysis struct {
	ID         int64           `json:"id"`
	BillID     int64           `json:"bill_id"`
	FraudScore int             `json:"fraud_score"`
	Summary    string          `json:"summary"`
	Details    AnalysisDetails `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ComplianceFlag is a structured code+message annotation raised by a scoring rule
type ComplianceFlag struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Totals holds the computed monetary aggregates for a bill
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// AnalysisDetails is the structured scoring breakdown. Struct fields (not
// maps) so the JSON encoding is byte-stable for identical line items.
type AnalysisDetails struct {
	LineItems       []LineItem       `json:"line_items"`
	ComplianceFlags []ComplianceFlag `json:"compliance_flags"`
	Totals          Totals           `json:"totals"`
}

// BillWithAnalysis is the status-query read model: the bill plus its
// analysis when one exists.
type BillWithAnalysis struct {
	Bill
	Analysis *Analysis `json:"analysis,omitempty"`
}
