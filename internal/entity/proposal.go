package entity

import (
	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/constants"
)

// ProposalRow is one human-reviewable (password, invoice reference)
// assignment. Apply defaults to true only when the match isolated at least
// one candidate with matched or partial status.
type ProposalRow struct {
	Password       string                   `json:"password"`
	IssuerName     string                   `json:"issuer_name,omitempty"`
	SourceDocument string                   `json:"source_document"`
	SourcePage     int                      `json:"source_page,omitempty"`
	SourceStrategy constants.SourceStrategy `json:"source_strategy"`

	InvoiceNumber string          `json:"invoice_number_extracted"`
	InvoiceSeries string          `json:"invoice_series_extracted,omitempty"`
	Amount        decimal.Decimal `json:"amount_extracted"`

	CandidateIDs []int64               `json:"invoice_ids"`
	MatchStatus  constants.MatchStatus `json:"match_status"`
	Confidence   float64               `json:"match_confidence"`
	Apply        bool                  `json:"apply"`
	Notes        string                `json:"notes,omitempty"`
}

// ProposalStats mirrors the review screen counters.
type ProposalStats struct {
	Documents int `json:"documents"`
	Passwords int `json:"passwords"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	ToApply   int `json:"to_apply"`
}

// Proposal is the full editable proposal produced for one batch.
type Proposal struct {
	Rows   []ProposalRow   `json:"rows"`
	Stats  ProposalStats   `json:"stats"`
	Errors []DocumentError `json:"errors,omitempty"`
}
