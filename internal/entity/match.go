package entity

import (
	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/constants"
)

// MatchCandidate is a read-only snapshot of one ledger invoice taken at match
// time. Snapshots are never reused across calls; the ledger may change
// between runs.
type MatchCandidate struct {
	ID          int64           `json:"id"`
	Number      string          `json:"invoice_number"`
	Series      string          `json:"invoice_series,omitempty"`
	Ref         string          `json:"ref,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	Currency    string          `json:"currency,omitempty"`
}

// MatchResult is computed fresh per extracted reference and never persisted
// by the core.
type MatchResult struct {
	Candidates []MatchCandidate      `json:"candidates"`
	Status     constants.MatchStatus `json:"status"`
	Confidence float64               `json:"confidence"`
}

// CandidateIDs returns the ledger ids of the candidate set, in ranked order.
func (r MatchResult) CandidateIDs() []int64 {
	ids := make([]int64, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
