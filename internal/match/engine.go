// Package match resolves extracted invoice references against the ledger
// through four strictly ordered narrowing tiers. Absence of a match is the
// not_found status, a normal outcome, never an error.
package match

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/entity"
)

// Tie-break confidence constants. The exact values are empirical; what must
// hold is the ordering: fewer disambiguation filters means a higher score.
const (
	confExact           = 100 // tier 1, unique hit
	confSeriesNarrowed  = 95  // tier 1 multiple, series isolated one
	confLineItem        = 95  // tier 2, unique hit
	confAmountNarrowed  = 90  // tier 1 or 2 multiple, amount isolated one
	confLineSeries      = 85  // tier 2 multiple, no amount, series isolated one
	confPartial         = 80  // tier 4, unique hit
	confPartialSeries   = 75  // tier 4 multiple, series isolated one
	confAmbiguous       = 70  // tiers 1-2, narrowing failed
	confPartialMultiple = 60  // tier 4, narrowing failed
)

// amountTolerance is the absolute tolerance for amount narrowing.
var amountTolerance = decimal.NewFromInt(1)

const defaultCandidateLimit = 10

type Engine struct {
	logger *slog.Logger
	ledger Querier
	limit  int
}

func NewEngine(logger *slog.Logger, ledger Querier, candidateLimit int) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	return &Engine{logger: logger, ledger: ledger, limit: candidateLimit}
}

// Match resolves one extracted reference. Tiers short-circuit on the first
// unique hit; looser tiers are only consulted when an earlier tier is
// inconclusive.
func (e *Engine) Match(ctx context.Context, scope Scope, ref entity.ExtractedInvoiceRef) (entity.MatchResult, error) {
	clean := strings.TrimSpace(ref.Number)

	base := Filter{
		CompanyID:      scope.CompanyID,
		PostedOnly:     true,
		MoveTypes:      scope.MoveTypes,
		UnassignedOnly: true,
		Limit:          e.limit,
	}
	if len(base.MoveTypes) == 0 {
		base.MoveTypes = DefaultMoveTypes
	}

	// Tier 1: the reference equals or is contained in the header fields.
	head := base
	head.Fields = []Field{FieldNumber, FieldName, FieldRef}
	head.Op = OpContains
	head.Value = clean
	candidates, err := e.ledger.Search(ctx, head)
	if err != nil {
		return entity.MatchResult{}, err
	}

	switch {
	case len(candidates) == 1:
		return e.result(ref, candidates, constants.MatchStatusMatched, confExact), nil
	case len(candidates) > 1:
		return e.narrowHeaderTier(ref, candidates), nil
	}

	// Tier 2: the reference is embedded in a line item description.
	lines := base
	lines.Fields = []Field{FieldLineText}
	lines.Op = OpContains
	lines.Value = clean
	lineHits, err := e.ledger.Search(ctx, lines)
	if err != nil {
		return entity.MatchResult{}, err
	}

	switch {
	case len(lineHits) == 1:
		return e.result(ref, lineHits, constants.MatchStatusMatched, confLineItem), nil
	case len(lineHits) > 1:
		return e.narrowLineTier(ref, lineHits), nil
	}

	// Tier 4: broad wildcard containment over the header fields.
	wild := base
	wild.Fields = []Field{FieldNumber, FieldName, FieldRef}
	wild.Op = OpWildcard
	wild.Value = clean
	wildHits, err := e.ledger.Search(ctx, wild)
	if err != nil {
		return entity.MatchResult{}, err
	}

	switch {
	case len(wildHits) == 0:
		return e.result(ref, nil, constants.MatchStatusNotFound, 0), nil
	case len(wildHits) == 1:
		return e.result(ref, wildHits, constants.MatchStatusPartial, confPartial), nil
	}
	if narrowed := narrowBySeries(wildHits, ref.Series); len(narrowed) == 1 {
		return e.result(ref, narrowed, constants.MatchStatusPartial, confPartialSeries), nil
	}
	return e.result(ref, wildHits, constants.MatchStatusMultiple, confPartialMultiple), nil
}

// narrowHeaderTier disambiguates multiple exact-tier hits: series first, then
// amount; if neither isolates one, the full candidate set is reported.
func (e *Engine) narrowHeaderTier(ref entity.ExtractedInvoiceRef, candidates []entity.MatchCandidate) entity.MatchResult {
	if narrowed := narrowBySeries(candidates, ref.Series); len(narrowed) == 1 {
		return e.result(ref, narrowed, constants.MatchStatusMatched, confSeriesNarrowed)
	}
	if narrowed := narrowByAmount(candidates, ref.Amount); len(narrowed) == 1 {
		return e.result(ref, narrowed, constants.MatchStatusMatched, confAmountNarrowed)
	}
	return e.result(ref, candidates, constants.MatchStatusMultiple, confAmbiguous)
}

// narrowLineTier disambiguates multiple line-item hits: by amount when one
// was extracted, by series otherwise.
func (e *Engine) narrowLineTier(ref entity.ExtractedInvoiceRef, candidates []entity.MatchCandidate) entity.MatchResult {
	if !ref.Amount.IsZero() {
		if narrowed := narrowByAmount(candidates, ref.Amount); len(narrowed) == 1 {
			return e.result(ref, narrowed, constants.MatchStatusMatched, confAmountNarrowed)
		}
	} else if narrowed := narrowBySeries(candidates, ref.Series); len(narrowed) == 1 {
		return e.result(ref, narrowed, constants.MatchStatusMatched, confLineSeries)
	}
	return e.result(ref, candidates, constants.MatchStatusMultiple, confAmbiguous)
}

func (e *Engine) result(ref entity.ExtractedInvoiceRef, candidates []entity.MatchCandidate, status constants.MatchStatus, confidence float64) entity.MatchResult {
	e.logger.Debug("match.result",
		"reference", ref.Number,
		"status", status,
		"confidence", confidence,
		"candidates", len(candidates),
	)
	return entity.MatchResult{Candidates: candidates, Status: status, Confidence: confidence}
}

func narrowBySeries(candidates []entity.MatchCandidate, series string) []entity.MatchCandidate {
	series = strings.ToLower(strings.TrimSpace(series))
	if series == "" {
		return nil
	}
	var out []entity.MatchCandidate
	for _, c := range candidates {
		if c.Series != "" && strings.Contains(strings.ToLower(c.Series), series) {
			out = append(out, c)
		}
	}
	return out
}

func narrowByAmount(candidates []entity.MatchCandidate, amount decimal.Decimal) []entity.MatchCandidate {
	if amount.IsZero() {
		return nil
	}
	var out []entity.MatchCandidate
	for _, c := range candidates {
		if c.AmountTotal.Sub(amount).Abs().LessThanOrEqual(amountTolerance) {
			out = append(out, c)
		}
	}
	return out
}
