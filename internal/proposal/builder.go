// Package proposal turns extraction output and match results into the
// editable proposal a human reviews before anything is written back.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/match"
)

// Matcher is the matching engine capability the builder depends on.
type Matcher interface {
	Match(ctx context.Context, scope match.Scope, ref entity.ExtractedInvoiceRef) (entity.MatchResult, error)
}

type Builder struct {
	logger  *slog.Logger
	matcher Matcher
	scope   match.Scope
}

func NewBuilder(logger *slog.Logger, matcher Matcher, scope match.Scope) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, matcher: matcher, scope: scope}
}

// Build produces one proposal row per (password, invoice reference) pair.
// Documents are walked in batch order and references matched sequentially so
// a later document observes claims made earlier in the same batch through the
// re-evaluated unassigned-password filter.
func (b *Builder) Build(ctx context.Context, batch *entity.ExtractionBatch) (*entity.Proposal, error) {
	prop := &entity.Proposal{Errors: batch.Errors}
	prop.Stats.Documents = len(batch.Documents)

	for _, doc := range batch.Documents {
		for _, pw := range doc.Passwords {
			prop.Stats.Passwords++
			for _, ref := range pw.Invoices {
				if strings.TrimSpace(ref.Number) == "" {
					// Never feed an empty reference to the engine.
					continue
				}
				row, err := b.buildRow(ctx, doc.Document, pw, ref)
				if err != nil {
					return nil, err
				}
				prop.Rows = append(prop.Rows, row)
			}
		}
	}

	for _, row := range prop.Rows {
		if len(row.CandidateIDs) > 0 {
			prop.Stats.Matched++
		} else {
			prop.Stats.Unmatched++
		}
		if row.Apply {
			prop.Stats.ToApply++
		}
	}

	b.logger.Info("proposal.built",
		"rows", len(prop.Rows),
		"matched", prop.Stats.Matched,
		"unmatched", prop.Stats.Unmatched,
		"to_apply", prop.Stats.ToApply,
	)
	return prop, nil
}

func (b *Builder) buildRow(ctx context.Context, document string, pw entity.ExtractedPassword, ref entity.ExtractedInvoiceRef) (entity.ProposalRow, error) {
	res, err := b.matcher.Match(ctx, b.scope, ref)
	if err != nil {
		return entity.ProposalRow{}, fmt.Errorf("match %q from %s: %w", ref.Number, document, err)
	}

	var notes []string
	if pw.Strategy == constants.StrategyVision {
		notes = append(notes, fmt.Sprintf("AI confidence: %.0f%%", pw.Confidence))
	}
	switch res.Status {
	case constants.MatchStatusMultiple:
		notes = append(notes, fmt.Sprintf("multiple matches found (%d)", len(res.Candidates)))
	case constants.MatchStatusNotFound:
		notes = append(notes, "no matching invoice found")
	}

	hasPassword := strings.TrimSpace(pw.Number) != ""
	if !hasPassword {
		notes = append(notes, "no password resolved for this row")
	}

	row := entity.ProposalRow{
		Password:       pw.Number,
		IssuerName:     pw.IssuerName,
		SourceDocument: document,
		SourceStrategy: pw.Strategy,
		InvoiceNumber:  ref.Number,
		InvoiceSeries:  ref.Series,
		Amount:         ref.Amount,
		CandidateIDs:   res.CandidateIDs(),
		MatchStatus:    res.Status,
		Confidence:     res.Confidence,
		Notes:          strings.Join(notes, "\n"),
	}
	if len(pw.PageNumbers) > 0 {
		row.SourcePage = pw.PageNumbers[0]
	}
	// Only confident rows with a password and at least one candidate are
	// pre-approved; everything else waits for the reviewer.
	row.Apply = hasPassword &&
		(res.Status == constants.MatchStatusMatched || res.Status == constants.MatchStatusPartial) &&
		len(res.Candidates) > 0

	return row, nil
}

// Apply writes each approved row's password to every candidate invoice it
// carries. Rows left unapproved, and invoices outside approved rows, are
// never touched. Writes are sequential; two concurrent assignments against
// the same unassigned invoice would race.
func Apply(ctx context.Context, logger *slog.Logger, writer match.Writer, rows []entity.ProposalRow) (applied, invoices int, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, row := range rows {
		if !row.Apply || len(row.CandidateIDs) == 0 {
			continue
		}
		for _, id := range row.CandidateIDs {
			if werr := writer.AssignPassword(ctx, id, row.Password); werr != nil {
				return applied, invoices, fmt.Errorf("apply password %q to invoice %d: %w", row.Password, id, werr)
			}
			invoices++
		}
		applied++
	}
	logger.Info("proposal.applied", "rows", applied, "invoices", invoices)
	return applied, invoices, nil
}
