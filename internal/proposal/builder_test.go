package proposal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/match"
)

// fakeMatcher replays canned results per invoice number.
type fakeMatcher struct {
	results map[string]entity.MatchResult
	calls   []string
}

func (f *fakeMatcher) Match(_ context.Context, _ match.Scope, ref entity.ExtractedInvoiceRef) (entity.MatchResult, error) {
	f.calls = append(f.calls, ref.Number)
	if res, ok := f.results[ref.Number]; ok {
		return res, nil
	}
	return entity.MatchResult{Status: constants.MatchStatusNotFound}, nil
}

// fakeWriter records password assignments.
type fakeWriter struct {
	assigned map[int64]string
	err      error
}

func (f *fakeWriter) AssignPassword(_ context.Context, id int64, password string) error {
	if f.err != nil {
		return f.err
	}
	if f.assigned == nil {
		f.assigned = map[int64]string{}
	}
	f.assigned[id] = password
	return nil
}

func matched(ids ...int64) entity.MatchResult {
	res := entity.MatchResult{Status: constants.MatchStatusMatched, Confidence: 100}
	for _, id := range ids {
		res.Candidates = append(res.Candidates, entity.MatchCandidate{ID: id})
	}
	return res
}

func batchWith(passwords ...entity.ExtractedPassword) *entity.ExtractionBatch {
	return &entity.ExtractionBatch{
		BatchID: uuid.New(),
		Documents: []entity.DocumentExtraction{
			{Document: "pagos.xlsx", Passwords: passwords},
		},
	}
}

func TestBuildPreApprovesConfidentRows(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]entity.MatchResult{
		"519783176": matched(1),
		"519783177": {Status: constants.MatchStatusPartial, Confidence: 80,
			Candidates: []entity.MatchCandidate{{ID: 2}}},
	}}
	b := NewBuilder(nil, matcher, match.Scope{CompanyID: 1})

	prop, err := b.Build(context.Background(), batchWith(entity.ExtractedPassword{
		Number:   "CAR-1001",
		Strategy: constants.StrategyTabular,
		Invoices: []entity.ExtractedInvoiceRef{
			{Number: "519783176"},
			{Number: "519783177"},
		},
	}))
	require.NoError(t, err)

	require.Len(t, prop.Rows, 2)
	assert.True(t, prop.Rows[0].Apply)
	assert.True(t, prop.Rows[1].Apply)
	assert.Equal(t, 2, prop.Stats.ToApply)
	assert.Equal(t, 2, prop.Stats.Matched)
	assert.Equal(t, 1, prop.Stats.Passwords)
}

func TestBuildNeverApprovesAmbiguousOrMissedRows(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]entity.MatchResult{
		"0098": {Status: constants.MatchStatusMultiple, Confidence: 70,
			Candidates: []entity.MatchCandidate{{ID: 1}, {ID: 2}}},
	}}
	b := NewBuilder(nil, matcher, match.Scope{})

	prop, err := b.Build(context.Background(), batchWith(entity.ExtractedPassword{
		Number:   "DIS-5994",
		Strategy: constants.StrategyPDFTable,
		Invoices: []entity.ExtractedInvoiceRef{
			{Number: "0098"},
			{Number: "999999"},
		},
	}))
	require.NoError(t, err)

	require.Len(t, prop.Rows, 2)
	ambiguous := prop.Rows[0]
	assert.False(t, ambiguous.Apply)
	assert.Equal(t, constants.MatchStatusMultiple, ambiguous.MatchStatus)
	assert.Contains(t, ambiguous.Notes, "multiple matches found (2)")
	// Ambiguous rows still surface their candidates for the reviewer.
	assert.Equal(t, []int64{1, 2}, ambiguous.CandidateIDs)

	missed := prop.Rows[1]
	assert.False(t, missed.Apply)
	assert.Contains(t, missed.Notes, "no matching invoice found")
	assert.Equal(t, 1, prop.Stats.Unmatched)
	assert.Equal(t, 0, prop.Stats.ToApply)
}

func TestBuildUnassignedPasswordRowsAreNeverApproved(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]entity.MatchResult{
		"111": matched(9),
	}}
	b := NewBuilder(nil, matcher, match.Scope{})

	prop, err := b.Build(context.Background(), batchWith(entity.ExtractedPassword{
		Number:   "", // unassigned bucket from the tabular extractor
		Strategy: constants.StrategyTabular,
		Invoices: []entity.ExtractedInvoiceRef{{Number: "111"}},
	}))
	require.NoError(t, err)

	require.Len(t, prop.Rows, 1)
	row := prop.Rows[0]
	assert.False(t, row.Apply)
	assert.Contains(t, row.Notes, "no password resolved")
	// The match still ran so the reviewer can assign a password by hand.
	assert.Equal(t, []int64{9}, row.CandidateIDs)
}

func TestBuildAnnotatesVisionConfidence(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]entity.MatchResult{
		"2483374605": matched(5),
	}}
	b := NewBuilder(nil, matcher, match.Scope{})

	prop, err := b.Build(context.Background(), batchWith(entity.ExtractedPassword{
		Number:      "POP-4417",
		Strategy:    constants.StrategyVision,
		Confidence:  87,
		PageNumbers: []int{2},
		Invoices:    []entity.ExtractedInvoiceRef{{Number: "2483374605"}},
	}))
	require.NoError(t, err)

	require.Len(t, prop.Rows, 1)
	assert.Contains(t, prop.Rows[0].Notes, "AI confidence: 87%")
	assert.Equal(t, 2, prop.Rows[0].SourcePage)
	assert.Equal(t, constants.StrategyVision, prop.Rows[0].SourceStrategy)
}

func TestBuildSkipsEmptyReferences(t *testing.T) {
	matcher := &fakeMatcher{}
	b := NewBuilder(nil, matcher, match.Scope{})

	prop, err := b.Build(context.Background(), batchWith(entity.ExtractedPassword{
		Number:   "CAR-1",
		Strategy: constants.StrategyTabular,
		Invoices: []entity.ExtractedInvoiceRef{{Number: "  "}, {Number: "222"}},
	}))
	require.NoError(t, err)

	require.Len(t, prop.Rows, 1)
	assert.Equal(t, []string{"222"}, matcher.calls)
}

func TestBuildCarriesBatchErrors(t *testing.T) {
	b := NewBuilder(nil, &fakeMatcher{}, match.Scope{})

	batch := batchWith()
	batch.Errors = []entity.DocumentError{{Document: "roto.pdf", Message: "boom"}}
	prop, err := b.Build(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, prop.Errors, 1)
	assert.Equal(t, "roto.pdf", prop.Errors[0].Document)
}

func TestApplyWritesOnlyApprovedRows(t *testing.T) {
	writer := &fakeWriter{}
	rows := []entity.ProposalRow{
		{Password: "CAR-1", Apply: true, CandidateIDs: []int64{1, 2}},
		{Password: "CAR-2", Apply: false, CandidateIDs: []int64{3}},
		{Password: "CAR-3", Apply: true, CandidateIDs: nil}, // reviewer cleared it
	}

	applied, invoices, err := Apply(context.Background(), nil, writer, rows)
	require.NoError(t, err)

	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, invoices)
	assert.Equal(t, map[int64]string{1: "CAR-1", 2: "CAR-1"}, writer.assigned)
}

func TestApplyStopsOnWriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("locked")}
	rows := []entity.ProposalRow{
		{Password: "CAR-1", Apply: true, CandidateIDs: []int64{1}},
	}

	applied, invoices, err := Apply(context.Background(), nil, writer, rows)
	require.Error(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, invoices)
}
