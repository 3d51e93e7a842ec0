package match

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/entity"
)

// fakeLedger returns canned candidate sets keyed by operator and field group.
type fakeLedger struct {
	header   []entity.MatchCandidate // OpContains over header fields
	lines    []entity.MatchCandidate // OpContains over line_text
	wildcard []entity.MatchCandidate // OpWildcard over header fields
	calls    []Filter
}

func (f *fakeLedger) Search(_ context.Context, filter Filter) ([]entity.MatchCandidate, error) {
	f.calls = append(f.calls, filter)
	if filter.Op == OpWildcard {
		return f.wildcard, nil
	}
	if len(filter.Fields) == 1 && filter.Fields[0] == FieldLineText {
		return f.lines, nil
	}
	return f.header, nil
}

func candidate(id int64, number, series string, amount float64) entity.MatchCandidate {
	return entity.MatchCandidate{
		ID:          id,
		Number:      number,
		Series:      series,
		AmountTotal: decimal.NewFromFloat(amount),
	}
}

func ref(number, series string, amount float64) entity.ExtractedInvoiceRef {
	r := entity.ExtractedInvoiceRef{Number: number, Series: series}
	if amount != 0 {
		r.Amount = decimal.NewFromFloat(amount)
	}
	return r
}

func TestMatchExactUniqueHit(t *testing.T) {
	ledger := &fakeLedger{header: []entity.MatchCandidate{
		candidate(1, "2483374605", "", 100),
	}}
	engine := NewEngine(nil, ledger, 10)

	res, err := engine.Match(context.Background(), Scope{CompanyID: 1}, ref("2483374605", "", 0))
	require.NoError(t, err)

	assert.Equal(t, constants.MatchStatusMatched, res.Status)
	assert.Equal(t, 100.0, res.Confidence)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, []int64{1}, res.CandidateIDs())
	// A unique exact hit must not trigger looser tiers.
	assert.Len(t, ledger.calls, 1)
}

func TestMatchMultipleNarrowedBySeries(t *testing.T) {
	ledger := &fakeLedger{header: []entity.MatchCandidate{
		candidate(1, "0098", "A", 100),
		candidate(2, "0098", "B", 200),
	}}
	engine := NewEngine(nil, ledger, 10)

	res, err := engine.Match(context.Background(), Scope{}, ref("0098", "B", 0))
	require.NoError(t, err)

	assert.Equal(t, constants.MatchStatusMatched, res.Status)
	assert.Equal(t, 95.0, res.Confidence)
	assert.Equal(t, []int64{2}, res.CandidateIDs())
}

func TestMatchMultipleNarrowedByAmount(t *testing.T) {
	ledger := &fakeLedger{header: []entity.MatchCandidate{
		candidate(1, "483374", "", 1500.00),
		candidate(2, "483374", "", 1606.58),
	}}
	engine := NewEngine(nil, ledger, 10)

	// 1606.00 is within the ±1.0 tolerance of exactly one candidate.
	res, err := engine.Match(context.Background(), Scope{}, ref("483374", "", 1606.00))
	require.NoError(t, err)

	assert.Equal(t, constants.MatchStatusMatched, res.Status)
	assert.Equal(t, 90.0, res.Confidence)
	assert.Equal(t, []int64{2}, res.CandidateIDs())
}

func TestMatchMultipleUnresolvedKeepsFullSet(t *testing.T) {
	ledger := &fakeLedger{header: []entity.MatchCandidate{
		candidate(1, "0098", "", 100),
		candidate(2, "0098", "", 100),
	}}
	engine := NewEngine(nil, ledger, 10)

	res, err := engine.Match(context.Background(), Scope{}, ref("0098", "", 0))
	require.NoError(t, err)

	assert.Equal(t, constants.MatchStatusMultiple, res.Status)
	assert.Equal(t, 70.0, res.Confidence)
	assert.Len(t, res.Candidates, 2)
}

func TestMatchLineItemTier(t *testing.T) {
	t.Run("unique line hit", func(t *testing.T) {
		ledger := &fakeLedger{lines: []entity.MatchCandidate{
			candidate(7, "INV-1", "", 100),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("TK00023243", "", 0))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusMatched, res.Status)
		assert.Equal(t, 95.0, res.Confidence)
		assert.Equal(t, []int64{7}, res.CandidateIDs())
	})

	t.Run("multiple line hits narrowed by amount", func(t *testing.T) {
		ledger := &fakeLedger{lines: []entity.MatchCandidate{
			candidate(7, "INV-1", "", 100),
			candidate(8, "INV-2", "", 350.40),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("TK00023243", "", 350.00))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusMatched, res.Status)
		assert.Equal(t, 90.0, res.Confidence)
		assert.Equal(t, []int64{8}, res.CandidateIDs())
	})

	t.Run("multiple line hits without amount narrowed by series", func(t *testing.T) {
		ledger := &fakeLedger{lines: []entity.MatchCandidate{
			candidate(7, "INV-1", "A", 100),
			candidate(8, "INV-2", "B", 200),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("TK00023243", "A", 0))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusMatched, res.Status)
		assert.Equal(t, 85.0, res.Confidence)
		assert.Equal(t, []int64{7}, res.CandidateIDs())
	})
}

func TestMatchWildcardTier(t *testing.T) {
	t.Run("single hit is partial", func(t *testing.T) {
		ledger := &fakeLedger{wildcard: []entity.MatchCandidate{
			candidate(3, "FEL-483374-X", "", 100),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("483374", "", 0))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusPartial, res.Status)
		assert.Equal(t, 80.0, res.Confidence)
	})

	t.Run("multiple narrowed by series", func(t *testing.T) {
		ledger := &fakeLedger{wildcard: []entity.MatchCandidate{
			candidate(3, "FEL-483374-X", "FEL", 100),
			candidate(4, "ABC-483374-Y", "ABC", 100),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("483374", "FEL", 0))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusPartial, res.Status)
		assert.Equal(t, 75.0, res.Confidence)
		assert.Equal(t, []int64{3}, res.CandidateIDs())
	})

	t.Run("multiple unresolved", func(t *testing.T) {
		ledger := &fakeLedger{wildcard: []entity.MatchCandidate{
			candidate(3, "FEL-483374-X", "", 100),
			candidate(4, "ABC-483374-Y", "", 100),
		}}
		engine := NewEngine(nil, ledger, 10)

		res, err := engine.Match(context.Background(), Scope{}, ref("483374", "", 0))
		require.NoError(t, err)

		assert.Equal(t, constants.MatchStatusMultiple, res.Status)
		assert.Equal(t, 60.0, res.Confidence)
	})
}

func TestMatchNotFound(t *testing.T) {
	ledger := &fakeLedger{}
	engine := NewEngine(nil, ledger, 10)

	res, err := engine.Match(context.Background(), Scope{}, ref("999999", "", 0))
	require.NoError(t, err)

	assert.Equal(t, constants.MatchStatusNotFound, res.Status)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Candidates)
	// All three tiers were consulted before giving up.
	assert.Len(t, ledger.calls, 3)
}

func TestMatchIsIdempotent(t *testing.T) {
	ledger := &fakeLedger{header: []entity.MatchCandidate{
		candidate(1, "0611", "A", 10),
		candidate(2, "0611", "B", 20),
	}}
	engine := NewEngine(nil, ledger, 10)

	first, err := engine.Match(context.Background(), Scope{}, ref("0611", "B", 0))
	require.NoError(t, err)
	second, err := engine.Match(context.Background(), Scope{}, ref("0611", "B", 0))
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.CandidateIDs(), second.CandidateIDs())
}

func TestMatchAppliesScopeAndCap(t *testing.T) {
	ledger := &fakeLedger{}
	engine := NewEngine(nil, ledger, 5)

	_, err := engine.Match(context.Background(), Scope{CompanyID: 42}, ref("123456", "", 0))
	require.NoError(t, err)

	require.NotEmpty(t, ledger.calls)
	for _, call := range ledger.calls {
		assert.Equal(t, int64(42), call.CompanyID)
		assert.True(t, call.PostedOnly)
		assert.True(t, call.UnassignedOnly)
		assert.Equal(t, DefaultMoveTypes, call.MoveTypes)
		assert.Equal(t, 5, call.Limit)
	}
}
