package match

import (
	"context"

	"github.com/facturapass/password-assigner/internal/entity"
)

// Field names a searchable attribute of a ledger invoice.
type Field string

const (
	FieldNumber   Field = "number"    // invoice number
	FieldName     Field = "name"      // display name
	FieldRef      Field = "ref"       // free-text reference
	FieldLineText Field = "line_text" // invoice line item descriptions
)

// Op is the comparison operator applied to the searched fields.
type Op string

const (
	// OpEquals is case-insensitive equality.
	OpEquals Op = "equals"
	// OpContains is case-insensitive substring containment of the reference
	// in the field (subsumes equality).
	OpContains Op = "contains"
	// OpWildcard additionally treats separator runs in the reference as
	// wildcards, so "FP-MEG-0002" also matches "FPMEG 0002".
	OpWildcard Op = "wildcard"
)

// Filter is the structured ledger query: caller scope plus one operator over
// one or more named fields, OR-combined. Limit is always enforced to protect
// against pathological matches.
type Filter struct {
	CompanyID      int64
	PostedOnly     bool
	MoveTypes      []string
	UnassignedOnly bool

	Fields []Field
	Op     Op
	Value  string
	Limit  int
}

// Querier is the ledger query capability. Returned candidates are read-only
// snapshots taken at call time; they are never cached across calls since the
// ledger may change between runs.
type Querier interface {
	Search(ctx context.Context, f Filter) ([]entity.MatchCandidate, error)
}

// Writer is the ledger write capability, invoked only for rows a human has
// approved.
type Writer interface {
	AssignPassword(ctx context.Context, invoiceID int64, password string) error
}

// Scope restricts every ledger query issued for one batch: company, posted
// state, invoice direction, and the unassigned-password predicate.
type Scope struct {
	CompanyID int64
	MoveTypes []string
}

// DefaultMoveTypes matches customer invoices and credit notes.
var DefaultMoveTypes = []string{"out_invoice", "out_refund"}
