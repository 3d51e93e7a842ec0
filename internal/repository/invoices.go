package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/match"
)

// InvoiceRepository implements the ledger query and write capabilities over
// database/sql. The SQL stays portable across pgx (Postgres) and modernc
// (SQLite): lower(...) LIKE comparisons and $N placeholders work on both.
type InvoiceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *sql.DB, logger *slog.Logger) *InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceRepository{db: db, logger: logger}
}

var headerColumns = map[match.Field]string{
	match.FieldNumber: "i.invoice_number",
	match.FieldName:   "i.name",
	match.FieldRef:    "i.ref",
}

var separatorRuns = regexp.MustCompile(`[\s/_-]+`)

// Search runs one structured ledger query. The result cap is always applied.
func (r *InvoiceRepository) Search(ctx context.Context, f match.Filter) ([]entity.MatchCandidate, error) {
	if f.Value == "" || len(f.Fields) == 0 {
		return nil, nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CompanyID != 0 {
		conds = append(conds, "i.company_id = "+arg(f.CompanyID))
	}
	if f.PostedOnly {
		conds = append(conds, "i.state = "+arg("posted"))
	}
	if len(f.MoveTypes) > 0 {
		ph := make([]string, 0, len(f.MoveTypes))
		for _, mt := range f.MoveTypes {
			ph = append(ph, arg(mt))
		}
		conds = append(conds, "i.move_type IN ("+strings.Join(ph, ", ")+")")
	}
	if f.UnassignedOnly {
		conds = append(conds, "(i.document_password IS NULL OR i.document_password = '')")
	}

	pattern := searchPattern(f.Op, f.Value)
	var fieldConds []string
	for _, field := range f.Fields {
		if field == match.FieldLineText {
			fieldConds = append(fieldConds,
				"EXISTS (SELECT 1 FROM invoice_lines l WHERE l.invoice_id = i.id AND lower(l.name) LIKE "+arg(pattern)+")")
			continue
		}
		col, ok := headerColumns[field]
		if !ok {
			return nil, fmt.Errorf("unknown search field %q", field)
		}
		if f.Op == match.OpEquals {
			fieldConds = append(fieldConds, "lower("+col+") = "+arg(strings.ToLower(f.Value)))
			continue
		}
		fieldConds = append(fieldConds, "lower("+col+") LIKE "+arg(pattern))
	}
	conds = append(conds, "("+strings.Join(fieldConds, " OR ")+")")

	query := `SELECT i.id, i.invoice_number, COALESCE(i.invoice_series, ''), COALESCE(i.ref, ''),
		COALESCE(i.name, ''), COALESCE(i.amount_total, 0), COALESCE(i.currency, '')
		FROM invoices i
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY i.id
		LIMIT ` + arg(limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger search: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			r.logger.Warn("ledger.search.rows_close_error", "error", cerr)
		}
	}()

	var out []entity.MatchCandidate
	for rows.Next() {
		var (
			c      entity.MatchCandidate
			amount float64
		)
		if err := rows.Scan(&c.ID, &c.Number, &c.Series, &c.Ref, &c.DisplayName, &amount, &c.Currency); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.AmountTotal = decimal.NewFromFloat(amount)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger search rows: %w", err)
	}
	return out, nil
}

// AssignPassword persists the password on one invoice. Called only for rows
// the human has approved to apply.
func (r *InvoiceRepository) AssignPassword(ctx context.Context, invoiceID int64, password string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE invoices SET document_password = $1 WHERE id = $2", password, invoiceID)
	if err != nil {
		return fmt.Errorf("assign password to invoice %d: %w", invoiceID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("invoice %d not found", invoiceID)
	}
	r.logger.Info("ledger.assign.ok", "invoice_id", invoiceID)
	return nil
}

// searchPattern builds the LIKE pattern for the operator: contains wraps the
// lowered value in %, wildcard additionally replaces separator runs with %.
func searchPattern(op match.Op, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if op == match.OpWildcard {
		v = separatorRuns.ReplaceAllString(v, "%")
	}
	return "%" + v + "%"
}
