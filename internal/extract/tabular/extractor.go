// Package tabular extracts password/invoice rows from spreadsheet-like files
// using a per-source column configuration profile.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/extract"
	"github.com/facturapass/password-assigner/internal/utils"
)

// unassignedKey buckets rows whose password could not be resolved. The bucket
// is always emitted; dropping it silently would hide rows from review.
const unassignedKey = ""

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Name() constants.SourceStrategy {
	return constants.StrategyTabular
}

func (e *Extractor) TryExtract(ctx context.Context, doc extract.Document) ([]entity.ExtractedPassword, error) {
	profile := doc.Profile
	if profile == nil {
		return nil, common.ConfigurationErrorf("no template bound for tabular file %s", doc.Filename)
	}
	if profile.ColumnInvoiceNumber == "" {
		return nil, common.ConfigurationErrorf("template %q has no invoice number column configured", profile.ID)
	}

	rows, err := e.readRows(doc, profile)
	if err != nil {
		return nil, err
	}
	if len(rows) <= profile.SkipRows+profile.HeaderRow {
		return nil, common.ParseError(fmt.Sprintf("file %s has no rows below the configured header", doc.Filename), nil)
	}

	headers := rows[profile.SkipRows+profile.HeaderRow]
	data := rows[profile.SkipRows+profile.HeaderRow+1:]

	numberCol, ok := findColumn(headers, profile.ColumnInvoiceNumber)
	if !ok {
		return nil, common.ConfigurationErrorf(
			"column %q not found in %s; available columns: %s",
			profile.ColumnInvoiceNumber, doc.Filename, strings.Join(trimAll(headers), ", "))
	}
	passwordCol, hasPassword := findColumn(headers, profile.ColumnPassword)
	seriesCol, hasSeries := findColumn(headers, profile.ColumnInvoiceSeries)
	amountCol, hasAmount := findColumn(headers, profile.ColumnAmount)
	dateCol, hasDate := findColumn(headers, profile.ColumnDate)

	// Fold over ordered rows carrying the running password; grouping keys
	// stay in first-seen order for deterministic output.
	groups := make(map[string]*entity.ExtractedPassword)
	var order []string
	currentPassword := unassignedKey

	for _, row := range data {
		number := cell(row, numberCol)
		if isEmptyCell(number) {
			continue
		}

		if hasPassword {
			raw := cell(row, passwordCol)
			switch profile.PasswordMode {
			case constants.PasswordModeOnePerRow:
				currentPassword = unassignedKey
				if !isEmptyCell(raw) {
					currentPassword = raw
				}
			default:
				// single_column and grouped both forward-fill.
				if !isEmptyCell(raw) {
					currentPassword = raw
				}
			}
		}

		ref := entity.ExtractedInvoiceRef{Number: number}
		if hasSeries {
			if v := cell(row, seriesCol); !isEmptyCell(v) {
				ref.Series = v
			}
		}
		if hasAmount {
			ref.Amount = utils.NormalizeAmount(cell(row, amountCol))
		}
		if hasDate {
			if v := cell(row, dateCol); !isEmptyCell(v) {
				ref.Date = v
			}
		}

		key := currentPassword
		group, seen := groups[key]
		if !seen {
			group = &entity.ExtractedPassword{
				Number:     key,
				Strategy:   constants.StrategyTabular,
				Confidence: 100,
			}
			groups[key] = group
			order = append(order, key)
		}
		group.Invoices = append(group.Invoices, ref)
	}

	out := make([]entity.ExtractedPassword, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}

	e.logger.Info("extract.tabular.ok",
		"document", doc.Filename,
		"template", profile.ID,
		"passwords", len(out),
	)
	return out, nil
}

func (e *Extractor) readRows(doc extract.Document, profile *entity.SourceProfile) ([][]string, error) {
	if constants.Ext(doc.Filename) == "csv" || doc.MediaType == "text/csv" {
		r := csv.NewReader(bytes.NewReader(doc.Content))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, common.ParseError(fmt.Sprintf("unreadable CSV file %s", doc.Filename), err)
		}
		return rows, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(doc.Content))
	if err != nil {
		return nil, common.ParseError(fmt.Sprintf("unreadable workbook %s", doc.Filename), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("extract.tabular.close_error", "document", doc.Filename, "error", cerr)
		}
	}()

	sheet := profile.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		idx := profile.SheetIndex
		if idx < 0 || idx >= len(sheets) {
			return nil, common.ConfigurationErrorf("sheet index %d out of range in %s", idx, doc.Filename)
		}
		sheet = sheets[idx]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, common.ParseError(fmt.Sprintf("sheet %q unreadable in %s", sheet, doc.Filename), err)
	}
	return rows, nil
}

// findColumn matches a configured column name against the header row,
// case-insensitively and ignoring surrounding whitespace.
func findColumn(headers []string, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i, true
		}
	}
	return 0, false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// isEmptyCell treats common spreadsheet placeholders as absent values.
func isEmptyCell(v string) bool {
	switch strings.ToLower(v) {
	case "", "nan", "n/a", "na", "-", "--":
		return true
	}
	return false
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
