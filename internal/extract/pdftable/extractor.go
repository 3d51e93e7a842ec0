// Package pdftable extracts password documents from PDF text layers using
// label regexes and column-aligned table geometry. It is fully deterministic
// and never calls a network service; documents it cannot read fall through to
// vision extraction.
package pdftable

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/extract"
	"github.com/facturapass/password-assigner/internal/utils"
)

// Confidence levels depending on where the password came from.
const (
	confidenceTextPassword     = 95
	confidenceFilenamePassword = 85
)

// passwordPatterns are tried in order on each page; the first match wins and
// is cached for the whole document so that a later page cannot overwrite it.
var passwordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:contraseña|contrasena|password)\s*(?:no\.?|nº|n°|#)?\s*[:.]?\s*([A-Z]{2,4}\s?-\s?\d{3,8}|[A-Z]{0,4}\d{4,10})`),
	regexp.MustCompile(`(?i)\bno\.?\s*[:.]?\s*([A-Z]{2,4}\s?-\s?\d{3,8}|\d{4,8})\b`),
	regexp.MustCompile(`(?i)\b(?:número|numero)\s*[:.]?\s*(\d{4,10})\b`),
}

// issuerPattern recognizes the known counterparties that issue password
// documents in this format.
var issuerPattern = regexp.MustCompile(`(?i)\b(GRUPO\s+DISTELSA|DISTELSA|CARTOGUA|CARTON\s+DE\s+GUATEMALA|LA\s+POPULAR|CARTON\s+BOX)\b`)

// filenameCodePatterns derive a last-resort password from the filename when
// the text layer has invoice rows but no recognizable password label.
var filenameCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z]{2,4}-\d{3,8})`),
	regexp.MustCompile(`(\d{4,8})`),
}

var (
	columnSplit = regexp.MustCompile(`\s{2,}`)
	codeLike    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*$`)
	numericLike = regexp.MustCompile(`^-?[\d.,]+$`)
)

type Extractor struct {
	logger    *slog.Logger
	runner    extract.Runner
	pdftotext string
}

func New(logger *slog.Logger, runner extract.Runner, pdftotext string) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = extract.ExecRunner{}
	}
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	return &Extractor{logger: logger, runner: runner, pdftotext: pdftotext}
}

func (e *Extractor) Name() constants.SourceStrategy {
	return constants.StrategyPDFTable
}

// TryExtract parses the PDF text layer page by page. It returns nil (no
// error) when no invoice rows are found so the orchestrator can fall back to
// vision extraction.
func (e *Extractor) TryExtract(ctx context.Context, doc extract.Document) ([]entity.ExtractedPassword, error) {
	text, err := e.pdfToText(ctx, doc)
	if err != nil {
		return nil, err
	}

	pages := strings.Split(text, "\f")

	var (
		password string
		issuer   string
		invoices []entity.ExtractedInvoiceRef
		pageNums []int
	)
	for i, page := range pages {
		if password == "" {
			password = findPassword(page)
		}
		if issuer == "" {
			issuer = findIssuer(page)
		}
		refs := parseTableRows(page)
		if len(refs) > 0 {
			invoices = append(invoices, refs...)
			pageNums = append(pageNums, i+1)
		}
	}

	if len(invoices) == 0 {
		e.logger.Info("extract.pdftable.no_rows", "document", doc.Filename)
		return nil, nil
	}

	confidence := float64(confidenceTextPassword)
	if password == "" {
		password = passwordFromFilename(doc.Filename)
		if password == "" {
			e.logger.Info("extract.pdftable.no_password", "document", doc.Filename)
			return nil, nil
		}
		confidence = confidenceFilenamePassword
		e.logger.Warn("extract.pdftable.filename_password",
			"document", doc.Filename, "password", password)
	}

	e.logger.Info("extract.pdftable.ok",
		"document", doc.Filename,
		"password", password,
		"invoices", len(invoices),
		"pages", len(pageNums),
	)

	return []entity.ExtractedPassword{{
		Number:      password,
		IssuerName:  issuer,
		PageNumbers: pageNums,
		Invoices:    invoices,
		Strategy:    constants.StrategyPDFTable,
		Confidence:  confidence,
	}}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, doc extract.Document) (string, error) {
	tmp, err := os.CreateTemp("", "pa-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	defer func() {
		if rerr := os.Remove(tmp.Name()); rerr != nil {
			e.logger.Warn("extract.pdftable.tmp_remove_error", "path", tmp.Name(), "error", rerr)
		}
	}()
	if _, err := tmp.Write(doc.Content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp pdf: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return "", common.ParseError(fmt.Sprintf("pdftotext failed for %s: %s", doc.Filename, strings.TrimSpace(string(errb))), err)
	}
	return string(out), nil
}

func findPassword(page string) string {
	for _, re := range passwordPatterns {
		if m := re.FindStringSubmatch(page); m != nil {
			return normalizeCode(m[1])
		}
	}
	return ""
}

func findIssuer(page string) string {
	if m := issuerPattern.FindString(page); m != "" {
		return strings.Join(strings.Fields(strings.ToUpper(m)), " ")
	}
	return ""
}

func passwordFromFilename(filename string) string {
	base := strings.ToUpper(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	for _, re := range filenameCodePatterns {
		if m := re.FindStringSubmatch(base); m != nil {
			return normalizeCode(m[1])
		}
	}
	return ""
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// parseTableRows recovers invoice rows from one page of column-aligned text.
// The invoice-number and amount columns are inferred from header keywords;
// without a header match, positional defaults apply (second column = number,
// last column = amount).
func parseTableRows(page string) []entity.ExtractedInvoiceRef {
	lines := strings.Split(page, "\n")

	numberCol, amountCol := -1, -1
	headerAt := -1
	for i, line := range lines {
		cells := splitColumns(line)
		if len(cells) < 2 {
			continue
		}
		n, a := headerColumns(cells)
		if n >= 0 {
			numberCol, amountCol, headerAt = n, a, i
			break
		}
	}

	var refs []entity.ExtractedInvoiceRef
	if headerAt >= 0 {
		for _, line := range lines[headerAt+1:] {
			cells := splitColumns(line)
			if len(cells) <= numberCol {
				continue
			}
			number := normalizeCode(cells[numberCol])
			if !codeLike.MatchString(number) {
				continue
			}
			ref := entity.ExtractedInvoiceRef{Number: number}
			if amountCol >= 0 && amountCol < len(cells) {
				ref.Amount = utils.NormalizeAmount(cells[amountCol])
			}
			refs = append(refs, ref)
		}
		return refs
	}

	// Positional fallback: only rows that look unambiguously like data.
	for _, line := range lines {
		cells := splitColumns(line)
		if len(cells) < 3 {
			continue
		}
		number := normalizeCode(cells[1])
		last := cells[len(cells)-1]
		if !codeLike.MatchString(number) || !numericLike.MatchString(last) {
			continue
		}
		refs = append(refs, entity.ExtractedInvoiceRef{
			Number: number,
			Amount: utils.NormalizeAmount(last),
		})
	}
	return refs
}

func splitColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	return columnSplit.Split(trimmed, -1)
}

// headerColumns returns the inferred (number, amount) column indexes, or
// (-1, x) when the line is not a header.
func headerColumns(cells []string) (int, int) {
	numberCol, amountCol := -1, -1
	for i, c := range cells {
		lc := strings.ToLower(c)
		if strings.ContainsAny(lc, "0123456789") {
			continue
		}
		if numberCol < 0 && (strings.Contains(lc, "factura") || strings.Contains(lc, "no.")) {
			numberCol = i
		}
		if strings.Contains(lc, "monto") || strings.Contains(lc, "total") || strings.Contains(lc, "importe") {
			amountCol = i
		}
	}
	if numberCol < 0 {
		return -1, -1
	}
	if amountCol < 0 {
		amountCol = len(cells) - 1
	}
	return numberCol, amountCol
}
