// Package vision extracts password documents through a schema-constrained
// multimodal AI call. It is the fallback for scans and photos the
// deterministic strategies cannot read.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/extract"
)

const instructions = `You are an assistant specialized in extracting payment password documents.

GOAL: extract the password number and ALL invoices listed in the document.

PASSWORD IDENTIFICATION:
- Look for "No.", "Nº", "Contraseña", "Número" near the header
- Examples: "No. DIS - 5994", "Contraseña: 055648", "No. 12345"
- The number may carry prefixes such as DIS-, CAR-, POP-, etc.

INVOICE EXTRACTION:
- Extract EVERY row of the invoice table
- Invoice numbers appear under a "Factura" column or similar
- Common formats:
  * numeric: 2483374605, 519783176, 1301012124
  * prefixed: TK00023243, TF00010377, GTGTAPM250031725
  * short: 0098, 0010, 0611
  * long: FP-MEG-202512-0002
- Extract each invoice amount as well ("Monto Q." column or similar)

MULTI-PAGE:
- Several pages with ONE password number means ONE password with many invoices
- Combine every invoice from every page under that password
- Only create separate passwords for DIFFERENT password numbers

COMMON ISSUERS: DISTELSA (Grupo Distelsa), CARTOGUA (Carton de Guatemala), La Popular, Carton Box.

Answer as structured JSON following the provided schema.`

// Config holds the provider knobs for one extractor instance.
type Config struct {
	APIKey          string
	APIURL          string
	Model           string
	MaxOutputTokens int
	MaxPages        int
}

type Extractor struct {
	logger     *slog.Logger
	client     *http.Client
	cfg        Config
	rasterizer Rasterizer
}

func New(logger *slog.Logger, client *http.Client, cfg Config, rasterizer Rasterizer) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.openai.com/v1/responses"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 16000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Extractor{logger: logger, client: client, cfg: cfg, rasterizer: rasterizer}
}

func (e *Extractor) Name() constants.SourceStrategy {
	return constants.StrategyVision
}

func (e *Extractor) TryExtract(ctx context.Context, doc extract.Document) ([]entity.ExtractedPassword, error) {
	if e.cfg.APIKey == "" {
		return nil, common.ConfigurationErrorf("vision extraction requires an API key")
	}

	blocks, pageCount, err := e.buildContentBlocks(ctx, doc)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":        e.cfg.Model,
		"instructions": instructions,
		"input": []map[string]any{{
			"role":    "user",
			"content": blocks,
		}},
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   "password_extraction",
				"schema": BuildExtractionJSONSchema(),
				"strict": true,
			},
		},
		"max_output_tokens": e.cfg.MaxOutputTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + e.cfg.APIKey}
	raw, status, err := sendJSON(ctx, e.client, e.cfg.APIURL, payload, headers, e.logger)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, common.NetworkError("timeout calling AI provider", err)
		}
		return nil, common.NetworkError(fmt.Sprintf("AI provider unreachable for %s", doc.Filename), err)
	}
	if status != http.StatusOK {
		return nil, common.ProviderError(providerMessage(raw, status), nil)
	}

	content, err := responseText(raw)
	if err != nil {
		return nil, common.ProviderError("no content in provider response", err)
	}
	if err := validateAgainstSchema(BuildExtractionJSONSchema(), content); err != nil {
		return nil, common.ProviderError("provider response violates extraction schema", err)
	}

	var parsed extractionPayload
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, common.ProviderError("provider response is not valid JSON", err)
	}

	passwords := parsed.toEntities(pageCount)
	e.logger.Info("vision.extract.ok",
		"document", doc.Filename,
		"pages", pageCount,
		"passwords", len(passwords),
		"confidence", parsed.Confidence,
		"document_type", parsed.DocumentType,
	)
	return passwords, nil
}

// buildContentBlocks embeds the document as one or more input_image blocks
// followed by the task text. PDFs are rendered to page images first; pages
// beyond the cap are dropped with a truncation note.
func (e *Extractor) buildContentBlocks(ctx context.Context, doc extract.Document) ([]map[string]any, int, error) {
	var blocks []map[string]any
	pageCount := 1

	if constants.IsPDF(doc.Filename, doc.MediaType) {
		if e.rasterizer == nil {
			return nil, 0, common.ConfigurationErrorf("PDF rasterization is not available (pdftoppm missing)")
		}
		pages, err := e.rasterizer.Render(ctx, doc.Content)
		if err != nil {
			return nil, 0, common.ParseError(fmt.Sprintf("cannot render %s to images", doc.Filename), err)
		}
		if len(pages) > e.cfg.MaxPages {
			e.logger.Warn("vision.extract.truncated",
				"document", doc.Filename,
				"pages", len(pages),
				"max_pages", e.cfg.MaxPages,
			)
			pages = pages[:e.cfg.MaxPages]
		}
		for _, p := range pages {
			blocks = append(blocks, imageBlock(p.MIME, p.Data))
		}
		pageCount = len(pages)
	} else {
		mime := doc.MediaType
		if !strings.HasPrefix(mime, "image/") {
			mime = constants.GuessMediaType(doc.Filename)
		}
		blocks = append(blocks, imageBlock(mime, doc.Content))
	}

	task := "Analyze this document and extract the payment password information and ALL invoices per the instructions."
	if pageCount > 1 {
		task += fmt.Sprintf(`

IMPORTANT - MULTI-PAGE DOCUMENT:
- This document has %d pages
- Extract ALL invoices from ALL pages
- The invoice table continues on later pages
- Combine every invoice under ONE password when the password number repeats
- Do NOT skip any table row`, pageCount)
	}
	blocks = append(blocks, map[string]any{"type": "input_text", "text": task})

	return blocks, pageCount, nil
}

func imageBlock(mime string, data []byte) map[string]any {
	return map[string]any{
		"type":      "input_image",
		"image_url": fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
	}
}

// responseText digs the JSON payload out of a Responses-API envelope: either
// a top-level output_text or a nested output[].content[].text.
func responseText(raw []byte) ([]byte, error) {
	var envelope struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode provider envelope: %w", err)
	}
	if envelope.OutputText != "" {
		return []byte(envelope.OutputText), nil
	}
	for _, blk := range envelope.Output {
		for _, part := range blk.Content {
			if (part.Type == "output_text" || part.Type == "text") && part.Text != "" {
				return []byte(part.Text), nil
			}
		}
	}
	return nil, fmt.Errorf("empty provider output")
}

func providerMessage(raw []byte, status int) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return fmt.Sprintf("provider error (status %d): %s", status, body.Error.Message)
	}
	return fmt.Sprintf("provider error (status %d)", status)
}

// extractionPayload mirrors the constrained response schema.
type extractionPayload struct {
	Passwords    []passwordEntry `json:"passwords"`
	DocumentType string          `json:"document_type"`
	Confidence   float64         `json:"confidence"`
}

type passwordEntry struct {
	PasswordNumber string         `json:"password_number"`
	IssuerName     *string        `json:"issuer_name"`
	DocumentDate   *string        `json:"document_date"`
	PaymentDate    *string        `json:"payment_date"`
	PageNumbers    []int          `json:"page_numbers"`
	Invoices       []invoiceEntry `json:"invoices"`
}

type invoiceEntry struct {
	InvoiceNumber string   `json:"invoice_number"`
	InvoiceSeries *string  `json:"invoice_series"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	Date          *string  `json:"date"`
}

// toEntities maps each schema password entry 1:1 onto the canonical record,
// propagating the call's overall confidence to every entry.
func (p extractionPayload) toEntities(pageCount int) []entity.ExtractedPassword {
	out := make([]entity.ExtractedPassword, 0, len(p.Passwords))
	for _, pw := range p.Passwords {
		rec := entity.ExtractedPassword{
			Number:       strings.TrimSpace(pw.PasswordNumber),
			IssuerName:   deref(pw.IssuerName),
			DocumentDate: deref(pw.DocumentDate),
			PaymentDate:  deref(pw.PaymentDate),
			PageNumbers:  pw.PageNumbers,
			Strategy:     constants.StrategyVision,
			Confidence:   p.Confidence,
		}
		if len(rec.PageNumbers) == 0 && pageCount > 0 {
			rec.PageNumbers = []int{1}
		}
		for _, inv := range pw.Invoices {
			number := strings.TrimSpace(inv.InvoiceNumber)
			if number == "" {
				continue
			}
			ref := entity.ExtractedInvoiceRef{
				Number:   number,
				Series:   deref(inv.InvoiceSeries),
				Currency: deref(inv.Currency),
				Date:     deref(inv.Date),
			}
			if inv.Amount != nil {
				ref.Amount = decimal.NewFromFloat(*inv.Amount)
			}
			rec.Invoices = append(rec.Invoices, ref)
		}
		out = append(out, rec)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
