package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturapass/password-assigner/constants"
)

// ExtractedInvoiceRef is one invoice reference lifted from a source document.
// Immutable once created; Number is never empty for records that reach the
// matching engine.
type ExtractedInvoiceRef struct {
	Number   string          `json:"invoice_number"`
	Series   string          `json:"invoice_series,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
	Date     string          `json:"date,omitempty"`
}

// ExtractedPassword is one payment password together with the invoice
// references listed under it. A multi-page document carrying a single
// password number collapses into one ExtractedPassword whose Invoices is the
// page-ordered concatenation across pages.
type ExtractedPassword struct {
	Number       string                   `json:"password_number"`
	IssuerName   string                   `json:"issuer_name,omitempty"`
	DocumentDate string                   `json:"document_date,omitempty"`
	PaymentDate  string                   `json:"payment_date,omitempty"`
	PageNumbers  []int                    `json:"page_numbers,omitempty"`
	Invoices     []ExtractedInvoiceRef    `json:"invoices"`
	Strategy     constants.SourceStrategy `json:"source_strategy"`
	Confidence   float64                  `json:"confidence"` // 0..100
}

// DocumentExtraction is the ordered extraction output for one document.
type DocumentExtraction struct {
	Document  string              `json:"document"`
	Passwords []ExtractedPassword `json:"passwords"`
}

// DocumentError records a per-document failure that did not abort the batch.
type DocumentError struct {
	Document string `json:"document"`
	Message  string `json:"message"`
}

// ExtractionBatch is the flattened, ordered result of one batch invocation.
type ExtractionBatch struct {
	BatchID   uuid.UUID            `json:"batch_id"`
	Documents []DocumentExtraction `json:"documents"`
	Errors    []DocumentError      `json:"errors,omitempty"`
	Log       []string             `json:"log,omitempty"`
}
