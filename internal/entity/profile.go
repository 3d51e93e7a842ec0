package entity

import "github.com/facturapass/password-assigner/constants"

// SourceProfile is a reusable per-source-format configuration: which columns
// play which role and how the password column is structured. Profiles are
// resolved by the profile store and bound to tabular documents.
type SourceProfile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// FileKind is one of "tabular", "pdf", "image".
	FileKind string `yaml:"file_kind"`

	ColumnPassword      string `yaml:"column_password,omitempty"`
	ColumnInvoiceNumber string `yaml:"column_invoice_number"`
	ColumnInvoiceSeries string `yaml:"column_invoice_series,omitempty"`
	ColumnAmount        string `yaml:"column_amount,omitempty"`
	ColumnDate          string `yaml:"column_date,omitempty"`

	SkipRows   int    `yaml:"skip_rows,omitempty"`
	HeaderRow  int    `yaml:"header_row,omitempty"`
	SheetName  string `yaml:"sheet_name,omitempty"`
	SheetIndex int    `yaml:"sheet_index,omitempty"`

	PasswordMode constants.PasswordMode `yaml:"password_mode"`
}
