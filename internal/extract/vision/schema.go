package vision

// BuildExtractionJSONSchema returns the JSON-Schema constraining the
// provider's structured output. Strict mode requires every property listed
// under required, so optional fields are typed ["...", "null"]. The same map
// is used locally to validate the response before trusting it.
func BuildExtractionJSONSchema() map[string]any {
	invoice := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoice_number": map[string]any{
				"type":        "string",
				"description": "Invoice number (short or full form)",
			},
			"invoice_series": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Invoice series when shown separately",
			},
			"amount": map[string]any{
				"type":        []string{"number", "null"},
				"description": "Invoice amount",
			},
			"currency": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Currency (Q, GTQ, USD, ...)",
			},
			"date": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Invoice date when shown",
			},
		},
		"required":             []string{"invoice_number", "invoice_series", "amount", "currency", "date"},
		"additionalProperties": false,
	}

	password := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"password_number": map[string]any{
				"type":        "string",
				"description": "Payment password number",
			},
			"issuer_name": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Company issuing the password",
			},
			"document_date": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Document date (ISO format when possible)",
			},
			"payment_date": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Estimated payment date when mentioned",
			},
			"page_numbers": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "integer"},
				"description": "Document pages this password appears on",
			},
			"invoices": map[string]any{
				"type":        "array",
				"items":       invoice,
				"description": "Invoices listed under this password",
			},
		},
		"required":             []string{"password_number", "issuer_name", "document_date", "payment_date", "page_numbers", "invoices"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"passwords": map[string]any{
				"type":        "array",
				"items":       password,
				"description": "Passwords found in the document",
			},
			"document_type": map[string]any{
				"type":        "string",
				"enum":        []string{"single_password", "multiple_passwords", "continuation", "unknown"},
				"description": "Detected document type",
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Overall extraction confidence (0-100)",
			},
		},
		"required":             []string{"passwords", "document_type", "confidence"},
		"additionalProperties": false,
	}
}
