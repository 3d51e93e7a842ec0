package constants

// MatchStatus is the outcome of resolving one extracted invoice reference
// against the ledger.
type MatchStatus string

// Stable values (store these exact strings in preview rows).
const (
	MatchStatusMatched  MatchStatus = "matched"   // exactly one candidate isolated
	MatchStatusPartial  MatchStatus = "partial"   // one candidate via loose containment
	MatchStatusMultiple MatchStatus = "multiple"  // narrowing could not isolate one
	MatchStatusNotFound MatchStatus = "not_found" // no candidate anywhere; a normal outcome
)

// SourceStrategy identifies which extraction method produced a record.
type SourceStrategy string

const (
	StrategyTabular  SourceStrategy = "tabular"
	StrategyPDFTable SourceStrategy = "pdf_table"
	StrategyVision   SourceStrategy = "vision"
)

// PasswordMode governs how a sparse password column is resolved across rows.
type PasswordMode string

const (
	// PasswordModeSingleColumn forward-fills: a non-empty cell updates the
	// running password inherited by following empty-cell rows.
	PasswordModeSingleColumn PasswordMode = "single_column"
	// PasswordModeOnePerRow expects every row to carry its own value.
	PasswordModeOnePerRow PasswordMode = "one_per_row"
	// PasswordModeGrouped groups consecutive rows by repeated value.
	PasswordModeGrouped PasswordMode = "grouped"
)
