package pipeline

// Default values for statement imports.
// These can be overridden via configuration.
const (
	// DefaultCurrency is applied to every imported transaction unless overridden.
	DefaultCurrency = "USD"

	// DuplicateReason is the skip reason recorded for rows flagged as duplicates.
	DuplicateReason = "Duplicate detected"

	// FallbackDescription replaces an empty description on import.
	FallbackDescription = "Imported transaction"

	// ImportNotes is stored on every imported transaction.
	ImportNotes = "Imported from bank statement"

	// FallbackIncomeCategory receives income rows with no keyword match.
	FallbackIncomeCategory = "Other Income"

	// FallbackExpenseCategory receives expense rows with no keyword match.
	FallbackExpenseCategory = "Other Expenses"

	suggestedCategoryColor = "#6366f1"
	suggestedCategoryIcon  = "folder"
	fallbackCategoryColor  = "#94a3b8"
	fallbackCategoryIcon   = "import"

	// descriptionPrefixLen is how much of a candidate description is compared
	// against existing history when looking for duplicates.
	descriptionPrefixLen = 20
)
