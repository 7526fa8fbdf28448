// Package errors provides structured error handling for SupaQuery.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage/IO errors (catalog, indexes, disk)
//   - 3XX: Dependency errors (LLM server, graph store, network)
//   - 4XX: Validation/input errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index, catalog, and disk errors.
	CategoryStorage Category = "STORAGE"
	// CategoryDependency indicates LLM or graph store errors.
	CategoryDependency Category = "DEPENDENCY"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage/IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeStorageLocked     = "ERR_202_STORAGE_LOCKED"
	ErrCodeCorruptIndex      = "ERR_203_CORRUPT_INDEX"
	ErrCodeModelMismatch     = "ERR_204_EMBED_MODEL_MISMATCH"
	ErrCodeIndexInconsistent = "ERR_205_INDEX_INCONSISTENT"
	ErrCodeCatalogFailed     = "ERR_206_CATALOG_FAILED"

	// Dependency errors (300-399)
	ErrCodeLLMTimeout       = "ERR_301_LLM_TIMEOUT"
	ErrCodeLLMUnavailable   = "ERR_302_LLM_UNAVAILABLE"
	ErrCodeGraphTimeout     = "ERR_303_GRAPH_TIMEOUT"
	ErrCodeGraphUnavailable = "ERR_304_GRAPH_UNAVAILABLE"
	ErrCodeEmbedderFailed   = "ERR_305_EMBEDDER_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeInvalidDocument   = "ERR_404_INVALID_DOCUMENT"
	ErrCodeInvalidCitation   = "ERR_405_INVALID_CITATION"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeSearchFailed    = "ERR_502_SEARCH_FAILED"
	ErrCodeChunkingFailed  = "ERR_503_CHUNKING_FAILED"
	ErrCodeIngestionFailed = "ERR_504_INGESTION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryDependency
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeModelMismatch:
		return SeverityFatal
	}

	// Retryable dependency errors get warning severity.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeLLMTimeout, ErrCodeLLMUnavailable,
		ErrCodeGraphTimeout, ErrCodeGraphUnavailable,
		ErrCodeEmbedderFailed:
		return true
	default:
		return false
	}
}
