// Package errors provides structured error handling for Sentinel.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and index errors
//   - 3XX: Embedding and network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and index storage errors.
	CategoryIO Category = "IO"
	// CategoryEmbedding indicates embedding provider and network errors.
	CategoryEmbedding Category = "EMBEDDING"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and index errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeIndexCorrupt   = "ERR_210_INDEX_CORRUPT"

	// Embedding and network errors (300-399)
	ErrCodeNetworkTimeout       = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable   = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeEmbeddingUnavailable = "ERR_310_EMBEDDING_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery      = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeIndexFailed         = "ERR_505_INDEX_FAILED"
	ErrCodeConcurrencyConflict = "ERR_510_CONCURRENCY_CONFLICT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Config errors are fatal at startup; embedding errors only degrade search.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryEmbedding:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may succeed on retry. Only transient transport failures qualify.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable:
		return true
	default:
		return false
	}
}
