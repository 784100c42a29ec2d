// Package errors provides structured error handling for rememex.
//
// Every error surfaced by the core is one of the seven kinds a caller
// needs to branch on: NotIndexed, DimensionMismatch, ProviderUnavailable,
// InvalidInput, AccessDenied, Transient, and Fatal. Category is the kind;
// Severity says whether the caller should abort, degrade, or just log.
package errors

// Category is one of the seven error kinds callers branch on.
type Category string

const (
	// CategoryNotIndexed: the requested container/path has no index yet.
	CategoryNotIndexed Category = "NOT_INDEXED"
	// CategoryDimensionMismatch: stored vectors and the active embedder disagree on width.
	CategoryDimensionMismatch Category = "DIMENSION_MISMATCH"
	// CategoryProviderUnavailable: an Embedder/Reranker/HyDE backend could not be reached.
	CategoryProviderUnavailable Category = "PROVIDER_UNAVAILABLE"
	// CategoryInvalidInput: caller-supplied input failed validation.
	CategoryInvalidInput Category = "INVALID_INPUT"
	// CategoryAccessDenied: a path resolves outside an indexed root, or permissions block it.
	CategoryAccessDenied Category = "ACCESS_DENIED"
	// CategoryTransient: a recoverable failure; the caller should degrade gracefully, not abort.
	CategoryTransient Category = "TRANSIENT"
	// CategoryFatal: an unrecoverable failure; the caller should abort the operation.
	CategoryFatal Category = "FATAL"
)

// Severity defines how loudly an error should be surfaced.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes grouped by category.
const (
	CodeNotIndexed          = "ERR_NOT_INDEXED"
	CodeContainerNotFound   = "ERR_CONTAINER_NOT_FOUND"
	CodeContainerExists     = "ERR_CONTAINER_EXISTS"
	CodeDimensionMismatch   = "ERR_DIMENSION_MISMATCH"
	CodeProviderUnavailable = "ERR_PROVIDER_UNAVAILABLE"
	CodeEmbedderTimeout     = "ERR_EMBEDDER_TIMEOUT"
	CodeRerankerUnavailable = "ERR_RERANKER_UNAVAILABLE"
	CodeHydeUnavailable     = "ERR_HYDE_UNAVAILABLE"
	CodeInvalidInput        = "ERR_INVALID_INPUT"
	CodeInvalidQuery        = "ERR_INVALID_QUERY"
	CodeInvalidPath         = "ERR_INVALID_PATH"
	CodeAccessDenied        = "ERR_ACCESS_DENIED"
	CodePathEscapesRoot     = "ERR_PATH_ESCAPES_ROOT"
	CodeFilePermission      = "ERR_FILE_PERMISSION"
	CodeFileTooLarge        = "ERR_FILE_TOO_LARGE"
	CodeTransient           = "ERR_TRANSIENT"
	CodeWatcherDropped      = "ERR_WATCHER_EVENT_DROPPED"
	CodeFatal               = "ERR_FATAL"
	CodeCorruptIndex        = "ERR_CORRUPT_INDEX"
	CodeDiskFull            = "ERR_DISK_FULL"
	CodeInternal            = "ERR_INTERNAL"
)

var codeCategory = map[string]Category{
	CodeNotIndexed:          CategoryNotIndexed,
	CodeContainerNotFound:   CategoryNotIndexed,
	CodeContainerExists:     CategoryInvalidInput,
	CodeDimensionMismatch:   CategoryDimensionMismatch,
	CodeProviderUnavailable: CategoryProviderUnavailable,
	CodeEmbedderTimeout:     CategoryProviderUnavailable,
	CodeRerankerUnavailable: CategoryProviderUnavailable,
	CodeHydeUnavailable:     CategoryProviderUnavailable,
	CodeInvalidInput:        CategoryInvalidInput,
	CodeInvalidQuery:        CategoryInvalidInput,
	CodeInvalidPath:         CategoryInvalidInput,
	CodeAccessDenied:        CategoryAccessDenied,
	CodePathEscapesRoot:     CategoryAccessDenied,
	CodeFilePermission:      CategoryAccessDenied,
	CodeFileTooLarge:        CategoryInvalidInput,
	CodeTransient:           CategoryTransient,
	CodeWatcherDropped:      CategoryTransient,
	CodeFatal:               CategoryFatal,
	CodeCorruptIndex:        CategoryFatal,
	CodeDiskFull:            CategoryFatal,
	CodeInternal:            CategoryFatal,
}

var retryableCategories = map[Category]bool{
	CategoryProviderUnavailable: true,
	CategoryTransient:           true,
}

// categoryFromCode extracts the category for a known code, defaulting to Fatal.
func categoryFromCode(code string) Category {
	if c, ok := codeCategory[code]; ok {
		return c
	}
	return CategoryFatal
}

// severityFromCode derives severity from category.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryFatal:
		return SeverityFatal
	case CategoryTransient, CategoryProviderUnavailable:
		return SeverityWarning
	case CategoryNotIndexed:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	return retryableCategories[categoryFromCode(code)]
}
