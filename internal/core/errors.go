package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the errors the core surfaces to adapters, per the
// source's error taxonomy: some kinds are fatal to the calling operation,
// others (Transient) are meant to be swallowed by the caller and degrade
// silently instead of failing the containing operation.
type ErrorKind int

const (
	// KindNotIndexed means the container has no table yet; search
	// callers should render a friendly message, not treat it as failure.
	KindNotIndexed ErrorKind = iota
	// KindDimensionMismatch means a stored vector's width no longer
	// matches the active embedder's, and the container needs a rebuild.
	KindDimensionMismatch
	// KindProviderUnavailable means the embedder/reranker isn't ready
	// (not initialized, or a remote provider is unreachable).
	KindProviderUnavailable
	// KindInvalidInput means the caller passed something malformed: a
	// bad duration string, an unknown container, an empty note, a path
	// outside every indexed root.
	KindInvalidInput
	// KindAccessDenied means read_file was asked for a path outside
	// every indexed container root.
	KindAccessDenied
	// KindTransient means a non-fatal background failure (PDF/OCR
	// extraction, git history lookup, reranker panic, HyDE call) that
	// the caller should silently degrade from rather than fail on.
	KindTransient
	// KindFatal means the core itself failed to start (store open
	// failure); propagated to the host, never recovered from.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotIndexed:
		return "not_indexed"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindInvalidInput:
		return "invalid_input"
	case KindAccessDenied:
		return "access_denied"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a plain-string, kind-tagged error: the core never surfaces
// stack traces to adapters, only a kind to branch on and a message to
// display.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err if it (or something it wraps) is an
// *Error, and false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
