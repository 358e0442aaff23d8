// Package errors defines the classified failure taxonomy for scadform builds.
//
// Orchestrator-side failures carry a Kind so callers can distinguish a
// retryable engine-load failure from a request-fatal dependency failure or
// from the one authoritative compile failure, a missing output artifact.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a compile-side failure.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// KindEngineLoad means the build-engine factory could not be loaded.
	// The factory cache is left empty so a later request may retry.
	KindEngineLoad
	// KindDependencyListing means the library file listing could not be
	// fetched. Fatal for the requesting compile only.
	KindDependencyListing
	// KindArtifactMissing means the engine run produced no output artifact.
	// This is the single authoritative compile failure regardless of the
	// engine's exit status.
	KindArtifactMissing
	// KindChannel marks a transport-level failure of the channel itself,
	// distinct from a compile error delivered over it.
	KindChannel
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindEngineLoad:
		return "engine_load"
	case KindDependencyListing:
		return "dependency_listing"
	case KindArtifactMissing:
		return "artifact_missing"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// CompileError is a classified orchestrator failure. Exactly one CompileError
// surfaces per failed request, as the channel's terminal error message.
type CompileError struct {
	Kind      Kind
	Message   string
	Cause     error
	Timestamp time.Time
}

// New creates a classified compile error.
func New(kind Kind, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Wrap creates a classified compile error around an underlying cause.
func Wrap(kind Kind, cause error, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Cause: cause, Timestamp: time.Now()}
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// KindOf extracts the classification from err, or KindUnknown when err is not
// a CompileError.
func KindOf(err error) Kind {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a later identical request might succeed without
// any external change. Only engine-load failures qualify: the factory cache
// is left empty on failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindEngineLoad
}
