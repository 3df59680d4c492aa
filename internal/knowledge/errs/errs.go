// Package errs defines the categorized-error vocabulary shared across
// every component in this repository: a Kind enum callers branch on to
// decide whether to skip, abort, retry, or treat a failure as a
// non-error terminal state, and a CategorizedError that carries one.
// It is a leaf package with no internal dependencies so
// that both internal/knowledge and internal/storage/vecstore (which
// internal/knowledge depends on) can import it without a cycle; package
// knowledge re-exports these names so existing call sites spelling
// knowledge.KindIO, knowledge.NewError, and so on keep working.
package errs

import "fmt"

// Kind categorizes a failure the way callers need to react to it: skip,
// abort, retry, or treat as a non-error terminal state.
type Kind string

const (
	KindIO                  Kind = "io-failed"
	KindParseFailed         Kind = "parse-failed"
	KindConfigInvalid       Kind = "config-invalid"
	KindDimMismatch         Kind = "dim-mismatch"
	KindProviderUnreachable Kind = "provider-unreachable"
	KindAuthFailed          Kind = "auth-failed"
	KindRateLimited         Kind = "rate-limited"
	KindBaseMissing         Kind = "base-missing"
	KindNoInformation       Kind = "no-information"
	KindCancelled           Kind = "cancelled"
	KindLLMFailed           Kind = "llm-failed"
)

// CategorizedError wraps an underlying error with a Kind so callers can
// branch on category without string-matching messages.
type CategorizedError struct {
	Kind Kind
	Err  error
}

func (e *CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewError builds a CategorizedError, wrapping err (which may be nil).
func NewError(kind Kind, err error) *CategorizedError {
	return &CategorizedError{Kind: kind, Err: err}
}

// Errorf builds a CategorizedError from a format string.
func Errorf(kind Kind, format string, args ...any) *CategorizedError {
	return &CategorizedError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Is reports whether the first CategorizedError found along err's
// Unwrap chain has the given kind. Kinds are not errors, so the
// standard errors.Is cannot test for one; this helper does.
func Is(err error, kind Kind) bool {
	var ce *CategorizedError
	for err != nil {
		if ce2, ok := err.(*CategorizedError); ok {
			ce = ce2
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ce != nil && ce.Kind == kind
}
