package model

import "github.com/rotisserie/eris"

// Error kinds surfaced by the pipeline. Every stage failure wraps exactly
// one of these; test with errors.Is.
var (
	// ErrExtraction: source file missing, unreadable, malformed or missing required columns.
	ErrExtraction = eris.New("extraction error")
	// ErrComputation: non-numeric or non-finite value in a numeric column.
	ErrComputation = eris.New("computation error")
	// ErrSchema: destination table exists with an incompatible schema.
	ErrSchema = eris.New("schema error")
	// ErrPersistence: the store rejected a write or a query.
	ErrPersistence = eris.New("persistence error")
)

// kindError pairs an error kind with its underlying cause.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string   { return e.kind.Error() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// WithKind tags cause with kind and wraps it with msg. The result matches
// both kind and cause under errors.Is. A nil cause returns nil.
func WithKind(kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return eris.Wrap(&kindError{kind: kind, cause: cause}, msg)
}

// WithKindf is WithKind with a format string.
func WithKindf(kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return eris.Wrapf(&kindError{kind: kind, cause: cause}, format, args...)
}
