package protocol

import "fmt"

// ErrorKind classifies a protocol-level failure so pkg/server's
// dispatcher knows whether to reply with an error and keep the
// connection open, or terminate it outright (spec.md §7).
type ErrorKind int

const (
	// ErrKindMalformed covers frame/CBOR decode failures and
	// tag/discriminator disagreement: the connection cannot be trusted
	// to frame correctly from here on, so it is terminated.
	ErrKindMalformed ErrorKind = iota
	// ErrKindProtocolViolation covers a structurally valid request variant
	// that pkg/server's dispatcher has no handler for. Also terminates.
	ErrKindProtocolViolation
	// ErrKindApplication covers a well-formed request that fails for a
	// domain reason (missing collection, dangling id, bad range). The
	// connection stays open and an application-level response (e.g.
	// DeleteResult{OK:false}) is returned instead of an error frame.
	ErrKindApplication
)

// Error wraps a message-algebra failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether this error must terminate the connection.
func (e *Error) Fatal() bool {
	return e.Kind == ErrKindMalformed || e.Kind == ErrKindProtocolViolation
}

func errMissingBranch(kind QueryKind) error {
	return &Error{Kind: ErrKindMalformed, Err: fmt.Errorf("protocol: query kind %q missing its branch payload", kind)}
}

var errEmptyCompound = &Error{Kind: ErrKindMalformed, Err: fmt.Errorf("protocol: compound query has no children")}

func errUnknownQueryKind(kind QueryKind) error {
	return &Error{Kind: ErrKindMalformed, Err: fmt.Errorf("protocol: unknown query kind %q", kind)}
}
