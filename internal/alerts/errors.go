package alerts

import "fmt"

// Kind is a stable machine-readable error category.
type Kind string

const (
	KindInvalidTransition   Kind = "invalid_transition"
	KindDuplicateAssignment Kind = "duplicate_assignment"
	KindResponderNotFound   Kind = "responder_not_found"
	KindEscalationTooSoon   Kind = "escalation_too_soon"
	KindNoEscalationTarget  Kind = "no_escalation_target"
	KindNotFound            Kind = "not_found"
	KindAccessDenied        Kind = "access_denied"
	KindValidation          Kind = "validation"
)

// Error is a recoverable domain error carried back to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match on kind using a bare &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a domain Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// KindOf returns the kind of a domain error, or "" for other errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
