package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// detailed errors built with NewDomainError match the package sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidState       = "INVALID_STATE"
	CodeBoundViolation     = "BOUND_VIOLATION"
	CodeUnsupportedSubject = "UNSUPPORTED_SUBJECT"
	CodeUnresolvedDelta    = "UNRESOLVED_DELTA"
	CodeLockNotObtained    = "LOCK_NOT_OBTAINED"
)

// Common domain errors
var (
	ErrNotFound        = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput    = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState    = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrLockNotObtained = NewDomainError(CodeLockNotObtained, "Could not obtain lock")

	// ErrBoundViolation is raised when a quantity invariant (shipped <= sold, credited <= invoiced, ...)
	// does not hold on freshly computed data. It is never auto-fixed.
	ErrBoundViolation = NewDomainError(CodeBoundViolation, "Quantity bound violated")

	// ErrUnsupportedSubject is raised when a calculator receives a subject it cannot handle.
	ErrUnsupportedSubject = NewDomainError(CodeUnsupportedSubject, "Unsupported subject type")

	// ErrUnresolvedDelta is raised when an integrity fix cannot distribute a delta
	// over the available stock assignments.
	ErrUnresolvedDelta = NewDomainError(CodeUnresolvedDelta, "Quantity delta could not be distributed")
)

// NewBoundViolation creates a bound violation error with details
func NewBoundViolation(format string, args ...any) *DomainError {
	return NewDomainError(CodeBoundViolation, fmt.Sprintf(format, args...))
}

// NewUnresolvedDelta creates an unresolved delta error with details
func NewUnresolvedDelta(format string, args ...any) *DomainError {
	return NewDomainError(CodeUnresolvedDelta, fmt.Sprintf(format, args...))
}
