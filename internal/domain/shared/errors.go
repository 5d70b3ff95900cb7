package shared

import "fmt"

// Codes shared across aggregates. Aggregate-specific codes live with the
// aggregate that raises them.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
)

// DomainError is a rule violation the caller can act on. Code is stable and
// machine-readable; Message is shown to the operator.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches by code, so errors.Is(err, ErrNotFound) holds for any
// not-found error regardless of message
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Errorf creates a domain error with a formatted message
func Errorf(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound     = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidState = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
