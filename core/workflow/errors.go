package workflow

import (
	"errors"
	"fmt"
)

const (
	ErrorCodeValidation       = "validation"
	ErrorCodeNotFound         = "not_found"
	ErrorCodeStoreUnavailable = "store_unavailable"
	ErrorCodePartialWrite     = "partial_write"
)

type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewDomainError(code, message string, cause error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: cause}
}

func validationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrorCodeValidation, fmt.Sprintf(format, args...), nil)
}

func notFoundError(format string, args ...any) *DomainError {
	return NewDomainError(ErrorCodeNotFound, fmt.Sprintf(format, args...), nil)
}

func storeError(op string, cause error) *DomainError {
	return NewDomainError(ErrorCodeStoreUnavailable, op, cause)
}

// partialWriteError reports that the header write landed but a follow-up
// write did not; the incident may be inconsistent until retried.
func partialWriteError(op string, cause error) *DomainError {
	return NewDomainError(ErrorCodePartialWrite, op, cause)
}

func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func IsCode(err error, code string) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}
