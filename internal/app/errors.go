package app

import (
	"fmt"
	"net/http"
)

// DomainError is an error with a fixed HTTP status and machine-readable code.
// Browser endpoints report Message; /api endpoints report Code and Message.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	// Err is the underlying cause, if any.
	Err error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// invalid wraps a decoding failure as a 400 with the given code.
func invalid(code string, err error) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: code, Message: err.Error(), Err: err}
}

func invalidUpload(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_UPLOAD", message, nil)
}
