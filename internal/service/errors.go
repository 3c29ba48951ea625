package service

import (
	"errors"
	"net/http"
)

// Error codes returned by the services. Handlers map these onto HTTP
// responses; anything else is downgraded to INTERNAL_ERROR.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a classified service failure
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFoundError creates a NOT_FOUND error
func NotFoundError(message string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: message}
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message}
}

// UnavailableError creates a PRODUCT_UNAVAILABLE error
func UnavailableError(message string) *Error {
	return &Error{Code: CodeProductUnavailable, Status: http.StatusBadRequest, Message: message}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: message}
}

// AsError extracts a classified *Error from err, if any
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsCode reports whether err is a classified error with the given code
func IsCode(err error, code string) bool {
	if svcErr, ok := AsError(err); ok {
		return svcErr.Code == code
	}
	return false
}
