package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a business error that maps to a 4xx response. It is constructed
// next to the violated invariant and carried unchanged to the HTTP boundary.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// As unwraps err into a business error, or returns nil when err is an
// internal/unexpected failure.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func NotFound(code, message string) *Error {
	return New(code, message, http.StatusNotFound)
}

func BadRequest(code, message string) *Error {
	return New(code, message, http.StatusBadRequest)
}

func Conflict(code, message string) *Error {
	return New(code, message, http.StatusConflict)
}

func Unauthorized(code, message string) *Error {
	return New(code, message, http.StatusUnauthorized)
}

// Shared instances for conditions raised from more than one place.
var (
	ErrRateLimited = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
)
