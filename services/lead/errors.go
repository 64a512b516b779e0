package lead

import (
	"fmt"
	"net/http"
)

// Error is a coded domain error with a stable machine-readable code and the
// HTTP status class it maps to.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode reports the HTTP status the error maps to.
func (e *Error) StatusCode() int {
	return e.Status
}

func NewValidationError(msg string) error {
	return &Error{Code: "validationError", Status: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) error {
	return &Error{Code: "notFound", Status: http.StatusNotFound, Message: msg}
}

func NewConflictError(msg string) error {
	return &Error{Code: "conflict", Status: http.StatusConflict, Message: msg}
}

func NewSoldOutError(msg string) error {
	return &Error{Code: "maxProvidersReached", Status: http.StatusGone, Message: msg}
}

func NewProcessorError(msg string) error {
	return &Error{Code: "paymentProcessorError", Status: http.StatusBadGateway, Message: msg}
}
