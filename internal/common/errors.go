package common

import (
	"errors"
	"net/http"
)

// Error codes shared across handlers so callers can branch programmatically
// instead of matching message strings.
const (
	CodeValidation         = "VALIDATION"
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
	CodeStoreFault         = "STORE"
	CodeInternal           = "INTERNAL"
)

// ErrProductUnavailable marks the expected business outcome of a product not
// being sellable in the resolved context. It is not an internal fault.
var ErrProductUnavailable = errors.New("product unavailable in resolved context")

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ValidationError builds the canonical malformed-input error.
func ValidationError(field, message string, err error) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}

// UnavailableError wraps ErrProductUnavailable with a displayable message.
func UnavailableError(message string, err error) *AppError {
	if err == nil {
		err = ErrProductUnavailable
	}
	return &AppError{
		Code:       CodeProductUnavailable,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// NotFoundError marks a missing referenced entity.
func NotFoundError(message string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// StoreError wraps a backing store failure as an internal fault.
func StoreError(op string, err error) *AppError {
	return &AppError{
		Code:       CodeStoreFault,
		Message:    "backing store unavailable: " + op,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
