package util

import (
	"errors"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Err        error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause so errors.Is reaches sentinel errors
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e carrying details
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Common error codes
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"

	// Bot lifecycle outcomes
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeActionInProgress     = "ACTION_IN_PROGRESS"
	ErrCodeRemoteFailure        = "REMOTE_FAILURE"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
)

// NewAppError creates a new application error
func NewAppError(statusCode int, code, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(statusCode int, code, message string, details interface{}) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// WrapError wraps an existing error
func WrapError(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// Common error constructors

func ErrBadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func ErrUnauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message)
}

func ErrInternalServer(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, message)
}

func ErrRateLimit(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, ErrCodeRateLimit, message)
}

// ErrValidation carries per-field messages in Details
func ErrValidation(message string, fields map[string]string) *AppError {
	if len(fields) == 0 {
		return NewAppError(http.StatusBadRequest, ErrCodeValidation, message)
	}
	return NewAppErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, message, fields)
}

func ErrInvalidTransition(err error) *AppError {
	return WrapError(http.StatusConflict, ErrCodeInvalidTransition, "Action not allowed in the bot's current state", err)
}

func ErrActionInProgress(err error) *AppError {
	return WrapError(http.StatusConflict, ErrCodeActionInProgress, "Another action is already running for this item", err)
}

// ErrRemoteFailure reports a failed call to the trading service. message is what the user saw.
func ErrRemoteFailure(message string, err error) *AppError {
	return WrapError(http.StatusBadGateway, ErrCodeRemoteFailure, message, err)
}

// ErrSessionExpired tells the client to send the user back to the login page
func ErrSessionExpired(err error) *AppError {
	appErr := WrapError(http.StatusUnauthorized, ErrCodeSessionExpired, "Session expired, please log in again", err)
	appErr.Details = map[string]string{"redirect": "/login"}
	return appErr
}

func ErrConfirmationRequired(err error) *AppError {
	return WrapError(http.StatusPreconditionRequired, ErrCodeConfirmationRequired, "Confirmation required", err)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}
