package errors

import (
	"errors"
	"fmt"
	"time"
)

// DomainError is the base interface for all structured errors in the application
type DomainError interface {
	error

	// Domain returns the domain context (e.g., "sizing", "pool", "ledger")
	Domain() string

	// Code returns a stable error code for API responses
	Code() string

	// Retryable indicates if the operation can be retried
	Retryable() bool

	// Metadata returns additional error context
	Metadata() map[string]any

	// WithMetadata adds metadata to the error
	WithMetadata(key string, value any) DomainError

	// Timestamp returns when the error occurred
	Timestamp() time.Time
}

// BaseError is the foundational implementation of DomainError
type BaseError struct {
	domain    string
	code      string
	message   string
	cause     error
	retryable bool
	metadata  map[string]any
	timestamp time.Time
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.domain, e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.domain, e.code, e.message)
}

func (e *BaseError) Unwrap() error            { return e.cause }
func (e *BaseError) Domain() string           { return e.domain }
func (e *BaseError) Code() string             { return e.code }
func (e *BaseError) Retryable() bool          { return e.retryable }
func (e *BaseError) Metadata() map[string]any { return e.metadata }
func (e *BaseError) Timestamp() time.Time     { return e.timestamp }

// NewBaseError creates a new BaseError with the specified parameters
func NewBaseError(domain, code, message string, retryable bool, cause error, metadata map[string]any) *BaseError {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &BaseError{
		domain:    domain,
		code:      code,
		message:   message,
		cause:     cause,
		retryable: retryable,
		metadata:  metadata,
		timestamp: time.Now(),
	}
}

// WithMetadata returns a copy of the error with the key/value added.
// The receiver is never mutated so shared sentinels stay safe.
func (e *BaseError) WithMetadata(key string, value any) DomainError {
	newMeta := make(map[string]any, len(e.metadata)+1)
	for k, v := range e.metadata {
		newMeta[k] = v
	}
	newMeta[key] = value

	return &BaseError{
		domain:    e.domain,
		code:      e.code,
		message:   e.message,
		cause:     e.cause,
		retryable: e.retryable,
		metadata:  newMeta,
		timestamp: e.timestamp,
	}
}

// Standardized Error Codes
const (
	// Sizing Domain Errors
	ErrCodeHostCountOutOfRange = "host_count_out_of_range"
	ErrCodePrefixOutOfRange    = "prefix_out_of_range"

	// Pool Domain Errors
	ErrCodePoolExhausted  = "pool_exhausted"
	ErrCodePoolHalted     = "pool_halted"
	ErrCodeInvalidRelease = "invalid_release"
	ErrCodeInvalidCIDR    = "invalid_cidr"

	// Ledger Domain Errors
	ErrCodeAllocationNotFound = "allocation_not_found"
	ErrCodeVPCNotFound        = "vpc_not_found"

	// System Errors
	ErrCodeDatabase      = "database_error"
	ErrCodeConfiguration = "config_error"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeUnauthorized  = "unauthorized"
)

// Domain Constants
const (
	DomainSizing   = "sizing"
	DomainPool     = "pool"
	DomainLedger   = "ledger"
	DomainDatabase = "database"
	DomainSystem   = "system"
	DomainAPI      = "api"
	DomainEvent    = "event"
)

// Domain-specific error constructors

// NewSizingError creates a standardized sizing domain error
func NewSizingError(code, message string, cause error) DomainError {
	return NewBaseError(DomainSizing, code, message, false, cause, nil)
}

// NewPoolError creates a standardized pool domain error
func NewPoolError(code, message string, cause error) DomainError {
	return NewBaseError(DomainPool, code, message, false, cause, nil)
}

// NewLedgerError creates a standardized ledger domain error
func NewLedgerError(code, message string, cause error) DomainError {
	return NewBaseError(DomainLedger, code, message, false, cause, nil)
}

// NewDatabaseError creates a standardized database error
func NewDatabaseError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainDatabase, code, message, retryable, cause, nil)
}

// NewSystemError creates a standardized system error
func NewSystemError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainSystem, code, message, retryable, cause, nil)
}

// NewAPIError creates a standardized API error
func NewAPIError(code, message string, cause error) DomainError {
	return NewBaseError(DomainAPI, code, message, false, cause, nil)
}

// Helper functions for error checking

// IsDomainError checks if an error is a DomainError
func IsDomainError(err error) bool {
	var domainErr DomainError
	return errors.As(err, &domainErr)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable()
	}
	return false
}

// GetErrorCode returns the error code if it's a DomainError, otherwise returns "unknown"
func GetErrorCode(err error) string {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code()
	}
	return "unknown"
}

// GetErrorDomain returns the error domain if it's a DomainError, otherwise returns "unknown"
func GetErrorDomain(err error) string {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Domain()
	}
	return "unknown"
}

// HasErrorCode checks if any error in the chain carries the specified code
func HasErrorCode(err error, code string) bool {
	for err != nil {
		if domainErr, ok := err.(DomainError); ok && domainErr.Code() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// WrapWithDomain wraps an existing error with domain context
func WrapWithDomain(err error, domain, code, message string, retryable bool) DomainError {
	return NewBaseError(domain, code, message, retryable, err, nil)
}
