package api

import (
	"encoding/json"
	"net/http"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusOK, api.Response[T]{
		Success: true,
		Data:    data,
	})
}

// WriteCreated writes a successful JSON response with 201 Created.
func WriteCreated[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusCreated, api.Response[T]{
		Success: true,
		Data:    data,
	})
}

// WriteErrorResponse logs the error and translates DomainErrors into the
// matching HTTP responses.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := GetLogger(ctx)
	requestID := GetRequestID(ctx)

	logger.ErrorCtx(ctx, "API request failed", err)

	statusCode := http.StatusInternalServerError
	errorCode := apperrors.ErrCodeInternal
	message := "An internal server error occurred"
	metadata := make(map[string]any)

	if domainErr, ok := err.(apperrors.DomainError); ok {
		errorCode = domainErr.Code()
		metadata = domainErr.Metadata()
		statusCode, message = mapErrorCodeToHTTP(domainErr)
	}

	_ = WriteJSON(w, statusCode, api.Response[any]{
		Success: false,
		Error: &api.ErrorInfo{
			Code:      errorCode,
			Message:   message,
			RequestID: requestID,
			Metadata:  metadata,
		},
	})
}

// mapErrorCodeToHTTP maps domain error codes to HTTP status codes and
// user-facing messages.
func mapErrorCodeToHTTP(err apperrors.DomainError) (int, string) {
	code := err.Code()
	errMsg := err.Error()

	switch code {
	// 400 Bad Request - validation and sizing errors
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidCIDR,
		apperrors.ErrCodeHostCountOutOfRange, apperrors.ErrCodePrefixOutOfRange:
		return http.StatusBadRequest, "Validation failed: " + errMsg

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized, "Authentication required"

	// 404 Not Found
	case apperrors.ErrCodeAllocationNotFound, apperrors.ErrCodeVPCNotFound:
		return http.StatusNotFound, "Resource not found: " + errMsg

	// 503 Service Unavailable - capacity issues
	case apperrors.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable, "No address space available for the requested size. Please try a smaller block."

	// 503 - the pool stopped itself after detecting corruption
	case apperrors.ErrCodePoolHalted:
		return http.StatusServiceUnavailable, "Address pool is halted pending operator intervention."

	// 500 - invariant violations and infrastructure failures
	case apperrors.ErrCodeInvalidRelease, apperrors.ErrCodeDatabase,
		apperrors.ErrCodeInternal, apperrors.ErrCodeConfiguration:
		return http.StatusInternalServerError, "An internal server error occurred"

	default:
		return http.StatusInternalServerError, "An internal server error occurred"
	}
}
