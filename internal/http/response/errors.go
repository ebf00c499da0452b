package response

import (
	"encoding/json"
	"net/http"

	"github.com/voyago/flight-bookings/internal/service"
	"github.com/voyago/flight-bookings/pkg/logger"
)

// ErrorResponse is the stable error shape callers receive: a human message
// plus a machine code.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

func JSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// Common error codes for requests that fail before business logic runs.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimit    = "TOO_MANY_REQUESTS"
	CodeInternal     = "INTERNAL_ERROR"
)

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternal)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

// ServiceError translates the engine's error taxonomy to HTTP statuses.
func ServiceError(w http.ResponseWriter, err error) {
	code := service.CodeOf(err)
	WriteError(w, statusFor(code), service.MessageOf(err), string(code))
}

func statusFor(code service.ErrorCode) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeOfferExpired, service.CodeInstantPaymentRequired,
		service.CodeDuplicateReference, service.CodeBookingCancelled:
		return http.StatusConflict
	case service.CodeCardDataMissing:
		return http.StatusUnprocessableEntity
	case service.CodeRetryLimitExceeded, service.CodePaymentFailed,
		service.CodeTokenizationFailed, service.CodeIntentCreationFailed:
		return http.StatusPaymentRequired
	case service.CodeVaultUnavailable:
		return http.StatusNotImplemented
	case service.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
