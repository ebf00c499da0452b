package service

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeOfferExpired           ErrorCode = "OFFER_EXPIRED"
	CodeInstantPaymentRequired ErrorCode = "INSTANT_PAYMENT_REQUIRED"
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
	CodeDuplicateReference     ErrorCode = "DUPLICATE_REFERENCE"
	CodeCardDataMissing        ErrorCode = "CARD_DATA_MISSING"
	CodeDecryptionFailed       ErrorCode = "DECRYPTION_FAILED"
	CodeVaultUnavailable       ErrorCode = "VAULT_FEATURE_UNAVAILABLE"
	CodeTokenizationFailed     ErrorCode = "TOKENIZATION_FAILED"
	CodeIntentCreationFailed   ErrorCode = "INTENT_CREATION_FAILED"
	CodeRetryLimitExceeded     ErrorCode = "RETRY_LIMIT_EXCEEDED"
	CodeBookingCancelled       ErrorCode = "BOOKING_CANCELLED"
	CodePaymentFailed          ErrorCode = "PAYMENT_FAILED"
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeProviderError          ErrorCode = "PROVIDER_ERROR"
	CodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// Error is the engine's boundary error: a stable code plus a human message.
// Unexpected causes stay wrapped inside for server-side logging and are
// never surfaced verbatim to the caller.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func E(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the boundary code from any error in a chain; unknown
// errors read as internal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf is the user-facing message for an error; unknown errors get a
// generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, please try again"
}

// IsCode reports whether err carries the given boundary code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
