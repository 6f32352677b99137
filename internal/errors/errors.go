package errors

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Error reasons surfaced by the webhook pipeline.
//
// Rejected-input errors (400/401/429) are terminal: the gateway must not
// retry them as-is. Store failures are 500 so the gateway retry mechanism
// can recover them. Not-found outcomes are not errors at all; the webhook is
// acknowledged with 200 to stop retry storms.
const (
	ReasonInvalidSignature = "INVALID_SIGNATURE"
	ReasonMalformedPayload = "MALFORMED_PAYLOAD"
	ReasonInvalidCurrency  = "INVALID_CURRENCY"
	ReasonAmountMismatch   = "AMOUNT_MISMATCH"
	ReasonRateLimited      = "RATE_LIMITED"
	ReasonStoreFailure     = "STORE_FAILURE"
)

// InvalidSignature rejects an unsigned or mis-signed payload.
func InvalidSignature(message string) *kerrors.Error {
	return kerrors.Unauthorized(ReasonInvalidSignature, message)
}

// MalformedPayload rejects a body that cannot be decoded.
func MalformedPayload(message string) *kerrors.Error {
	return kerrors.BadRequest(ReasonMalformedPayload, message)
}

// InvalidCurrency rejects a settlement currency other than the configured one.
func InvalidCurrency(message string) *kerrors.Error {
	return kerrors.BadRequest(ReasonInvalidCurrency, message)
}

// AmountMismatch rejects a charge outside tolerance for a non-prorated subscription.
func AmountMismatch(message string) *kerrors.Error {
	return kerrors.BadRequest(ReasonAmountMismatch, message)
}

// RateLimited rejects a request over the throttle ceiling.
func RateLimited(message string) *kerrors.Error {
	return kerrors.New(429, ReasonRateLimited, message)
}

// StoreFailure surfaces a retryable persistence error.
func StoreFailure(message string) *kerrors.Error {
	return kerrors.InternalServer(ReasonStoreFailure, message)
}

// IsRetryable reports whether the gateway should redeliver after this error.
func IsRetryable(err error) bool {
	return kerrors.Reason(err) == ReasonStoreFailure
}
