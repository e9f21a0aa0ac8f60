package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the exchange and recommendation
// clients unwraps to exactly one of them.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrNetwork        = errors.New("network error")
	ErrAuthentication = errors.New("authentication error")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrValidation     = errors.New("validation error")
	ErrOrderRejected  = errors.New("order rejected")

	// ErrRecommendationUnavailable the recommendation source produced no answer.
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")
)

// APIError is a failed exchange call.
type APIError struct {
	Kind       error
	HTTPStatus int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	kind := "api error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}

	switch {
	case e.Code != "":
		return fmt.Sprintf("%s (http %d, code %s): %s", kind, e.HTTPStatus, e.Code, msg)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("%s (http %d): %s", kind, e.HTTPStatus, msg)
	default:
		return fmt.Sprintf("%s: %s", kind, msg)
	}
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *APIError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsTransient reports whether a failed call may succeed when repeated.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded)
}

// FailureReason maps a cycle error to the reason recorded in the cycle log.
// Error kinds win over context errors, a request or agent timeout is a
// network failure. Callers decide shutdown from their own context.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return ReasonAuth
	case errors.Is(err, ErrRateLimit):
		return ReasonRateLimited
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return ReasonNetworkExhausted
	case errors.Is(err, ErrOrderRejected):
		return ReasonOrderRejected
	case errors.Is(err, ErrRecommendationUnavailable):
		return ReasonRecommendationUnavailable
	case errors.Is(err, ErrConfiguration):
		return ReasonConfiguration
	case errors.Is(err, context.Canceled):
		return ReasonShutdown
	default:
		return ReasonRequestRejected
	}
}
