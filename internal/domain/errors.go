package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamAuth        = errors.New("upstream rejected credential")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCallback            = errors.New("oauth callback rejected")
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	ErrAccountNotLinked = errors.New("platform account not linked")
	ErrNoSnapshot       = errors.New("no stats snapshot")
	ErrNotRefreshable   = errors.New("credential cannot be refreshed")
	ErrStaleCredential  = errors.New("newer credential already stored")
)

// UpstreamAuthError means the platform rejected the credential. It is surfaced to
// the caller and never retried.
type UpstreamAuthError struct {
	Platform Platform
	Op       string
	Status   int
	Reason   string
}

func (e *UpstreamAuthError) Error() string {
	msg := fmt.Sprintf("%s %s: credential rejected", e.Platform, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UpstreamAuthError) Is(target error) bool { return target == ErrUpstreamAuth }

// UpstreamUnavailableError covers network failures, 5xx answers and timeouts.
type UpstreamUnavailableError struct {
	Platform Platform
	Op       string
	Status   int
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	msg := fmt.Sprintf("%s %s: upstream unavailable", e.Platform, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamUnavailableError) Is(target error) bool { return target == ErrUpstreamUnavailable }

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// CallbackError is returned for OAuth callbacks that cannot be honoured. Reason is a
// short machine-readable code safe to hand back to the browser.
type CallbackError struct {
	Reason string
	Err    error
}

const (
	CallbackInvalidState   = "invalid_state"
	CallbackMissingCode    = "missing_code"
	CallbackDenied         = "access_denied"
	CallbackExchangeFailed = "exchange_failed"
	CallbackIdentityFailed = "identity_failed"
	CallbackStoreFailed    = "store_failed"
)

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth callback: %s: %v", e.Reason, e.Err)
	}
	return "oauth callback: " + e.Reason
}

func (e *CallbackError) Is(target error) bool { return target == ErrCallback }

func (e *CallbackError) Unwrap() error { return e.Err }

type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q", e.Platform)
}

func (e *UnsupportedPlatformError) Is(target error) bool { return target == ErrUnsupportedPlatform }
