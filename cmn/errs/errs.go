// Package errs defines the error taxonomy from spec §7: every component
// maps whatever it gets from the network, the database, or a third party
// onto one of these kinds before it decides whether to retry.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTransient         // network/5xx/timeout — retry with backoff
	KindRateLimited       // 429 — retry, respect retry-after
	KindQuotaExhausted    // no retry, deferred
	KindAuth              // 401/403 — no retry, re-authenticate
	KindValidation        // 4xx non-auth — no retry, item-level error
	KindPermanent         // destination-specific permanent failure — no retry
	KindCapExceeded       // hard cap / rate limit on this request — no retry for this request
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindPermanent:
		return "permanent"
	case KindCapExceeded:
		return "cap_exceeded"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error of this kind should ever be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a taxonomy Kind, optionally carrying
// a retry-after hint (for KindRateLimited) and an HTTP-ish status code when
// the cause crossed an HTTP boundary.
type Error struct {
	Kind       Kind
	Status     int
	RetryAfter int // seconds; 0 = unspecified
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: pkgerrors.Wrap(cause, msg)}
}

func Transient(cause error) *Error  { return New(KindTransient, cause) }
func Permanent(cause error) *Error  { return New(KindPermanent, cause) }
func Validation(cause error) *Error { return New(KindValidation, cause) }
func Auth(cause error) *Error       { return New(KindAuth, cause) }

func RateLimited(cause error, retryAfterSec int) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfterSec, cause: cause}
}

func QuotaExhausted(cause error) *Error { return New(KindQuotaExhausted, cause) }
func CapExceeded(cause error) *Error    { return New(KindCapExceeded, cause) }

// KindOf extracts an *Error's Kind, defaulting to KindTransient for unclassified
// errors so unknown failures fail safe toward "retry a bounded number of
// times" rather than being silently dropped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
