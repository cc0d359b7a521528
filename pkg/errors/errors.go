package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies the outcome of a single remote operation
type Kind string

const (
	KindSuccess     Kind = "success"
	KindRateLimited Kind = "rate_limited"
	KindRetryable   Kind = "retryable"
	KindFatal       Kind = "fatal"
)

// Error represents a failed remote operation with its outcome kind
type Error struct {
	Kind    Kind
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s error (code %d): %s", e.Op, e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind
func New(kind Kind, op string, code int, message string) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Message: message}
}

// Wrap creates an Error of the given kind around an underlying error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outcome kind carried by err.
// nil is a success; errors without a kind are treated as retryable.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRetryable
}

// IsRetryable reports whether the operation behind err may succeed if repeated
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRetryable, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsRateLimited reports whether err is a provider "too many requests" signal
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// KindForStatus maps an HTTP status code to an outcome kind
func KindForStatus(statusCode int) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return KindSuccess
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode == 0, // network error
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return KindRetryable
	default:
		return KindFatal
	}
}

// FromStatus builds an Error for a non-2xx HTTP response, nil otherwise
func FromStatus(op string, statusCode int) error {
	kind := KindForStatus(statusCode)
	if kind == KindSuccess {
		return nil
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Code:    statusCode,
		Message: http.StatusText(statusCode),
	}
}
