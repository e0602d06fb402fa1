// Package vkapi talks to the remote social-network API: the HTTP transport
// and its circuit breaker, the retrying Invoker and the response Normalizer.
package vkapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Remote error codes the invoker reacts to.
const (
	CodeUnknown            = 1
	CodeAuthFailed         = 5
	CodeTooManyRequests    = 6
	CodeFloodControl       = 9
	CodeInternal           = 10
	CodeCaptchaNeeded      = 14
	CodeValidationRequired = 17
	// The remote occasionally reports HTTP-like codes inside the error envelope.
	CodeHTTPInternal       = 500
	CodeHTTPNotImplemented = 501
)

var (
	// ErrRetryBudgetExhausted is matched by errors.Is when a call chain used
	// up every attempt of its RetryPolicy.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrMalformedResponse is matched by errors.Is for every MalformedError.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrWrongResponseType is returned when a resolved screen name points at
	// a different kind of object than the caller manages.
	ErrWrongResponseType = errors.New("wrong response type")
)

// Error is an error envelope returned by the remote API.
type Error struct {
	Code        int
	Message     string
	RedirectURI string
	Method      string
	Params      url.Values
}

func (e *Error) Error() string {
	return fmt.Sprintf("vk api error %d in %s: %s", e.Code, e.Method, e.Message)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vk api http status %d in %s", e.StatusCode, e.Method)
}

// ExhaustedError carries the last failure of a chain that ran out of
// attempts. It matches both ErrRetryBudgetExhausted and the last error.
type ExhaustedError struct {
	Method   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", ErrRetryBudgetExhausted, e.Method, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetryBudgetExhausted, e.Last}
}

// MalformedKind distinguishes the ways a response can be unusable.
type MalformedKind int

const (
	// NotCollection: the payload is neither a sequence nor a mapping.
	NotCollection MalformedKind = iota + 1
	// NotRecord: a sequence element cannot be read as a record.
	NotRecord
	// BadEnvelope: the body is not a JSON envelope at all.
	BadEnvelope
)

func (k MalformedKind) String() string {
	switch k {
	case NotCollection:
		return "not a sequence or mapping"
	case NotRecord:
		return "not a record"
	case BadEnvelope:
		return "bad envelope"
	default:
		return "unknown"
	}
}

type MalformedError struct {
	Kind  MalformedKind
	Value any
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s (%T)", ErrMalformedResponse, e.Kind, e.Value)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

// IsTransient reports failures that are expected to clear on their own:
// HTTP 5xx, TLS and network errors, timeouts and an open circuit breaker.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeInternal, CodeHTTPInternal, CodeHTTPNotImplemented:
			return true
		}
		return false
	}

	var (
		netErr  net.Error
		recErr  tls.RecordHeaderError
		certErr *tls.CertificateVerificationError
		unkAuth x509.UnknownAuthorityError
		opErr   *net.OpError
		dnsErr  *net.DNSError
	)
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return true
	case errors.As(err, &recErr), errors.As(err, &certErr), errors.As(err, &unkAuth):
		return true
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
