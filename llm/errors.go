package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FailureClass categorizes a failed provider attempt. The class decides
// whether the gateway retries the same model or advances the chain.
type FailureClass int

const (
	// ClassNone marks a successful attempt.
	ClassNone FailureClass = iota
	// ClassRateLimited is a 429 from the provider.
	ClassRateLimited
	// ClassServerError is a 5xx from the provider.
	ClassServerError
	// ClassTimeout is a per-call deadline expiry.
	ClassTimeout
	// ClassNetwork is a transport failure before a status was received.
	ClassNetwork
	// ClassMalformed is a 2xx with empty or unparseable content.
	ClassMalformed
	// ClassBadRequest is a 4xx the model rejected; another model may accept it.
	ClassBadRequest
	// ClassFatal is an authentication or configuration failure.
	ClassFatal
)

func (c FailureClass) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	case ClassTimeout:
		return "timeout"
	case ClassNetwork:
		return "network"
	case ClassMalformed:
		return "malformed"
	case ClassBadRequest:
		return "bad_request"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

// CallError is a classified provider failure.
type CallError struct {
	Class      FailureClass
	StatusCode int
	// RetryAfter is the provider's requested wait, when it sent one.
	RetryAfter time.Duration
	err        error
}

func (e *CallError) Error() string {
	return e.err.Error()
}

func (e *CallError) Unwrap() error {
	return e.err
}

func newCallError(class FailureClass, status int, err error) *CallError {
	return &CallError{Class: class, StatusCode: status, err: err}
}

// NewFatalError wraps an error as fatal (non-retryable, no fallback).
func NewFatalError(err error) error {
	return newCallError(ClassFatal, 0, err)
}

// ClassOf returns the failure class of an error.
// Unclassified errors are treated as network failures, and context
// deadline expiry as a timeout.
func ClassOf(err error) FailureClass {
	if err == nil {
		return ClassNone
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	return ClassNetwork
}

// ExhaustedError is returned when every permitted attempt failed.
type ExhaustedError struct {
	Role     string
	Attempts int
	Tried    []string
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all models failed for role %s after %d attempts (%s): %v",
		e.Role, e.Attempts, strings.Join(e.Tried, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// CredentialError reports a provider whose API key is not set.
type CredentialError struct {
	Provider string
	EnvVar   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("missing API credential for provider %s: set %s", e.Provider, e.EnvVar)
}
