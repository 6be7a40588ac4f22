package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a backend failure.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindTransport    ErrorKind = "transport"
	KindNotFound     ErrorKind = "not_found"
	KindModelMissing ErrorKind = "model_missing"
	KindInactive     ErrorKind = "inactive"
	KindHTTP         ErrorKind = "http"
)

// Fallback reports whether a failure of this kind is served by the
// secondary backend. Plain upstream HTTP errors are surfaced to the caller.
func (k ErrorKind) Fallback() bool {
	return k != KindHTTP
}

// ErrSecondaryUnavailable is returned when a fallback is needed but no
// secondary backend is configured.
var ErrSecondaryUnavailable = errors.New("secondary tts backend not configured")

// BackendError is returned by providers for any failed call.
type BackendError struct {
	Backend    string
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// SynthesisError is returned by the invoker when no audio could be produced.
type SynthesisError struct {
	FallbackUsed bool
	Err          error
}

func (e *SynthesisError) Error() string {
	if e.FallbackUsed {
		return "fallback synthesis failed: " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Errors that are not a BackendError count
// as transport failures.
func KindOf(err error) ErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindTransport
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func transportError(backend string, err error) *BackendError {
	kind := KindTransport
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}

const maxErrorBody = 512

// statusError classifies a non-2xx response from the primary deployment.
func statusError(backend string, code int, body []byte) *BackendError {
	text := strings.TrimSpace(string(body))
	lower := strings.ToLower(text)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}

	kind := KindHTTP
	switch {
	case strings.Contains(lower, "deactivated"), strings.Contains(lower, "needs to be activated"):
		kind = KindInactive
	case code == 404:
		kind = KindNotFound
	case strings.Contains(lower, "model_id"):
		kind = KindModelMissing
	}
	return &BackendError{Backend: backend, Kind: kind, StatusCode: code, Body: text}
}
