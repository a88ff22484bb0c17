package inference

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies an inference failure.
type Kind string

const (
	KindEmptyToken    Kind = "empty_token"
	KindEmptyPrompt   Kind = "empty_prompt"
	KindAuth          Kind = "auth"
	KindRateLimited   Kind = "rate_limited"
	KindUnavailable   Kind = "unavailable"
	KindHTTP          Kind = "http"
	KindTransport     Kind = "transport"
	KindNormalization Kind = "normalization"
	// KindPayload means the request body could not be built.
	KindPayload Kind = "payload"
)

var (
	// ErrEmptyToken is returned by New when the API token is blank.
	ErrEmptyToken = errors.New("HuggingFace API token cannot be empty")
	// ErrEmptyPrompt is returned when the prompt is blank. No request is made.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// Error is the structured failure of a call.
type Error struct {
	Kind    Kind
	Status  int
	Message string

	RequestID string
	Model     string
	URL       string
	Method    string
	// Body is the raw response body for HTTP failures.
	Body string

	Cause error

	location string
	stack    string
}

// newError records the caller of newError as the origin of e.
func newError(e *Error) *Error { return e.capture(2) }

// capture records the frame skip levels above it and the current stack.
func (e *Error) capture(skip int) *Error {
	if _, file, line, ok := runtime.Caller(skip); ok {
		e.location = fmt.Sprintf("%s:%d", file, line)
	}
	e.stack = string(debug.Stack())
	return e
}

// panicOrigin returns the file:line of the frame that panicked. It must be
// called from the deferred function that recovered.
func panicOrigin() string {
	pcs := make([]uintptr, 64)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	panicking := false
	for {
		f, more := frames.Next()
		if panicking && !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if f.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			return ""
		}
	}
}

// Location is the file:line where the failure was raised.
func (e *Error) Location() string { return e.location }

// Stack is the goroutine stack captured when the failure was raised.
func (e *Error) Stack() string { return e.stack }

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Model != "" {
		return e.Model + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsUnavailable reports whether the service returned 500.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// errorMessage returns the "error" field of a JSON body, or "Unknown error".
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if v := gjson.GetBytes(body, "error"); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return "Unknown error"
}

// statusError classifies a non-2xx response.
func statusError(status int, body []byte) *Error {
	detail := errorMessage(body)
	e := (&Error{Status: status, Body: string(body)}).capture(2)
	switch status {
	case http.StatusUnauthorized:
		e.Kind = KindAuth
		e.Message = "invalid or expired API token: " + detail
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = "rate limit exceeded: " + detail
	case http.StatusInternalServerError:
		e.Kind = KindUnavailable
		e.Message = "HuggingFace service is unavailable: " + detail
	default:
		e.Kind = KindHTTP
		e.Message = fmt.Sprintf("API request failed with status %d: %s", status, detail)
	}
	return e
}
