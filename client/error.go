package client

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/spider/client/charset"
)

// maxErrBodySize caps the amount of response body kept when
// building an error for an unexpected status code.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrInvalidArgument is returned before any network call when a
	// URL, method, destination or decode target is missing.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedMethod is returned for verbs outside [Methods].
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [StatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the last
	// attempt was answered with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
	// ErrTransport is matched by every [TransportError].
	ErrTransport = errors.New("transport failure")
	// ErrParse is matched by every [ParseError].
	ErrParse = errors.New("invalid json")
	// ErrDecode is returned when no candidate encoding decodes a body.
	ErrDecode = charset.ErrDecode
)

// StatusError is returned once every attempt was answered with a
// status other than 200. It describes the last response.
type StatusError struct {
	StatusCode int
	URL        string
	Attempts   int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d, url: %s, attempts: %d, body: %s", e.Err, e.StatusCode, e.URL, e.Attempts, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// TransportError is returned when a request never produced a
// response: dial, DNS, TLS, timeout or context errors. These are
// not retried.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrTransport, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ParseError is returned when a decoded body is not valid JSON.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v from %s: %v", ErrParse, e.URL, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
