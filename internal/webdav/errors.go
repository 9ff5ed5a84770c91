package webdav

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the server answered with a non-2xx status.
// Body carries the (possibly truncated) raw response body for diagnostics.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webdav %s %s: %s (status %d)", e.Method, e.Path, statusReason(e.Code), e.Code)
}

func statusReason(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "authentication failed"
	case http.StatusForbidden:
		return "not authorized to perform this operation"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusMethodNotAllowed:
		return "method not supported by server"
	case http.StatusConflict:
		return "conflicting resource state"
	case http.StatusPreconditionFailed:
		return "precondition failed"
	case http.StatusLocked:
		return "resource is locked"
	case http.StatusInsufficientStorage:
		return "insufficient storage on server"
	default:
		return "unexpected server response"
	}
}

// TransportError is returned when no HTTP response was received at all:
// connection refused, DNS failure, TLS handshake failure and the like.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webdav %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a multistatus response body cannot be
// interpreted as WebDAV XML.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "webdav: " + e.Reason
}

// errorCode extracts the HTTP status code of a classified error, or 0.
func errorCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func IsNotFound(err error) bool {
	return errorCode(err) == http.StatusNotFound
}

func IsConflict(err error) bool {
	return errorCode(err) == http.StatusConflict
}

func IsAuthFailed(err error) bool {
	return errorCode(err) == http.StatusUnauthorized
}

func IsForbidden(err error) bool {
	return errorCode(err) == http.StatusForbidden
}

func IsMethodNotSupported(err error) bool {
	return errorCode(err) == http.StatusMethodNotAllowed
}

func IsPreconditionFailed(err error) bool {
	return errorCode(err) == http.StatusPreconditionFailed
}

func IsLocked(err error) bool {
	return errorCode(err) == http.StatusLocked
}

func IsInsufficientStorage(err error) bool {
	return errorCode(err) == http.StatusInsufficientStorage
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
