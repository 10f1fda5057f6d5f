// Package errors carries the edge's typed error codes and how each one is
// rendered to clients.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeUnavailable   Code = "ITEM_UNAVAILABLE"
	CodeUnreachable   Code = "UPSTREAM_UNREACHABLE"
	CodeQueueFull     Code = "QUEUE_FULL"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
)

func meta(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", withDetails),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", withDetails),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", 0),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeUnavailable:   meta(http.StatusNotFound, "item no longer available", withDetails),
	CodeUnreachable:   meta(http.StatusServiceUnavailable, "upstream unreachable", retryable|withDetails),
	CodeQueueFull:     meta(http.StatusServiceUnavailable, "controller busy", retryable),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
}

// MetadataFor falls back to the internal error metadata for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional client-visible payload.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the payload returned to clients when the code allows it.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf reports the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsRetryable reports whether err carries a code worth retrying.
func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
