package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a tool failure. The router's fallback table is keyed on it.
type ErrorKind string

const (
	ErrorKindParse              ErrorKind = "parse_error"
	ErrorKindDomain             ErrorKind = "domain_error"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindRateLimited        ErrorKind = "rate_limited"
	ErrorKindNoResults          ErrorKind = "no_results"
	ErrorKindCollectionNotFound ErrorKind = "collection_not_found"
	ErrorKindEmptyResult        ErrorKind = "empty_result"
	ErrorKindGeneration         ErrorKind = "generation_error"
	ErrorKindUnavailable        ErrorKind = "unavailable"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrParse              = &Error{Kind: ErrorKindParse}
	ErrDomain             = &Error{Kind: ErrorKindDomain}
	ErrTimeout            = &Error{Kind: ErrorKindTimeout}
	ErrRateLimited        = &Error{Kind: ErrorKindRateLimited}
	ErrNoResults          = &Error{Kind: ErrorKindNoResults}
	ErrCollectionNotFound = &Error{Kind: ErrorKindCollectionNotFound}
	ErrEmptyResult        = &Error{Kind: ErrorKindEmptyResult}
	ErrGeneration         = &Error{Kind: ErrorKindGeneration}
	ErrUnavailable        = &Error{Kind: ErrorKindUnavailable}
)

// Error is a typed tool failure.
type Error struct {
	Tool Kind
	Kind ErrorKind
	Err  error
}

func NewError(tool Kind, kind ErrorKind, err error) *Error {
	return &Error{Tool: tool, Kind: kind, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(tool Kind, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Tool: tool, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Tool == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Tool, e.Kind)
	case e.Tool == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Tool == "" || t.Tool == e.Tool)
}

// Message returns the cause without the tool and kind prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf extracts the failure kind of err, or "" if err is not a tool error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// asToolError normalises an arbitrary error returned by an adapter.
func asToolError(tool Kind, err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		if te.Tool == "" {
			te = &Error{Tool: tool, Kind: te.Kind, Err: te.Err}
		}
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(tool, ErrorKindTimeout, err)
	}
	if tool == KindDirect {
		return NewError(tool, ErrorKindGeneration, err)
	}
	return NewError(tool, ErrorKindUnavailable, err)
}
