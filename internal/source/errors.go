package source

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailure       = errors.New("auth failure")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSchema            = errors.New("schema error")
)

// StatusError is returned for any non-2xx response from the source.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Status, e.URL, e.Body)
}

// StatusOf returns the HTTP status carried by err, or 0 if there is none.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("acquiring token: %v", e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuthFailure, e.Err}
}

// UnavailableError reports a failed page fetch. Page is 1-based.
type UnavailableError struct {
	Page   int
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("fetching page %d (status %d): %v", e.Page, e.Status, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// SchemaError reports a page body that does not match the expected shape.
// Index is the position of the offending record in the page, -1 for the
// page envelope itself.
type SchemaError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid page: %s", e.Reason)
	}
	return fmt.Sprintf("invalid record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}
