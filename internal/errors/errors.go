package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoData             = errors.New("no aggregated data available")
	ErrRunInProgress      = errors.New("aggregation run already in progress")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrGroupNotFound      = errors.New("group not found on provider")
	ErrUnexpectedPayload  = errors.New("unexpected payload shape")
)

// FetchError represents a group-scoped fetch failure from one platform.
type FetchError struct {
	Platform string
	Urlname  string
	Stage    string
	Err      error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("%s: %s fetch failed at %s: %v", e.Urlname, e.Platform, e.Stage, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}
