// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnboundResource is returned from operations that need to talk
// to the server on a Resource or Collection that has no Client, or
// that has no URL or Manager to talk to.
var ErrUnboundResource = errors.New("Resource is not bound to an API endpoint")

// ErrNotFound is returned from Collection.Get() if nothing matches.
var ErrNotFound = errors.New("No resource matches the criteria")

// ErrMultipleMatches is returned from Collection.Get() if more than
// one resource matches.
var ErrMultipleMatches = errors.New("More than one resource matches the criteria")

// ErrNotCreatable is returned from Collection.Create() on a resource
// set, since its members need not share an endpoint.
var ErrNotCreatable = errors.New("Resources cannot be created in a resource set")

// ErrNotDownloaded is returned from FileHandler.ValidateSHA256() if
// the file has not been retrieved.
var ErrNotDownloaded = errors.New("The file must be retrieved first")

// ErrAttributeNotFound is returned when a field lookup fails, after
// fetching the full resource if that was possible.
type ErrAttributeNotFound struct {
	Name string
	URL  string
}

func (err ErrAttributeNotFound) Error() string {
	if err.URL == "" {
		return fmt.Sprintf("Resource has no attribute %q", err.Name)
	}
	return fmt.Sprintf("Resource %v has no attribute %q", err.URL, err.Name)
}

// ErrUnknownMethod is returned from Manager.Call() for a name that is
// neither registered nor a generic operation.
type ErrUnknownMethod struct {
	Name     string
	Relation string
}

func (err ErrUnknownMethod) Error() string {
	return fmt.Sprintf("No method %q for relation %q", err.Name, err.Relation)
}

// ErrUnexpectedContent is returned when a response is a list where
// an object was expected, or the other way around.
type ErrUnexpectedContent struct {
	URL      string
	Expected string
}

func (err ErrUnexpectedContent) Error() string {
	return fmt.Sprintf("Expected %v from %v", err.Expected, err.URL)
}

// ErrChecksumMismatch is returned from FileHandler.ValidateSHA256()
// if the downloaded content does not match the advertised digest.
type ErrChecksumMismatch struct {
	Expected string
	Actual   string
}

func (err ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("'%v' != '%v'", err.Expected, err.Actual)
}

// ResponseStatusError is returned when the server answers with a
// status code the operation did not expect.
type ResponseStatusError struct {
	Method   string
	URL      string
	Code     int
	Reason   string
	Expected []int
	Detail   interface{}
}

func (err *ResponseStatusError) Error() string {
	expected := make([]string, len(err.Expected))
	for i, code := range err.Expected {
		expected[i] = fmt.Sprintf("%d", code)
	}
	return fmt.Sprintf("%v(%v): %d %v (!= %v) %v", err.Method, err.URL,
		err.Code, err.Reason, strings.Join(expected, ", "), err.Detail)
}
