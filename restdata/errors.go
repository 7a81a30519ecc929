// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/diffeo/go-orm/store"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrUnauthorized is returned when a request that changes data does
// not carry a valid authorization token.
type ErrUnauthorized struct {
	Reason string
}

func (e ErrUnauthorized) Error() string {
	if e.Reason == "" {
		return "Authentication credentials were not provided"
	}
	return e.Reason
}

// HTTPStatus returns a fixed 401 Unauthorized HTTP status code.
func (e ErrUnauthorized) HTTPStatus() int {
	return http.StatusUnauthorized
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  This remaps the well-known store errors to
// specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	e.Error = "error"
	e.Message = err.Error()
	e.Detail = e.Message
	if err == store.ErrNoKind {
		e.Error = "ErrNoKind"
	}
	switch et := err.(type) {
	case store.ErrNoSuchRecord:
		e.Error = "ErrNoSuchRecord"
		e.Value = et.Kind + "/" + et.ID
	case ErrUnauthorized:
		e.Error = "ErrUnauthorized"
	case ErrUnsupportedMediaType:
		e.Error = "ErrUnsupportedMediaType"
		e.Value = et.Type
	case ErrNotFound:
		// Discard this wrapper and return the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	}
}

// ToError converts e back to a store error, if that is possible.
// If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrNoKind":
		return store.ErrNoKind
	case "ErrNoSuchRecord":
		parts := strings.SplitN(e.Value, "/", 2)
		if len(parts) == 2 {
			return store.ErrNoSuchRecord{Kind: parts[0], ID: parts[1]}
		}
	case "ErrUnauthorized":
		return ErrUnauthorized{Reason: e.Message}
	case "ErrUnsupportedMediaType":
		return ErrUnsupportedMediaType{Type: e.Value}
	}
	if e.Message != "" {
		return errors.New(e.Message)
	}
	return errors.New(e.Detail)
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recovered(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	e.Detail = e.Message
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}
