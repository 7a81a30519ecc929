// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains a REST skeleton framework.
//
// The bulk of this is dealing with HTTP content type negotiation,
// entity tags, and providing a standard way to deal with input and
// output values.  Handler functions deal only in generic JSON-like
// data; everything HTTP-specific happens here.
//
// Another more generic solution out there is
// https://github.com/jchannon/negotiator.  This only deals with
// output type negotiation, forces all JSON-ish output to report
// itself as "application/json", and doesn't deal well with other HTTP
// status codes.

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io/ioutil"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/diffeo/go-orm/restdata"
)

var typeMap = map[string]string{
	"text/json":              restdata.JSONMediaType,
	restdata.JSONMediaType:   restdata.JSONMediaType,
	restdata.V1JSONMediaType: restdata.JSONMediaType,
}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned from negotiateResponse() if the Accept:
// header does not mention any media types we can actually return.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// errMethodNotAllowed is used within the resourceHandler implementation
// to flag an error if a particular HTTP method is not allowed.  This
// corresponds exactly to the 405 Method Not Allowed HTTP status code.
type errMethodNotAllowed struct {
	Method string
}

func (e errMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

func (e errMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// responseCreated is returned as a value response from handler
// functions that want to indicate that a new resource was created.
type responseCreated struct {
	// Location holds the canonical URL to the newly created resource.
	Location string

	// Body contains the object sent in the body of the response.
	Body interface{}
}

// response is returned from handler functions that need a specific
// status code or extra headers.
type response struct {
	// Status is the HTTP status code; zero means 200 OK.
	Status int

	// Header holds additional response headers.
	Header http.Header

	// Body contains the object sent in the body of the response.
	Body interface{}
}

// body is the decoded request body passed to handler functions.
type body map[string]interface{}

type resourceHandler struct {
	// Context reads an HTTP request and produces a context object.
	Context func(req *http.Request) (*context, error)

	// Get, if non-nil, returns a representation of the object.
	Get func(*context) (interface{}, error)

	// Put, if non-nil, replaces the object.
	Put func(*context, body) (interface{}, error)

	// Patch, if non-nil, changes some fields of the object.
	Patch func(*context, body) (interface{}, error)

	// Post, if non-nil, takes some arbitrary action.  The return
	// can be any useful return value, including responseCreated.
	Post func(*context, body) (interface{}, error)

	// Delete, if non-nil, deletes the object.  The return can be
	// any useful return value.
	Delete func(*context) (interface{}, error)
}

func (h *resourceHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		ctx          *context
		in           body
		out          interface{}
		err          error
		status       int
		responseType string
		header       = http.Header{}
	)

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			errResp := restdata.ErrorResponse{}
			errResp.FromPanic(recovered)
			resp.Header().Set("Content-Type", restdata.JSONMediaType)
			resp.WriteHeader(http.StatusInternalServerError)
			_ = restdata.Encode(resp, errResp)
		}
	}()

	// Start by trying to come up with a response type, even before
	// trying to parse the input.  This determines what format an
	// error message could be sent back as.
	status = http.StatusBadRequest
	responseType, err = negotiateResponse(req)
	if err != nil {
		// Gotta pick something
		responseType = restdata.JSONMediaType
	}

	// Get bits from URL parameters
	if err == nil {
		ctx, err = h.Context(req)
	}

	// Read the (JSON?) body, if it's there
	if err == nil && (req.Method == "PUT" || req.Method == "POST" || req.Method == "PATCH") {
		var (
			data    []byte
			decoded interface{}
		)
		data, err = ioutil.ReadAll(req.Body)
		if err == nil {
			decoded, err = restdata.DecodeFields(req.Header.Get("Content-Type"), data)
		}
		if err != nil {
			if _, isStatus := err.(restdata.ErrorStatus); !isStatus {
				err = restdata.ErrBadRequest{Err: err}
			}
		} else if obj, isObj := decoded.(map[string]interface{}); isObj {
			in = body(obj)
		} else {
			err = errUnmarshal
		}
	}

	// Actually call the handler method
	if err == nil {
		// We will return this if the method is unexpected or
		// we don't have a handler for it
		err = errMethodNotAllowed{Method: req.Method}
		// If anything else goes wrong here, it's an error in
		// client code
		status = http.StatusInternalServerError
		switch req.Method {
		case "GET", "HEAD":
			if h.Get != nil {
				out, err = h.Get(ctx)
			}
		case "PUT":
			if h.Put != nil {
				out, err = h.Put(ctx, in)
			}
		case "PATCH":
			if h.Patch != nil {
				out, err = h.Patch(ctx, in)
			}
		case "POST":
			if h.Post != nil {
				out, err = h.Post(ctx, in)
			}
		case "DELETE":
			if h.Delete != nil {
				out, err = h.Delete(ctx)
			}
		}
	}

	// Fix up the final result based on what we know.
	if err != nil {
		// Pick a better status code if we know of one
		if errS, hasStatus := err.(restdata.ErrorStatus); hasStatus {
			status = errS.HTTPStatus()
		}
		errResp := restdata.ErrorResponse{}
		errResp.FromError(err)
		out = errResp
	} else if out == nil {
		status = http.StatusNoContent
	} else if created, isCreated := out.(responseCreated); isCreated {
		status = http.StatusCreated
		if created.Location != "" {
			header.Set("Location", created.Location)
		}
		out = created.Body
	} else if custom, isCustom := out.(response); isCustom {
		status = custom.Status
		if status == 0 {
			status = http.StatusOK
		}
		for key, values := range custom.Header {
			header[key] = values
		}
		out = custom.Body
	} else {
		status = http.StatusOK
	}

	// Serialize the body now, so that successful reads can carry
	// an entity tag.
	var encoded []byte
	if out != nil {
		encoded, err = restdata.EncodeBody(out)
		if err != nil {
			panic(err)
		}
		header.Set("Content-Type", responseType)
	}
	if status == http.StatusOK && (req.Method == "GET" || req.Method == "HEAD") {
		etag := entityTag(encoded)
		header.Set("ETag", etag)
		if matchesETag(req.Header.Get("If-None-Match"), etag) {
			status = http.StatusNotModified
			header.Del("Content-Type")
			encoded = nil
		}
	}
	if req.Method == "HEAD" {
		encoded = nil
	}

	// Actually send the response.  If the write fails, the status
	// line is already gone, so there is nothing better to do.
	for key, values := range header {
		resp.Header()[key] = values
	}
	resp.WriteHeader(status)
	if encoded != nil {
		_, _ = resp.Write(encoded)
	}
}

// entityTag computes a strong entity tag for a response body.
func entityTag(encoded []byte) string {
	hash := fnv.New64a()
	_, _ = hash.Write(encoded)
	return fmt.Sprintf("\"%016x\"", hash.Sum64())
}

// matchesETag checks an If-None-Match: header against the current
// entity tag.
func matchesETag(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || restdata.StripETag(candidate) == etag {
			return true
		}
	}
	return false
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	bestType := ""
	bestQ := 0.0
	mediaRanges := strings.Split(accept, ",")
	for _, mediaRange := range mediaRanges {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", err
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", errBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		// This is acceptable if it's listed in the type
		// map; or it's one of a couple of specific wildcards.
		// Also need to handle wildcard precedence.  So:
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if _, knownType := typeMap[mediaType]; knownType {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || bestType == "*/*" || bestType == "text/*" || bestType == "application/*" {
				bestType = mediaType
				bestQ = q
			}
		}
		// Otherwise we don't recognize this type at all, so
		// just drop it.
	}
	// If this failed to win, return an error
	if bestQ == 0.0 {
		return "", errNotAcceptable{}
	}
	switch bestType {
	case "*/*", "application/*":
		return restdata.JSONMediaType, nil
	case "text/*":
		return "text/json", nil
	default:
		return bestType, nil
	}
}
