// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"net/http"
	"strings"
)

// Response is a fully-read HTTP response.  Unlike http.Response its
// body is held in memory, so the same Response can be served from a
// cache any number of times.
type Response struct {
	// Method is the HTTP method of the request that produced
	// this response.
	Method string

	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL that produced the response, after any
	// redirects.
	FinalURL string

	// StatusCode is the HTTP status code, e.g. 200.
	StatusCode int

	// Reason is the HTTP reason phrase, e.g. "OK".
	Reason string

	// Header holds the response headers.
	Header http.Header

	// Body holds the entire response body.
	Body []byte
}

// NewResponse reads an http.Response, including its entire body, and
// closes the body.
func NewResponse(method, url string, resp *http.Response, body []byte) *Response {
	final := url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	reason := http.StatusText(resp.StatusCode)
	if parts := strings.SplitN(resp.Status, " ", 2); len(parts) == 2 {
		reason = parts[1]
	}
	return &Response{
		Method:     method,
		URL:        url,
		FinalURL:   final,
		StatusCode: resp.StatusCode,
		Reason:     reason,
		Header:     resp.Header,
		Body:       body,
	}
}

// Links parses the response's Link: headers.
func (r *Response) Links() map[string]string {
	links := make(map[string]string)
	for _, header := range r.Header[http.CanonicalHeaderKey("Link")] {
		for relation, link := range ParseLinks(header) {
			links[relation] = link
		}
	}
	return links
}

// HasLinks returns true if the response carries any Link: header.
func (r *Response) HasLinks() bool {
	return len(r.Header[http.CanonicalHeaderKey("Link")]) > 0
}

// Fields decodes the response body as generic JSON data.
func (r *Response) Fields() (interface{}, error) {
	return DecodeFields(r.Header.Get("Content-Type"), r.Body)
}

// ETag returns the response's entity tag, with any ";gzip" suffix a
// compressing proxy may have added removed.
func (r *Response) ETag() string {
	return StripETag(r.Header.Get("ETag"))
}

// StripETag removes the ";gzip" marker compressing servers append to
// entity tags, so the tag can be sent back in If-None-Match:.
func StripETag(etag string) string {
	return strings.Replace(etag, ";gzip", "", -1)
}
