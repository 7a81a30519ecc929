// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines the wire-level conventions shared between
// the restclient and restserver packages, and by the orm package that
// builds objects out of server responses.
//
// API Usage
//
// HTTP GET the root document at its base URL.  The body is a JSON
// object with at least a "url" field; the interesting part is the
// Link: header, which names every collection endpoint the server
// offers as a link relation:
//
//     Link: <http://host/nodes/>; rel="node-list",
//           <http://host/api-token-auth/>; rel="api-get-auth-token"
//
// Relation tokens are turned into attribute names by RelationName():
// "node-list" becomes "nodes", "node-detail" becomes "node", and any
// other token drops its first hyphenated word, so "node-reboot"
// becomes "reboot".
//
// Resource representations are JSON objects.  A field whose value is
// an absolute URL refers to another resource; a field whose value is
// a list of URLs refers to a collection of them.  Every resource has
// a "url" field naming itself.
//
// HTTP Considerations
//
// Detail resources carry an ETag: header.  Clients may send it back in
// an If-None-Match: header, and a 304 Not Modified response means the
// representation they already have is current.
//
// Collections support GET (a JSON list of representations) and POST
// (create, answering 201 Created).  Detail resources support GET,
// PUT (full update), PATCH (partial update), and DELETE (204 No
// Content).  Action endpoints accept POST.
//
// Errors
//
// Failing requests return a JSON object that usually has a "detail"
// field; the REST server in this module returns an ErrorResponse.
package restdata

// JSONMediaType is the default content type of requests and responses.
const JSONMediaType = "application/json"

// V1JSONMediaType is a more specific vendor type for the same JSON
// representation.  It is accepted everywhere JSONMediaType is.
const V1JSONMediaType = "application/vnd.diffeo.orm.v1+json"

// ErrorResponse describes the body of a failing response.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name of a store error, the string "panic", or the
	// string "error" for some other kind of error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Detail repeats the message in the field most REST
	// frameworks use for it, so that clients that only look for
	// "detail" find something useful.
	Detail string `json:"detail"`

	// Value is an extra parameter to the error if applicable.
	Value string `json:"value,omitempty"`

	// Stack holds a formatted backtrace, if the method failed
	// due to a panic.
	Stack string `json:"stack,omitempty"`
}

// TokenRequest is the body posted to the authentication endpoint.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by the authentication endpoint.
type TokenResponse struct {
	Token string `json:"token"`
}
