// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes the records in a store as a hypermedia
// REST service.  The restclient package is a matching client, and the
// orm package builds objects out of its responses.
//
// The conventions shared by both ends are described in the restdata
// package.  In particular, note that the URLs described here are not
// actually part of the API; clients discover them from Link: headers.
//
// Schema
//
// The server publishes the kinds named in a Schema.  A kind may
// declare fields that refer to other kinds; the server checks that
// such fields hold the URL of an existing record, and adds a list of
// referring records to the representation of the referenced one.  If
// nodes refer to groups through a "group" field, every group has a
// "nodes" field listing the URLs of its nodes.
//
// HTTP Considerations
//
// Successful GET responses carry a strong ETag: header computed from
// the response body, and honor If-None-Match:.  If the schema names
// any users, requests that change data need an Authorization: header
// of the form "Token xyz", with a token obtained by POSTing a username
// and password to the token endpoint.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.diffeo.orm.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// Records are addressed by kind and identifier.  If the identifier is
// not URL-safe printable ASCII, it must be base64 encoded using the
// URL-safe alphabet (RFC 4648 section 5), with no padding, and adding
// an additional - at the front.
//
// The following URLs are defined:
//
//     /
//     /api-token-auth/
//     /{kind}/
//     /{kind}/{id}/
//     /{kind}/{id}/{action}/
package restserver
