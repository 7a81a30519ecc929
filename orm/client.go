// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"net/http"

	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
)

// Client is the API a Resource or Collection uses to reach its
// server.  All URLs are absolute.
type Client interface {
	// RetrieveResource fetches a single resource.  Additional
	// request headers, such as If-None-Match:, may be passed in
	// header.  If the server answers "not modified", returns
	// nil with no error.
	RetrieveResource(ctx context.Context, url string, header http.Header) (*Resource, error)

	// Retrieve fetches an endpoint.  If id is non-empty it
	// names a single resource under url; query holds
	// server-side filters.  The result is a *Resource or a
	// *Collection depending on what the server returned.
	Retrieve(ctx context.Context, url, id string, query map[string]string) (interface{}, error)

	// Create posts a new resource to a collection endpoint.
	Create(ctx context.Context, url string, fields Fields) (*Resource, error)

	// Update replaces a resource.
	Update(ctx context.Context, url string, fields Fields) (*Resource, error)

	// PartialUpdate changes some fields of a resource.
	PartialUpdate(ctx context.Context, url string, fields Fields) (*Resource, error)

	// Destroy deletes a resource.
	Destroy(ctx context.Context, url string) error

	// Action posts to an action endpoint.
	Action(ctx context.Context, url string, fields Fields) (*Resource, error)

	// Download fetches raw content, returning the body and the
	// URL it finally came from.
	Download(ctx context.Context, url string) ([]byte, string, error)

	// Get, Head, Post, Put, Patch, and Delete make a single raw
	// request.  The response is returned whatever its status.
	Get(ctx context.Context, url string, header http.Header) (*restdata.Response, error)
	Head(ctx context.Context, url string, header http.Header) (*restdata.Response, error)
	Post(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error)
	Put(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error)
	Patch(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error)
	Delete(ctx context.Context, url string, header http.Header) (*restdata.Response, error)

	// Manager finds a manager on the API root document by
	// attribute name, such as "nodes".
	Manager(ctx context.Context, name string) (*Manager, error)

	// CacheEnabled is true if the client serves repeated
	// requests from its own response cache.
	CacheEnabled() bool

	// Concurrency is the maximum number of requests a bulk
	// operation should have in flight.  Zero means no limit.
	Concurrency() int

	// Registry holds custom manager methods.  It may be nil.
	Registry() *Registry

	// Logger is where per-item failures of bulk operations are
	// reported.
	Logger() logrus.FieldLogger
}
