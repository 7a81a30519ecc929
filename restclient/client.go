// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides the HTTP side of the orm package: an
// API object that talks to a hypermedia REST server, such as the one
// in the "restserver" package, and builds orm.Resource and
// orm.Collection objects out of its responses.
//
// Call New() with the base URL of the service; for instance,
//
//     api, err := restclient.New(restclient.Config{URL: "http://localhost:5981/"})
//     nodes, err := api.Manager(ctx, "nodes")
//     all, err := nodes.Retrieve(ctx, nil)
package restclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/cache"
	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// API is a client for one REST API.  It implements orm.Client.  It
// is safe for concurrent use.
type API struct {
	baseURL     string
	contentType string
	retries     int
	concurrency int

	httpClient *http.Client
	cache      *cache.Cache
	flight     singleflight.Group
	registry   *orm.Registry
	logger     logrus.FieldLogger
	clock      clock.Clock
	stats      *Stats
	tracer     trace.Tracer

	mu            sync.Mutex
	authorization string
	root          *orm.Resource
}

// Option changes how New() builds an API.
type Option func(*API)

// WithHTTPClient sends requests through a specific HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(api *API) { api.httpClient = client }
}

// WithRegistry uses a specific set of custom manager methods.
func WithRegistry(registry *orm.Registry) Option {
	return func(api *API) { api.registry = registry }
}

// WithLogger logs somewhere other than the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(api *API) { api.logger = logger }
}

// WithClock uses a specific time source for the response cache.
func WithClock(clk clock.Clock) Option {
	return func(api *API) { api.clock = clk }
}

// New creates an API client.  The configuration is validated, and if
// it names a user, the client logs in before returning.
func New(cfg Config, opts ...Option) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api := &API{
		baseURL:     cfg.URL,
		contentType: cfg.ContentType,
		retries:     cfg.Retries,
		concurrency: cfg.Concurrency,
		httpClient:  http.DefaultClient,
		logger:      logrus.StandardLogger(),
		clock:       clock.New(),
		stats:       newStats(),
		tracer:      otel.Tracer("github.com/diffeo/go-orm/restclient"),
	}
	if api.contentType == "" {
		api.contentType = restdata.JSONMediaType
	}
	for _, opt := range opts {
		opt(api)
	}
	if api.registry == nil {
		api.registry = orm.DefaultRegistry()
	}
	if cfg.Cache {
		api.cache = cache.New(cfg.CacheSize, api.clock)
	}
	if cfg.Username != "" {
		if err := api.Login(context.Background(), cfg.Username, cfg.Password); err != nil {
			return nil, err
		}
	}
	return api, nil
}

// BaseURL returns the URL of the API root document.
func (api *API) BaseURL() string {
	return api.baseURL
}

// Stats returns the client's request counters.
func (api *API) Stats() *Stats {
	return api.stats
}

// Cache returns the response cache, or nil if caching is disabled.
func (api *API) Cache() *cache.Cache {
	return api.cache
}

// CacheEnabled implements orm.Client.
func (api *API) CacheEnabled() bool {
	return api.cache != nil
}

// Concurrency implements orm.Client.
func (api *API) Concurrency() int {
	return api.concurrency
}

// Registry implements orm.Client.
func (api *API) Registry() *orm.Registry {
	return api.registry
}

// Logger implements orm.Client.
func (api *API) Logger() logrus.FieldLogger {
	return api.logger
}

// Register adds a custom manager method to the client's registry.
func (api *API) Register(relation, name string, fn orm.MethodFunc) {
	api.registry.Register(relation, name, fn)
}

// Unregister removes a custom manager method.
func (api *API) Unregister(relation, name string) bool {
	return api.registry.Unregister(relation, name)
}
