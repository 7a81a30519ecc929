// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"sync"

	"github.com/diffeo/go-orm/restdata"
	"github.com/diffeo/go-orm/store"
	"github.com/gorilla/mux"
	uuid "github.com/satori/go.uuid"
)

// NewRouter creates a new HTTP handler that publishes every kind in
// a schema.  All resources are under the URL path root, e.g.
// /nodes/1/.  For more control over this setup, create a mux.Router
// and call PopulateRouter instead.
func NewRouter(st store.Store, schema Schema) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, st, schema)
	return r
}

// PopulateRouter adds the API routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the API under a subpath:
//
//     import "github.com/diffeo/go-orm/memory"
//     import "github.com/gorilla/mux"
//     r := mux.Router()
//     s := r.PathPrefix("/api").Subrouter()
//     PopulateRouter(s, memory.New(), schema)
func PopulateRouter(r *mux.Router, st store.Store, schema Schema) {
	api := &restAPI{
		Store:  st,
		Schema: schema,
		Router: r,
		tokens: make(map[string]string),
	}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the REST API.
type restAPI struct {
	Store  store.Store
	Schema Schema
	Router *mux.Router

	mu     sync.Mutex
	tokens map[string]string
}

// PopulateRouter adds all URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	r.Path("/").Name("root").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.RootDocument,
	})
	r.Path("/api-token-auth/").Name("token").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.TokenPost,
	})
	r.Path("/{kind}/").Name("collection").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.CollectionGet,
		Post:    api.CollectionPost,
	})
	r.Path("/{kind}/{id}/").Name("detail").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.DetailGet,
		Put:     api.DetailPut,
		Patch:   api.DetailPatch,
		Delete:  api.DetailDelete,
	})
	r.Path("/{kind}/{id}/{action}/").Name("action").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.ActionPost,
	})
}

// RootDocument returns the API root: its own URL, and a link
// relation for every collection.
func (api *restAPI) RootDocument(ctx *context) (interface{}, error) {
	links := make(map[string]string)
	var root, token string
	b := buildURLs(api.Router, ctx.Base).
		URL(&root, "root").
		URL(&token, "token")
	if b.Error != nil {
		return nil, b.Error
	}
	for _, kind := range api.Schema.Kinds {
		var list string
		if err := b.With("kind", kind.Name).URL(&list, "collection").Error; err != nil {
			return nil, err
		}
		links[kind.SingularName()+"-list"] = list
	}
	links["base"] = root
	links["api-get-auth-token"] = token
	return response{
		Header: http.Header{"Link": []string{restdata.FormatLinks(links)}},
		Body:   map[string]interface{}{"url": root},
	}, nil
}

// errBadCredentials is returned from the token endpoint.
var errBadCredentials = restdata.ErrBadRequest{
	Err: errors.New("Unable to log in with provided credentials."),
}

// TokenPost exchanges a username and password for a token.
func (api *restAPI) TokenPost(ctx *context, in body) (interface{}, error) {
	username, _ := in["username"].(string)
	password, _ := in["password"].(string)
	expected, known := api.Schema.Users[username]
	if !known || expected != password {
		return nil, errBadCredentials
	}
	token := uuid.NewV4().String()
	api.mu.Lock()
	api.tokens[token] = username
	api.mu.Unlock()
	return restdata.TokenResponse{Token: token}, nil
}
