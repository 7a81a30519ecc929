// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/diffeo/go-orm/restserver"
	"github.com/diffeo/go-orm/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"
)

// HTTP serves the REST API.
type HTTP struct {
	Store       store.Store
	Schema      restserver.Schema
	LogRequests bool
}

// Handler builds the complete HTTP handler: metrics, the REST API,
// and middleware around both.
func (h *HTTP) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	restserver.PopulateRouter(r, h.Store, h.Schema)

	n := negroni.New(negroni.NewRecovery())
	if h.LogRequests {
		n.Use(negroni.NewLogger())
	}
	n.UseHandler(r)
	return n
}

// Serve runs an HTTP server on the specified local address.  This
// serves connections forever, returning only on a setup or accept
// error.
func (h *HTTP) Serve(laddr string) error {
	return http.ListenAndServe(laddr, h.Handler())
}
