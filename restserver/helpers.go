// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains various HTTP-related helpers.  I sort of suspect
// most of them belong in some sort of standard library I haven't
// immediately found.

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/diffeo/go-orm/restdata"
	"github.com/gorilla/mux"
)

// baseURL reconstructs the scheme and host a request was sent to, so
// that every URL in a response is absolute.
func baseURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + req.Host
}

type urlBuilder struct {
	Router *mux.Router
	Base   string
	Params []string
	Error  error
}

func buildURLs(router *mux.Router, base string, params ...string) *urlBuilder {
	// Encode all of the values in params
	for i, value := range params {
		if i%2 == 1 {
			params[i] = restdata.MaybeEncodeName(value)
		}
	}
	return &urlBuilder{Router: router, Base: strings.TrimSuffix(base, "/"), Params: params}
}

func (u *urlBuilder) Route(route string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(route)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", route)
	}
	return r
}

// URL writes the absolute URL of a named route into out.
func (u *urlBuilder) URL(out *string, route string) *urlBuilder {
	r := u.Route(route)
	if u.Error == nil {
		url, err := r.URL(u.Params...)
		if err != nil {
			u.Error = err
		} else {
			*out = u.Base + url.String()
		}
	}
	return u
}

// With returns a builder with additional route parameters.
func (u *urlBuilder) With(params ...string) *urlBuilder {
	for i, value := range params {
		if i%2 == 1 {
			params[i] = restdata.MaybeEncodeName(value)
		}
	}
	return &urlBuilder{
		Router: u.Router,
		Base:   u.Base,
		Params: append(append([]string(nil), u.Params...), params...),
		Error:  u.Error,
	}
}
