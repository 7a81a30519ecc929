// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-orm/restdata"
	"github.com/diffeo/go-orm/store"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if a request body is not a JSON object.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// context holds all of the information and objects that can be extracted
// from URL parameters.
type context struct {
	// Base is the scheme and host the request was sent to.
	Base string

	// Kind is the kind named in the URL, if any.
	Kind Kind

	// Record is the record named in the URL, if any.
	Record *store.Record

	// Action is the action named in the URL, if any.
	Action string

	// User is the name of the authenticated user, if any.
	User string

	QueryParams url.Values
}

func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{
		Base:        baseURL(req),
		QueryParams: req.URL.Query(),
	}
	vars := mux.Vars(req)

	var present bool
	var kind, id, action string

	if kind, present = vars["kind"]; present && err == nil {
		kind, err = restdata.MaybeDecodeName(kind)
		if err == nil {
			var known bool
			ctx.Kind, known = api.Schema.Kind(kind)
			if !known {
				err = restdata.ErrNotFound{Err: fmt.Errorf("No such kind %q", kind)}
			}
		}
	}

	if id, present = vars["id"]; present && err == nil {
		id, err = restdata.MaybeDecodeName(id)
		if err == nil {
			var record store.Record
			record, err = api.Store.Get(ctx.Kind.Name, id)
			if err == nil {
				ctx.Record = &record
			}
		}
		if _, missing := err.(store.ErrNoSuchRecord); missing {
			err = restdata.ErrNotFound{Err: err}
		}
	}

	if action, present = vars["action"]; present && err == nil {
		action, err = restdata.MaybeDecodeName(action)
		if err == nil && !ctx.Kind.HasAction(action) {
			err = restdata.ErrNotFound{Err: fmt.Errorf("No action %q for %v", action, ctx.Kind.Name)}
		}
		ctx.Action = action
	}

	if err == nil {
		ctx.User, err = api.authenticate(req)
	}
	return
}

// authenticate checks the token on a request that changes data, if
// the server has users at all.
func (api *restAPI) authenticate(req *http.Request) (string, error) {
	if len(api.Schema.Users) == 0 {
		return "", nil
	}
	if route := mux.CurrentRoute(req); route != nil && route.GetName() == "token" {
		return "", nil
	}
	token := strings.TrimPrefix(req.Header.Get("Authorization"), "Token ")
	api.mu.Lock()
	user, valid := api.tokens[token]
	api.mu.Unlock()
	switch req.Method {
	case "GET", "HEAD":
		return user, nil
	}
	if token == "" {
		return "", restdata.ErrUnauthorized{}
	}
	if !valid {
		return "", restdata.ErrUnauthorized{Reason: "Invalid token."}
	}
	return user, nil
}
