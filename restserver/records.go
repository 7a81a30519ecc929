// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/diffeo/go-orm/restdata"
	"github.com/diffeo/go-orm/store"
	"github.com/gorilla/mux"
)

// recordURL builds the absolute URL of a record.
func (api *restAPI) recordURL(ctx *context, kind, id string) (string, error) {
	var out string
	err := buildURLs(api.Router, ctx.Base, "kind", kind, "id", id).
		URL(&out, "detail").
		Error
	return out, err
}

// resolveURL finds the kind and identifier named by a record URL.
func (api *restAPI) resolveURL(raw string) (kind, id string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	req := &http.Request{Method: "GET", URL: u, Host: u.Host, Header: http.Header{}}
	var match mux.RouteMatch
	if !api.Router.Match(req, &match) || match.Route == nil || match.Route.GetName() != "detail" {
		return "", "", false
	}
	if kind, err = restdata.MaybeDecodeName(match.Vars["kind"]); err != nil {
		return "", "", false
	}
	if id, err = restdata.MaybeDecodeName(match.Vars["id"]); err != nil {
		return "", "", false
	}
	return kind, id, true
}

// represent produces the wire form of a record: its stored data, its
// own URL, and a list of URLs for each kind that refers back to it.
func (api *restAPI) represent(ctx *context, kind Kind, record store.Record) (map[string]interface{}, error) {
	out := store.CopyData(record.Data)
	self, err := api.recordURL(ctx, kind.Name, record.ID)
	if err != nil {
		return nil, err
	}
	out["url"] = self

	for _, rr := range api.Schema.referencedBy(kind.Name) {
		if _, taken := record.Data[rr.Kind.Name]; taken {
			continue
		}
		referrers, err := api.Store.List(rr.Kind.Name)
		if err != nil {
			return nil, err
		}
		urls, _ := out[rr.Kind.Name].([]interface{})
		if urls == nil {
			urls = []interface{}{}
		}
		for _, referrer := range referrers {
			if !refersTo(referrer.Data[rr.Field], self) {
				continue
			}
			link, err := api.recordURL(ctx, rr.Kind.Name, referrer.ID)
			if err != nil {
				return nil, err
			}
			if !containsValue(urls, link) {
				urls = append(urls, link)
			}
		}
		out[rr.Kind.Name] = urls
	}
	return out, nil
}

func refersTo(value interface{}, target string) bool {
	switch v := value.(type) {
	case string:
		return v == target
	case []interface{}:
		return containsValue(v, target)
	}
	return false
}

func containsValue(list []interface{}, target string) bool {
	for _, item := range list {
		if s, ok := item.(string); ok && s == target {
			return true
		}
	}
	return false
}

// detailLinks builds the Link: header for a single record.
func (api *restAPI) detailLinks(ctx *context, kind Kind, id string) (http.Header, error) {
	links := make(map[string]string)
	var list string
	b := buildURLs(api.Router, ctx.Base, "kind", kind.Name).URL(&list, "collection")
	links[kind.SingularName()+"-list"] = list
	if b.Error != nil {
		return nil, b.Error
	}
	for _, action := range kind.Actions {
		var target string
		if err := b.With("id", id, "action", action).URL(&target, "action").Error; err != nil {
			return nil, err
		}
		links[kind.SingularName()+"-"+action] = target
	}
	return http.Header{"Link": []string{restdata.FormatLinks(links)}}, nil
}

func (api *restAPI) detail(ctx *context, kind Kind, record store.Record, status int) (interface{}, error) {
	out, err := api.represent(ctx, kind, record)
	if err != nil {
		return nil, err
	}
	header, err := api.detailLinks(ctx, kind, record.ID)
	if err != nil {
		return nil, err
	}
	return response{Status: status, Header: header, Body: out}, nil
}

// cleanInput removes server-computed fields from a request body and
// checks the rest against the kind's rules.
func (api *restAPI) cleanInput(kind Kind, in body, partial bool) (map[string]interface{}, error) {
	data := make(map[string]interface{}, len(in))
	for k, v := range in {
		data[k] = v
	}
	delete(data, "url")
	for _, rr := range api.Schema.referencedBy(kind.Name) {
		delete(data, rr.Kind.Name)
	}

	if !partial {
		for _, field := range kind.Required {
			value, present := data[field]
			if !present || value == nil || value == "" {
				return nil, restdata.ErrBadRequest{Err: fmt.Errorf("%v: This field is required.", field)}
			}
		}
	}

	for field, target := range kind.References {
		value, present := data[field]
		if !present || value == nil {
			continue
		}
		var links []interface{}
		switch v := value.(type) {
		case string:
			links = []interface{}{v}
		case []interface{}:
			links = v
		default:
			return nil, restdata.ErrBadRequest{Err: fmt.Errorf("%v: Incorrect type. Expected URL string.", field)}
		}
		for _, link := range links {
			if !api.exists(link, target) {
				return nil, restdata.ErrBadRequest{Err: fmt.Errorf("%v: Invalid hyperlink - Object does not exist.", field)}
			}
		}
	}
	return data, nil
}

// exists checks that a reference value is the URL of an existing
// record of the target kind.
func (api *restAPI) exists(link interface{}, target string) bool {
	s, ok := link.(string)
	if !ok {
		return false
	}
	kind, id, ok := api.resolveURL(s)
	if !ok || kind != target {
		return false
	}
	_, err := api.Store.Get(kind, id)
	return err == nil
}

// CollectionGet lists the records of a kind.  Query parameters filter
// on exact field values.
func (api *restAPI) CollectionGet(ctx *context) (interface{}, error) {
	records, err := api.Store.List(ctx.Kind.Name)
	if err != nil {
		return nil, err
	}
	result := []interface{}{}
	for _, record := range records {
		if !matchesQuery(record.Data, ctx.QueryParams) {
			continue
		}
		out, err := api.represent(ctx, ctx.Kind, record)
		if err != nil {
			return nil, err
		}
		result = append(result, out)
	}
	return result, nil
}

func matchesQuery(data map[string]interface{}, query url.Values) bool {
	for field, wanted := range query {
		value := ""
		if v, present := data[field]; present && v != nil {
			value = fmt.Sprint(v)
		}
		if len(wanted) == 0 || value != wanted[len(wanted)-1] {
			return false
		}
	}
	return true
}

// CollectionPost creates a new record.
func (api *restAPI) CollectionPost(ctx *context, in body) (interface{}, error) {
	data, err := api.cleanInput(ctx.Kind, in, false)
	if err != nil {
		return nil, err
	}
	record, err := api.Store.Create(ctx.Kind.Name, data)
	if err != nil {
		return nil, err
	}
	out, err := api.represent(ctx, ctx.Kind, record)
	if err != nil {
		return nil, err
	}
	return responseCreated{
		Location: out["url"].(string),
		Body:     out,
	}, nil
}

// DetailGet returns a single record.
func (api *restAPI) DetailGet(ctx *context) (interface{}, error) {
	return api.detail(ctx, ctx.Kind, *ctx.Record, http.StatusOK)
}

// DetailPut replaces a record's data.
func (api *restAPI) DetailPut(ctx *context, in body) (interface{}, error) {
	return api.update(ctx, in, false)
}

// DetailPatch changes some of a record's fields.
func (api *restAPI) DetailPatch(ctx *context, in body) (interface{}, error) {
	return api.update(ctx, in, true)
}

func (api *restAPI) update(ctx *context, in body, partial bool) (interface{}, error) {
	data, err := api.cleanInput(ctx.Kind, in, partial)
	if err != nil {
		return nil, err
	}
	record, err := api.Store.Update(ctx.Kind.Name, ctx.Record.ID, data, partial)
	if err != nil {
		return nil, err
	}
	return api.detail(ctx, ctx.Kind, record, http.StatusOK)
}

// DetailDelete removes a record.
func (api *restAPI) DetailDelete(ctx *context) (interface{}, error) {
	return nil, api.Store.Delete(ctx.Kind.Name, ctx.Record.ID)
}

// ActionPost accepts a named action on a record.  Actions have no
// effect on the stored data.
func (api *restAPI) ActionPost(ctx *context, in body) (interface{}, error) {
	return response{
		Status: http.StatusAccepted,
		Body: map[string]interface{}{
			"detail": fmt.Sprintf("%v accepted", ctx.Action),
		},
	}, nil
}
