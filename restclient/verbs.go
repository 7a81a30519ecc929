// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"context"
	"net/http"

	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restdata"
)

// Get performs an HTTP GET.
func (api *API) Get(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodGet, url, nil, header)
}

// Head performs an HTTP HEAD.
func (api *API) Head(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodHead, url, nil, header)
}

// Post performs an HTTP POST with a JSON body.
func (api *API) Post(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodPost, url, body, header)
}

// Put performs an HTTP PUT with a JSON body.
func (api *API) Put(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodPut, url, body, header)
}

// Patch performs an HTTP PATCH with a JSON body.
func (api *API) Patch(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodPatch, url, body, header)
}

// Delete performs an HTTP DELETE.
func (api *API) Delete(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return api.request(ctx, http.MethodDelete, url, nil, header)
}

// resource turns a response into a resource, after checking its
// status.
func (api *API) resource(resp *restdata.Response, expected ...int) (*orm.Resource, error) {
	if err := ValidateResponse(resp, expected...); err != nil {
		return nil, err
	}
	return orm.FromResponse(api, resp)
}

// Create posts a new resource to a collection endpoint.
func (api *API) Create(ctx context.Context, url string, fields orm.Fields) (*orm.Resource, error) {
	resp, err := api.Post(ctx, url, orm.SerializeFields(fields), nil)
	if err != nil {
		return nil, err
	}
	return api.resource(resp, http.StatusCreated)
}

// RetrieveResource fetches a single resource.  It returns nil with no
// error if header carried an entity tag and the server answered "not
// modified".
func (api *API) RetrieveResource(ctx context.Context, url string, header http.Header) (*orm.Resource, error) {
	resp, err := api.Get(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	return api.resource(resp, http.StatusOK)
}

// Retrieve fetches an endpoint.  A non-empty id names one resource
// under url, and query holds server-side filters.  A list response
// becomes an *orm.Collection and an object response an
// *orm.Resource.
func (api *API) Retrieve(ctx context.Context, url, id string, query map[string]string) (interface{}, error) {
	target, err := expand(url, id, query)
	if err != nil {
		return nil, err
	}
	resp, err := api.Get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if err := ValidateResponse(resp, http.StatusOK); err != nil {
		return nil, err
	}
	content, err := resp.Fields()
	if err != nil {
		return nil, err
	}
	if list, ok := content.([]interface{}); ok {
		items := make([]*orm.Resource, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, orm.ErrUnexpectedContent{URL: target, Expected: "a list of objects"}
			}
			items = append(items, orm.NewResource(api, orm.Fields(obj)))
		}
		return orm.NewCollection(api, target, items), nil
	}
	return orm.FromResponse(api, resp)
}

// Update replaces a resource.
func (api *API) Update(ctx context.Context, url string, fields orm.Fields) (*orm.Resource, error) {
	resp, err := api.Put(ctx, url, orm.SerializeFields(fields), nil)
	if err != nil {
		return nil, err
	}
	return api.resource(resp, http.StatusOK)
}

// PartialUpdate changes some fields of a resource.
func (api *API) PartialUpdate(ctx context.Context, url string, fields orm.Fields) (*orm.Resource, error) {
	resp, err := api.Patch(ctx, url, orm.SerializeFields(fields), nil)
	if err != nil {
		return nil, err
	}
	return api.resource(resp, http.StatusOK)
}

// Destroy deletes a resource.
func (api *API) Destroy(ctx context.Context, url string) error {
	resp, err := api.Delete(ctx, url, nil)
	if err != nil {
		return err
	}
	return ValidateResponse(resp, http.StatusNoContent)
}

// Action posts to an action endpoint.
func (api *API) Action(ctx context.Context, url string, fields orm.Fields) (*orm.Resource, error) {
	resp, err := api.Post(ctx, url, orm.SerializeFields(fields), nil)
	if err != nil {
		return nil, err
	}
	return api.resource(resp, http.StatusOK, http.StatusCreated, http.StatusAccepted)
}

// Download fetches raw content.  It returns the body and the URL it
// was finally served from, after redirects.
func (api *API) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := api.Get(ctx, url, http.Header{"Accept": []string{"*/*"}})
	if err != nil {
		return nil, "", err
	}
	if err := ValidateResponse(resp, http.StatusOK); err != nil {
		return nil, "", err
	}
	return resp.Body, resp.FinalURL, nil
}
