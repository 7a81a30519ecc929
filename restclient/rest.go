// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides the generic request engine every operation goes
// through.

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/diffeo/go-orm/cache"
	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restdata"
	"github.com/jtacoma/uritemplates"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// headers builds the request headers: the client defaults, then any
// extra headers on top.
func (api *API) headers(extra http.Header, hasBody bool) http.Header {
	header := http.Header{}
	header.Set("Accept", restdata.JSONMediaType)
	if hasBody {
		header.Set("Content-Type", api.contentType)
	}
	api.mu.Lock()
	if api.authorization != "" {
		header.Set("Authorization", api.authorization)
	}
	api.mu.Unlock()
	for key, values := range extra {
		header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	return header
}

// request performs one HTTP request.  body, if non-nil, is encoded as
// JSON.  GET and HEAD requests are answered from the cache when
// possible, and other successful requests invalidate cached responses
// they may have changed.  The response is returned whatever its
// status code; callers check it with ValidateResponse().
func (api *API) request(ctx context.Context, method, url string, body interface{}, extra http.Header) (*restdata.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = restdata.EncodeBody(body)
		if err != nil {
			return nil, err
		}
	}
	header := api.headers(extra, body != nil)

	ctx, span := api.tracer.Start(ctx, "orm "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
	defer span.End()

	logger := api.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    url,
	})
	logger.Info("REQUEST")
	if body != nil {
		logger.WithField("body", string(payload)).Debug("request body")
	}
	api.stats.add(method)

	var (
		resp *restdata.Response
		err  error
	)
	if api.cache != nil && (method == http.MethodGet || method == http.MethodHead) {
		resp, err = api.cachedRequest(ctx, method, url, header)
	} else {
		resp, err = api.send(ctx, method, url, payload, header)
		if err == nil && api.cache != nil && isSuccess(resp.StatusCode) {
			api.invalidate(url)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Warn("request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Reason)
	}
	logger.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"reason": resp.Reason,
	}).Debug("RESPONSE")
	logger.WithField("headers", resp.Header).Debug("response headers")
	return resp, nil
}

// cachedRequest answers a GET or HEAD request from the cache.  A miss
// fetches and stores the response; an invalidated entry is checked
// with a conditional request.  Identical requests in flight at once
// share one round trip.
func (api *API) cachedRequest(ctx context.Context, method, url string, header http.Header) (*restdata.Response, error) {
	key := cache.Key(method, url, header)
	entry, found := api.cache.Get(key)
	if found && entry.Valid {
		return entry.Response, nil
	}
	result, err, _ := api.flight.Do(key, func() (interface{}, error) {
		conditional := http.Header{}
		for k, v := range header {
			conditional[k] = v
		}
		if found {
			if etag := entry.Response.ETag(); etag != "" {
				conditional.Set("If-None-Match", etag)
			}
		}
		resp, err := api.send(ctx, method, url, nil, conditional)
		if err != nil {
			return nil, err
		}
		switch {
		case found && resp.StatusCode == http.StatusNotModified:
			api.cache.Revalidate(key)
			return entry.Response, nil
		case isSuccess(resp.StatusCode):
			api.cache.Put(key, url, resp)
		case found:
			api.cache.Remove(url)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*restdata.Response), nil
}

// send makes the actual round trip, retrying errors that happen
// before any response arrives.
func (api *API) send(ctx context.Context, method, url string, payload []byte, header http.Header) (*restdata.Response, error) {
	if header.Get("If-None-Match") != "" {
		api.stats.add("conditional")
	}
	var (
		resp     *restdata.Response
		attempts int
	)
	operation := func() error {
		if attempts > 0 {
			api.stats.add("retries")
		}
		attempts++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		for key, values := range header {
			req.Header[key] = values
		}
		httpResp, err := api.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()
		data, err := ioutil.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}
		resp = restdata.NewResponse(method, url, httpResp, data)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(api.retries)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// invalidate marks stale every cached response for a URL that was
// just written, and for the collections above it.
func (api *API) invalidate(target string) {
	stale := make(map[string]bool)
	for _, u := range restdata.Ancestors(target) {
		stale[u] = true
	}
	n := api.cache.InvalidateMatching(func(u string) bool {
		return stale[restdata.StripQuery(u)]
	})
	api.logger.WithFields(logrus.Fields{
		"url":     target,
		"entries": n,
	}).Debug("invalidated cached responses")
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// expand builds a URL from a base, an optional identifier, and query
// parameters, using a URI template so that every value is escaped
// correctly.  Parameters appear in sorted order.
func expand(base, id string, query map[string]string) (string, error) {
	template := base
	vars := make(map[string]interface{})
	if id != "" {
		if !strings.HasSuffix(template, "/") {
			template += "/"
		}
		template += "{id}/"
		vars["id"] = restdata.MaybeEncodeName(id)
	}
	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for name, value := range query {
			names = append(names, name)
			vars[name] = value
		}
		sort.Strings(names)
		template += "{?" + strings.Join(names, ",") + "}"
	}
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return "", err
	}
	return tmpl.Expand(vars)
}

// ValidateResponse checks that a response has one of the expected
// status codes.  If not, it returns an *orm.ResponseStatusError whose
// detail is the server's "detail" field, the whole decoded body if
// there is no such field, or the start of the raw body if it does not
// decode at all.
func ValidateResponse(resp *restdata.Response, expected ...int) error {
	for _, code := range expected {
		if resp.StatusCode == code {
			return nil
		}
	}
	return &orm.ResponseStatusError{
		Method:   resp.Method,
		URL:      resp.URL,
		Code:     resp.StatusCode,
		Reason:   resp.Reason,
		Expected: expected,
		Detail:   responseDetail(resp),
	}
}

func responseDetail(resp *restdata.Response) interface{} {
	content, err := resp.Fields()
	if err == nil {
		if obj, ok := content.(map[string]interface{}); ok {
			if detail, ok := obj["detail"]; ok {
				return detail
			}
			if len(obj) == 0 {
				return ""
			}
		}
		return content
	}
	body := resp.Body
	if len(body) > 200 {
		return string(body[:200]) + "[...]"
	}
	return string(body)
}
