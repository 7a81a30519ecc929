// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeClient serves resources out of a map, and counts every request.
type fakeClient struct {
	mu        sync.Mutex
	resources map[string]map[string]interface{}
	links     map[string]map[string]string
	downloads map[string][]byte
	fail      map[string]error
	requests  []string
	gets      map[string]int
	nextID    int
	cache     bool
	registry  *Registry
	logger    *logrus.Logger
	hook      *test.Hook
}

func newFakeClient() *fakeClient {
	logger, hook := test.NewNullLogger()
	return &fakeClient{
		resources: make(map[string]map[string]interface{}),
		links:     make(map[string]map[string]string),
		downloads: make(map[string][]byte),
		fail:      make(map[string]error),
		gets:      make(map[string]int),
		registry:  NewRegistry(),
		logger:    logger,
		hook:      hook,
	}
}

const fakeRoot = "http://api.test/"

// add stores a resource; the map is copied.
func (c *fakeClient) add(url string, fields map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["url"] = url
	c.resources[url] = data
}

func (c *fakeClient) etag(url string) string {
	body, _ := restdata.EncodeBody(c.resources[url])
	return fmt.Sprintf("\"%x\"", len(body))
}

func (c *fakeClient) count(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets[url]
}

func (c *fakeClient) log(method, url string) error {
	c.requests = append(c.requests, method+" "+url)
	return c.fail[url]
}

func (c *fakeClient) response(url string) *restdata.Response {
	body, _ := restdata.EncodeBody(c.resources[url])
	links := map[string]string{"self": url}
	for relation, link := range c.links[url] {
		links[relation] = link
	}
	header := http.Header{}
	header.Set("Content-Type", restdata.JSONMediaType)
	header.Set("ETag", c.etag(url))
	header.Set("Link", restdata.FormatLinks(links))
	return &restdata.Response{
		Method:     "GET",
		URL:        url,
		FinalURL:   url,
		StatusCode: http.StatusOK,
		Reason:     "OK",
		Header:     header,
		Body:       body,
	}
}

func (c *fakeClient) notFound(method, url string) error {
	return &ResponseStatusError{
		Method:   method,
		URL:      url,
		Code:     http.StatusNotFound,
		Reason:   "Not Found",
		Expected: []int{http.StatusOK},
		Detail:   "Not found.",
	}
}

func (c *fakeClient) RetrieveResource(ctx context.Context, url string, header http.Header) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets[url]++
	if err := c.log("GET", url); err != nil {
		return nil, err
	}
	if _, ok := c.resources[url]; !ok {
		return nil, c.notFound("GET", url)
	}
	if header != nil && header.Get("If-None-Match") == c.etag(url) {
		c.requests[len(c.requests)-1] += " conditional"
		return nil, nil
	}
	return FromResponse(c, c.response(url))
}

func (c *fakeClient) Retrieve(ctx context.Context, url, id string, query map[string]string) (interface{}, error) {
	if id != "" {
		return c.RetrieveResource(ctx, url+id+"/", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log("GET", url); err != nil {
		return nil, err
	}
	var urls []string
	for u := range c.resources {
		if strings.HasPrefix(u, url) && u != url {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	var items []*Resource
	for _, u := range urls {
		match := true
		for k, v := range query {
			if valueString(c.resources[u][k]) != v {
				match = false
			}
		}
		if match {
			items = append(items, newResource(c, Fields(c.resources[u])))
		}
	}
	return NewCollection(c, url, items), nil
}

func (c *fakeClient) store(method, url string, fields Fields, partial bool) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log(method, url); err != nil {
		return nil, err
	}
	existing, ok := c.resources[url]
	if !ok {
		return nil, c.notFound(method, url)
	}
	data := SerializeFields(fields)
	if partial {
		for k, v := range existing {
			if _, ok := data[k]; !ok {
				data[k] = v
			}
		}
	}
	data["url"] = url
	c.resources[url] = data
	return newResource(c, Fields(data)), nil
}

func (c *fakeClient) Create(ctx context.Context, url string, fields Fields) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log("POST", url); err != nil {
		return nil, err
	}
	c.nextID++
	data := SerializeFields(fields)
	data["url"] = fmt.Sprintf("%s%d/", url, c.nextID)
	c.resources[data["url"].(string)] = data
	return newResource(c, Fields(data)), nil
}

func (c *fakeClient) Update(ctx context.Context, url string, fields Fields) (*Resource, error) {
	return c.store("PUT", url, fields, false)
}

func (c *fakeClient) PartialUpdate(ctx context.Context, url string, fields Fields) (*Resource, error) {
	return c.store("PATCH", url, fields, true)
}

func (c *fakeClient) Destroy(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log("DELETE", url); err != nil {
		return err
	}
	if _, ok := c.resources[url]; !ok {
		return c.notFound("DELETE", url)
	}
	delete(c.resources, url)
	return nil
}

func (c *fakeClient) Action(ctx context.Context, url string, fields Fields) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log("POST", url); err != nil {
		return nil, err
	}
	return newResource(c, Fields{"status": "accepted"}), nil
}

func (c *fakeClient) Download(ctx context.Context, url string) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log("GET", url); err != nil {
		return nil, "", err
	}
	content, ok := c.downloads[url]
	if !ok {
		return nil, "", c.notFound("GET", url)
	}
	return content, url, nil
}

// raw answers a raw request with the stored resource, if any.
func (c *fakeClient) raw(method, url string) (*restdata.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.log(method, url); err != nil {
		return nil, err
	}
	if _, ok := c.resources[url]; !ok {
		return &restdata.Response{
			Method:     method,
			URL:        url,
			StatusCode: http.StatusNotFound,
			Reason:     "Not Found",
			Header:     http.Header{},
		}, nil
	}
	resp := c.response(url)
	resp.Method = method
	return resp, nil
}

func (c *fakeClient) Get(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return c.raw("GET", url)
}

func (c *fakeClient) Head(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return c.raw("HEAD", url)
}

func (c *fakeClient) Post(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return c.raw("POST", url)
}

func (c *fakeClient) Put(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return c.raw("PUT", url)
}

func (c *fakeClient) Patch(ctx context.Context, url string, body interface{}, header http.Header) (*restdata.Response, error) {
	return c.raw("PATCH", url)
}

func (c *fakeClient) Delete(ctx context.Context, url string, header http.Header) (*restdata.Response, error) {
	return c.raw("DELETE", url)
}

func (c *fakeClient) Manager(ctx context.Context, name string) (*Manager, error) {
	return NewManager(fakeRoot+name+"/", restdata.Singular(name)+"-list", c), nil
}

func (c *fakeClient) CacheEnabled() bool {
	return c.cache
}

func (c *fakeClient) Concurrency() int {
	return 4
}

func (c *fakeClient) Registry() *Registry {
	return c.registry
}

func (c *fakeClient) Logger() logrus.FieldLogger {
	return c.logger
}
