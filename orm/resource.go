// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/diffeo/go-orm/restdata"
	"github.com/mitchellh/mapstructure"
)

// LookupState describes the outcome of Resource.TryGet().
type LookupState int

const (
	// Unknown means the field does not exist, and fetching the
	// resource would not help.
	Unknown LookupState = iota

	// Found means the field exists locally.
	Found

	// Pending means the field does not exist locally, but the
	// resource has not been fully retrieved yet, so it may
	// exist on the server.
	Pending
)

func (s LookupState) String() string {
	switch s {
	case Found:
		return "found"
	case Pending:
		return "pending"
	}
	return "unknown"
}

// Resource is a single remote entity.  It may be bound, meaning it
// has a Client it can use to talk to the server, or unbound, if it
// was constructed locally and has not been attached to a Manager
// yet.
type Resource struct {
	url       string
	fields    Fields
	managers  map[string]*Manager
	files     map[string]*FileHandler
	headers   http.Header
	retrieved bool
	client    Client
	manager   *Manager
}

// NewResource creates a resource from raw field data.  client may be
// nil to create an unbound resource, which can later be attached to
// an endpoint with Bind().  Keys beginning with an underscore are
// ignored; the "url" key, if a string, becomes the resource's URL.
func NewResource(client Client, fields Fields) *Resource {
	return newResource(client, fields)
}

func newResource(client Client, fields Fields) *Resource {
	r := &Resource{
		fields:  Fields{},
		headers: http.Header{},
		client:  client,
	}
	for name, value := range fields {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if name == "url" {
			if s, ok := value.(string); ok {
				r.url = s
			}
			continue
		}
		r.fields[name] = promote(client, r, name, value)
	}
	r.setFileHandlers()
	return r
}

// newReference creates an unretrieved resource that knows only its
// URL.
func newReference(client Client, url string) *Resource {
	return &Resource{
		url:     url,
		fields:  Fields{},
		headers: http.Header{},
		client:  client,
	}
}

// NewReference creates an unretrieved resource that knows only its
// URL.  Looking up any field fetches it.
func NewReference(client Client, url string) *Resource {
	return newReference(client, url)
}

// FromResponse creates a resource from a server response.  The
// response body must be a JSON object.  The resource is considered
// fully retrieved if the response carried a Link: header, and every
// link relation in it becomes a Manager.
func FromResponse(client Client, resp *restdata.Response) (*Resource, error) {
	content, err := resp.Fields()
	if err != nil {
		return nil, err
	}
	fields, ok := content.(map[string]interface{})
	if !ok {
		return nil, ErrUnexpectedContent{URL: resp.URL, Expected: "an object"}
	}
	r := newResource(client, Fields(fields))
	for key, values := range resp.Header {
		r.headers[key] = append([]string(nil), values...)
	}
	r.retrieved = resp.HasLinks()
	r.processLinks()
	return r, nil
}

// URL returns the resource's own URL, or an empty string for a
// resource that has not been saved.
func (r *Resource) URL() string {
	return r.url
}

// Client returns the API client the resource is bound to, or nil.
func (r *Resource) Client() Client {
	return r.client
}

// BoundTo returns the manager the resource was bound to with Bind(),
// or nil.
func (r *Resource) BoundTo() *Manager {
	return r.manager
}

// Headers returns the response headers accumulated by this resource.
func (r *Resource) Headers() http.Header {
	return r.headers
}

// Retrieved is true once the full representation of the resource
// has been loaded.
func (r *Resource) Retrieved() bool {
	return r.retrieved
}

// Reset forgets that the resource was retrieved, so the next lookup
// of a missing field fetches it again.
func (r *Resource) Reset() {
	r.retrieved = false
}

// Keys returns the names of the resource's fields, sorted.
func (r *Resource) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for key := range r.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns a shallow copy of the resource's field data.
func (r *Resource) Fields() Fields {
	out := make(Fields, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// TryGet looks up a field without talking to the server.  Managers
// from link relations and file handlers are found as well as plain
// fields.
func (r *Resource) TryGet(name string) (interface{}, LookupState) {
	if name == "url" {
		if r.url != "" {
			return r.url, Found
		}
		return nil, Unknown
	}
	if value, ok := r.fields[name]; ok {
		return value, Found
	}
	if manager, ok := r.managers[name]; ok {
		return manager, Found
	}
	if handler, ok := r.files[name]; ok {
		return handler, Found
	}
	if r.client != nil && r.url != "" && !r.retrieved && !strings.HasPrefix(name, "_") {
		return nil, Pending
	}
	return nil, Unknown
}

// Get looks up a field.  If it is not present locally and the
// resource has not been fully retrieved, retrieves it and tries
// again.
func (r *Resource) Get(ctx context.Context, name string) (interface{}, error) {
	value, state := r.TryGet(name)
	if state == Pending {
		err := r.Retrieve(ctx, true)
		if err != nil {
			return nil, err
		}
		value, state = r.TryGet(name)
	}
	if state != Found {
		return nil, ErrAttributeNotFound{Name: name, URL: r.url}
	}
	return value, nil
}

// Set changes a field locally.  Setting "url" changes the resource's
// URL.
func (r *Resource) Set(name string, value interface{}) {
	if name == "url" {
		r.url, _ = value.(string)
		return
	}
	r.fields[name] = value
}

// Manager returns a manager attached from a link relation.
func (r *Resource) Manager(name string) (*Manager, bool) {
	m, ok := r.managers[name]
	return m, ok
}

// Managers returns the names of every attached manager, sorted.
func (r *Resource) Managers() []string {
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File returns a file handler for a pair of "name_url" and
// "name_sha256" fields.
func (r *Resource) File(name string) (*FileHandler, bool) {
	h, ok := r.files[name]
	return h, ok
}

// Links returns every link relation in the resource's headers.
func (r *Resource) Links() map[string]string {
	links := make(map[string]string)
	for _, header := range r.headers["Link"] {
		for relation, link := range restdata.ParseLinks(header) {
			links[relation] = link
		}
	}
	return links
}

// processLinks attaches a Manager for every link relation, unless a
// field of the same name exists.
func (r *Resource) processLinks() {
	for relation, link := range r.Links() {
		name := restdata.RelationName(relation)
		if name == "" {
			continue
		}
		if _, exists := r.fields[name]; exists {
			continue
		}
		if _, exists := r.managers[name]; exists {
			continue
		}
		if r.managers == nil {
			r.managers = make(map[string]*Manager)
		}
		r.managers[name] = NewManager(link, relation, r.client)
	}
}

// setFileHandlers attaches a FileHandler for every pair of fields
// "X_url" and "X_sha256".
func (r *Resource) setFileHandlers() {
	for name := range r.fields {
		if !strings.HasSuffix(name, "_url") {
			continue
		}
		base := strings.TrimSuffix(name, "_url")
		if _, ok := r.fields[base+"_sha256"]; !ok {
			continue
		}
		if _, ok := r.files[base]; ok {
			continue
		}
		if r.files == nil {
			r.files = make(map[string]*FileHandler)
		}
		r.files[base] = newFileHandler(r, base)
	}
}

// Merge copies another resource's state into this one.  Every field
// of other overwrites the same field here, response headers are
// combined, and if other was fully retrieved so is this.  Merging
// never makes a retrieved resource unretrieved.
func (r *Resource) Merge(other *Resource) {
	if other == nil || other == r {
		return
	}
	for name, value := range other.fields {
		if c, ok := value.(*Collection); ok && c.kind == relatedCollection && c.parent == other {
			value = c.reparent(r)
		}
		r.fields[name] = value
	}
	if other.url != "" {
		r.url = other.url
	}
	r.setFileHandlers()
	if r.headers == nil {
		r.headers = http.Header{}
	}
	for key, values := range other.headers {
		r.headers[key] = append([]string(nil), values...)
	}
	if !r.retrieved {
		r.retrieved = other.retrieved
	}
}

// Retrieve fetches the current representation of the resource and
// merges it in.  If conditional is true, the resource was already
// retrieved, and the client does not cache responses itself, the
// request carries the last known entity tag so the server can
// answer "not modified".  Either way the resource is fully
// retrieved afterwards.
func (r *Resource) Retrieve(ctx context.Context, conditional bool) error {
	if r.client == nil || r.url == "" {
		return ErrUnboundResource
	}
	header := http.Header{}
	if conditional && r.retrieved && !r.client.CacheEnabled() {
		if etag := restdata.StripETag(r.headers.Get("ETag")); etag != "" {
			header.Set("If-None-Match", etag)
		}
	}
	fresh, err := r.client.RetrieveResource(ctx, r.url, header)
	if err != nil {
		return err
	}
	if fresh != nil {
		r.Merge(fresh)
		r.processLinks()
	}
	r.retrieved = true
	return nil
}

// Save stores the resource on the server: a full update if it has a
// URL, or a create through its bound Manager if not.  The server's
// response is merged back in.
func (r *Resource) Save(ctx context.Context) error {
	if r.client == nil {
		return ErrUnboundResource
	}
	var (
		fresh *Resource
		err   error
	)
	switch {
	case r.url != "":
		fresh, err = r.client.Update(ctx, r.url, Fields(r.Serialize()))
	case r.manager != nil:
		fresh, err = r.manager.Create(ctx, Fields(r.Serialize()))
	default:
		return ErrUnboundResource
	}
	if err != nil {
		return err
	}
	r.Merge(fresh)
	return nil
}

// Update changes some fields of the resource on the server, and
// merges the server's response back in.
func (r *Resource) Update(ctx context.Context, fields Fields) error {
	if r.client == nil || r.url == "" {
		return ErrUnboundResource
	}
	fresh, err := r.client.PartialUpdate(ctx, r.url, fields)
	if err != nil {
		return err
	}
	r.Merge(fresh)
	return nil
}

// Delete deletes the resource on the server.  The resource should not
// be used afterwards.
func (r *Resource) Delete(ctx context.Context) error {
	if r.client == nil || r.url == "" {
		return ErrUnboundResource
	}
	return r.client.Destroy(ctx, r.url)
}

// Bind attaches a locally constructed resource to an endpoint, so
// that Save() creates it there.
func (r *Resource) Bind(m *Manager) {
	r.client = m.client
	r.manager = m
}

// Serialize produces the plain field data of the resource, including
// its URL if it has one.  Nested resources that have URLs are
// replaced by their URLs.
func (r *Resource) Serialize() map[string]interface{} {
	data := make(map[string]interface{}, len(r.fields)+1)
	if r.url != "" {
		data["url"] = r.url
	}
	for name, value := range r.fields {
		data[name] = SerializeValue(value)
	}
	return data
}

// SerializeNested produces the resource's URL if it has one, or its
// full field data if not.
func (r *Resource) SerializeNested() interface{} {
	if r.url != "" {
		return r.url
	}
	return r.Serialize()
}

// String renders the resource as JSON.
func (r *Resource) String() string {
	body, err := restdata.EncodeBody(r.Serialize())
	if err != nil {
		return "<resource " + r.url + ">"
	}
	return string(body)
}

// Equal compares two resources.  Resources that both have URLs are
// equal if the URLs are; otherwise they are equal if they are bound
// to the same endpoint and have the same field data.
func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r == other {
		return true
	}
	if r.url != "" && other.url != "" {
		return r.url == other.url
	}
	if !sameManager(r.manager, other.manager) {
		return false
	}
	return reflect.DeepEqual(r.Serialize(), other.Serialize())
}

// Name guesses the singular type name of the resource, such as
// "node", from its URL or the relation of its bound Manager.
// Returns an empty string if neither is available.
func (r *Resource) Name() string {
	if segments := restdata.PathSegments(r.url); len(segments) >= 2 {
		return restdata.Singular(strings.Replace(segments[len(segments)-2], "-", "_", -1))
	}
	if r.manager != nil {
		return restdata.Singular(restdata.RelationName(r.manager.Relation))
	}
	return ""
}

// Decode copies the resource's serialized field data into a Go
// structure.  Fields are matched by their "json" tags, and numbers
// and strings are converted as needed.
func (r *Resource) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(r.Serialize())
}
