// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"sync"

	"github.com/diffeo/go-orm/restdata"
)

// MethodFunc is a custom manager method.  It is called with the
// manager it was looked up on.
type MethodFunc func(ctx context.Context, m *Manager, fields Fields) (interface{}, error)

type registeredMethod struct {
	name string
	fn   MethodFunc
}

// Registry holds custom manager methods, keyed by the link relation
// of the manager they apply to, such as "user-list".  A Registry is
// normally owned by one API client.  It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	methods map[string][]registeredMethod
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string][]registeredMethod)}
}

// DefaultRegistry creates a registry holding the built-in custom
// methods.  "create" on "user-list" never posts the password with
// the new user; it sets it afterwards through the user's
// "change_password" action.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("user-list", "create", createUser)
	return reg
}

func createUser(ctx context.Context, m *Manager, fields Fields) (interface{}, error) {
	data := make(Fields, len(fields))
	for k, v := range fields {
		data[k] = v
	}
	password, hasPassword := data["password"]
	delete(data, "password")

	user, err := m.Create(ctx, data)
	if err != nil || !hasPassword {
		return user, err
	}
	change, ok := user.Manager("change_password")
	if !ok {
		if err := user.Retrieve(ctx, false); err != nil {
			return nil, err
		}
		if change, ok = user.Manager("change_password"); !ok {
			return nil, ErrAttributeNotFound{Name: "change_password", URL: user.URL()}
		}
	}
	if _, err := change.Invoke(ctx, Fields{"password": password}); err != nil {
		return nil, err
	}
	return user, nil
}

// Register adds a custom method for a relation.  If a method of the
// same name is already registered, the earlier one takes precedence
// until it is unregistered.
func (reg *Registry) Register(relation, name string, fn MethodFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.methods[relation] = append(reg.methods[relation], registeredMethod{name: name, fn: fn})
}

// Unregister removes the first method registered for a relation with
// a given name.  Returns false if there was none.
func (reg *Registry) Unregister(relation, name string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	methods := reg.methods[relation]
	for i, m := range methods {
		if m.name == name {
			reg.methods[relation] = append(methods[:i:i], methods[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup finds a custom method.
func (reg *Registry) Lookup(relation, name string) (MethodFunc, bool) {
	if reg == nil {
		return nil, false
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, m := range reg.methods[relation] {
		if m.name == name {
			return m.fn, true
		}
	}
	return nil, false
}

// Manager is a handle to one endpoint of the API, discovered from a
// link relation.  Collection endpoints ("node-list") support the
// generic create and retrieve operations; action endpoints
// ("node-reboot") are called with Invoke().
type Manager struct {
	// Endpoint is the absolute URL of the endpoint.
	Endpoint string

	// Relation is the link relation that named the endpoint.
	Relation string

	client Client
}

// NewManager creates a manager for an endpoint.
func NewManager(endpoint, relation string, client Client) *Manager {
	return &Manager{
		Endpoint: endpoint,
		Relation: relation,
		client:   client,
	}
}

// Client returns the API client the manager uses.
func (m *Manager) Client() Client {
	return m.client
}

// Name is the attribute name the manager is found under, such as
// "nodes" for a "node-list" relation.
func (m *Manager) Name() string {
	return restdata.RelationName(m.Relation)
}

func sameManager(a, b *Manager) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Endpoint == b.Endpoint && a.Relation == b.Relation
}

// Invoke performs an action: it posts fields to the endpoint and
// returns the server's response as a resource.
func (m *Manager) Invoke(ctx context.Context, fields Fields) (*Resource, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	return m.client.Action(ctx, m.Endpoint, fields)
}

// Create creates a new resource at the endpoint.  This is the
// generic operation; it does not consult the registry.
func (m *Manager) Create(ctx context.Context, fields Fields) (*Resource, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	return m.client.Create(ctx, m.Endpoint, fields)
}

// Retrieve fetches the collection at the endpoint, with optional
// server-side filters.
func (m *Manager) Retrieve(ctx context.Context, query map[string]string) (*Collection, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	result, err := m.client.Retrieve(ctx, m.Endpoint, "", query)
	if err != nil {
		return nil, err
	}
	c, ok := result.(*Collection)
	if !ok {
		return nil, ErrUnexpectedContent{URL: m.Endpoint, Expected: "a list"}
	}
	return c, nil
}

// RetrieveID fetches a single resource under the endpoint by its
// identifier.
func (m *Manager) RetrieveID(ctx context.Context, id string) (*Resource, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	result, err := m.client.Retrieve(ctx, m.Endpoint, id, nil)
	if err != nil {
		return nil, err
	}
	r, ok := result.(*Resource)
	if !ok {
		return nil, ErrUnexpectedContent{URL: m.Endpoint, Expected: "an object"}
	}
	return r, nil
}

// Update replaces the resource at the endpoint.
func (m *Manager) Update(ctx context.Context, fields Fields) (*Resource, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	return m.client.Update(ctx, m.Endpoint, fields)
}

// PartialUpdate changes some fields of the resource at the endpoint.
func (m *Manager) PartialUpdate(ctx context.Context, fields Fields) (*Resource, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	return m.client.PartialUpdate(ctx, m.Endpoint, fields)
}

// Destroy deletes the resource at the endpoint.
func (m *Manager) Destroy(ctx context.Context) error {
	if m.client == nil {
		return ErrUnboundResource
	}
	return m.client.Destroy(ctx, m.Endpoint)
}

// Call runs a named operation on the manager.  A custom method
// registered for the manager's relation takes precedence.  Otherwise
// name may be one of the generic operations "create", "retrieve",
// "update", "partial_update", "destroy", or "invoke", which return
// resources, or an HTTP verb ("get", "head", "post", "put", "patch",
// "delete"), which makes a raw request to the endpoint with fields as
// the body and returns the *restdata.Response.
func (m *Manager) Call(ctx context.Context, name string, fields Fields) (interface{}, error) {
	if m.client != nil {
		if fn, ok := m.client.Registry().Lookup(m.Relation, name); ok {
			return fn(ctx, m, fields)
		}
	}
	switch name {
	case "create":
		return m.Create(ctx, fields)
	case "retrieve":
		query := make(map[string]string, len(fields))
		for k, v := range fields {
			query[k] = valueString(v)
		}
		return m.Retrieve(ctx, query)
	case "update":
		return m.Update(ctx, fields)
	case "partial_update":
		return m.PartialUpdate(ctx, fields)
	case "destroy":
		return nil, m.Destroy(ctx)
	case "invoke":
		return m.Invoke(ctx, fields)
	case "get", "head", "post", "put", "patch", "delete":
		return m.request(ctx, name, fields)
	}
	return nil, ErrUnknownMethod{Name: name, Relation: m.Relation}
}

// request passes a raw HTTP verb through to the client.
func (m *Manager) request(ctx context.Context, verb string, fields Fields) (*restdata.Response, error) {
	if m.client == nil {
		return nil, ErrUnboundResource
	}
	var body interface{}
	if fields != nil {
		body = SerializeFields(fields)
	}
	switch verb {
	case "get":
		return m.client.Get(ctx, m.Endpoint, nil)
	case "head":
		return m.client.Head(ctx, m.Endpoint, nil)
	case "post":
		return m.client.Post(ctx, m.Endpoint, body, nil)
	case "put":
		return m.client.Put(ctx, m.Endpoint, body, nil)
	case "patch":
		return m.client.Patch(ctx, m.Endpoint, body, nil)
	}
	return m.client.Delete(ctx, m.Endpoint, nil)
}
