// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/diffeo/go-orm/restdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromotion(t *testing.T) {
	c := newFakeClient()
	r := NewResource(c, Fields{
		"url":      fakeRoot + "nodes/9/",
		"name":     "n",
		"group":    fakeRoot + "groups/1/",
		"nodes":    []interface{}{fakeRoot + "nodes/1/", fakeRoot + "nodes/2/"},
		"children": []interface{}{},
		"tags":     []interface{}{"a", "b"},
		"embedded": map[string]interface{}{"x": int64(1)},
		"_private": 1,
	})
	assert.Equal(t, fakeRoot+"nodes/9/", r.URL())

	group, state := r.TryGet("group")
	if assert.Equal(t, Found, state) && assert.IsType(t, &Resource{}, group) {
		assert.Equal(t, fakeRoot+"groups/1/", group.(*Resource).URL())
		assert.False(t, group.(*Resource).Retrieved())
	}

	nodes, _ := r.TryGet("nodes")
	if assert.IsType(t, &Collection{}, nodes) {
		coll := nodes.(*Collection)
		assert.True(t, coll.IsRelated())
		assert.Equal(t, r, coll.Parent())
		assert.Equal(t, "nodes", coll.RelatedName())
		assert.Equal(t, 2, coll.Len())
	}

	children, _ := r.TryGet("children")
	if assert.IsType(t, &Collection{}, children) {
		assert.Equal(t, 0, children.(*Collection).Len())
	}

	tags, _ := r.TryGet("tags")
	assert.Equal(t, []interface{}{"a", "b"}, tags)

	embedded, _ := r.TryGet("embedded")
	if assert.IsType(t, &Resource{}, embedded) {
		assert.Equal(t, "", embedded.(*Resource).URL())
		x, state := embedded.(*Resource).TryGet("x")
		assert.Equal(t, Found, state)
		assert.Equal(t, int64(1), x)
	}

	_, state = r.TryGet("_private")
	assert.Equal(t, Unknown, state)
	assert.Equal(t, []string{"children", "embedded", "group", "name", "nodes", "tags"}, r.Keys())
}

func TestLazyGet(t *testing.T) {
	ctx := context.Background()
	c := newFakeClient()
	url := fakeRoot + "nodes/1/"
	c.add(url, map[string]interface{}{"name": "alpha"})

	r := NewReference(c, url)
	_, state := r.TryGet("name")
	assert.Equal(t, Pending, state)

	name, err := r.Get(ctx, "name")
	if assert.NoError(t, err) {
		assert.Equal(t, "alpha", name)
	}
	assert.True(t, r.Retrieved())
	assert.Equal(t, 1, c.count(url))

	_, err = r.Get(ctx, "missing")
	assert.Equal(t, ErrAttributeNotFound{Name: "missing", URL: url}, err)
	assert.Equal(t, 1, c.count(url))

	r.Reset()
	_, err = r.Get(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 2, c.count(url))
}

func TestGetUnbound(t *testing.T) {
	r := NewResource(nil, Fields{"name": "local"})
	_, state := r.TryGet("other")
	assert.Equal(t, Unknown, state)
	_, err := r.Get(context.Background(), "other")
	assert.Equal(t, ErrAttributeNotFound{Name: "other"}, err)
	assert.Equal(t, ErrUnboundResource, r.Retrieve(context.Background(), true))
}

func TestConditionalRetrieve(t *testing.T) {
	ctx := context.Background()
	c := newFakeClient()
	url := fakeRoot + "nodes/1/"
	c.add(url, map[string]interface{}{"name": "alpha"})

	r := NewReference(c, url)
	require.NoError(t, r.Retrieve(ctx, true))
	require.NoError(t, r.Retrieve(ctx, true))
	assert.Equal(t, []string{"GET " + url, "GET " + url + " conditional"}, c.requests)
	name, _ := r.TryGet("name")
	assert.Equal(t, "alpha", name)

	// A changed representation is fetched in full.
	c.add(url, map[string]interface{}{"name": "alphabet"})
	require.NoError(t, r.Retrieve(ctx, true))
	name, _ = r.TryGet("name")
	assert.Equal(t, "alphabet", name)

	// Unconditional requests never carry a tag.
	require.NoError(t, r.Retrieve(ctx, false))
	assert.Equal(t, "GET "+url, c.requests[len(c.requests)-1])

	// Neither do requests from a caching client.
	c.cache = true
	require.NoError(t, r.Retrieve(ctx, true))
	assert.Equal(t, "GET "+url, c.requests[len(c.requests)-1])
}

func TestMerge(t *testing.T) {
	a := NewResource(nil, Fields{"name": "x", "kept": true})
	b := NewResource(nil, Fields{"name": "y", "age": 3})
	b.retrieved = true
	b.headers.Set("ETag", "\"1\"")

	a.Merge(b)
	first := a.Serialize()
	a.Merge(b)
	assert.Equal(t, first, a.Serialize())
	assert.Equal(t, map[string]interface{}{"name": "y", "age": 3, "kept": true}, first)
	assert.True(t, a.Retrieved())
	assert.Equal(t, "\"1\"", a.Headers().Get("ETag"))

	// Merging never unsets retrieved.
	a.Merge(NewResource(nil, Fields{"name": "z"}))
	assert.True(t, a.Retrieved())
}

func TestMergeReparents(t *testing.T) {
	c := newFakeClient()
	a := NewReference(c, fakeRoot+"groups/1/")
	b := NewResource(c, Fields{
		"url":     fakeRoot + "groups/1/",
		"members": []interface{}{fakeRoot + "users/1/"},
	})
	a.Merge(b)
	members, _ := a.TryGet("members")
	if assert.IsType(t, &Collection{}, members) {
		assert.Equal(t, a, members.(*Collection).Parent())
	}
}

func TestSerialize(t *testing.T) {
	r := NewResource(nil, Fields{
		"url":      fakeRoot + "nodes/1/",
		"group":    fakeRoot + "groups/1/",
		"users":    []interface{}{fakeRoot + "users/1/", fakeRoot + "users/2/"},
		"embedded": map[string]interface{}{"x": 1},
	})
	assert.Equal(t, map[string]interface{}{
		"url":      fakeRoot + "nodes/1/",
		"group":    fakeRoot + "groups/1/",
		"users":    []interface{}{fakeRoot + "users/1/", fakeRoot + "users/2/"},
		"embedded": map[string]interface{}{"x": 1},
	}, r.Serialize())
	assert.Equal(t, fakeRoot+"nodes/1/", r.SerializeNested())
	assert.Contains(t, r.String(), "nodes")
}

func TestEqual(t *testing.T) {
	c := newFakeClient()
	a := NewReference(c, fakeRoot+"nodes/1/")
	b := NewResource(nil, Fields{"url": fakeRoot + "nodes/1/", "name": "different"})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewReference(c, fakeRoot+"nodes/2/")))

	x := NewResource(nil, Fields{"name": "same"})
	y := NewResource(nil, Fields{"name": "same"})
	assert.True(t, x.Equal(y))
	y.Bind(NewManager(fakeRoot+"nodes/", "node-list", c))
	assert.False(t, x.Equal(y))
	x.Bind(NewManager(fakeRoot+"nodes/", "node-list", c))
	assert.True(t, x.Equal(y))
}

func TestName(t *testing.T) {
	c := newFakeClient()
	assert.Equal(t, "node", NewReference(c, fakeRoot+"nodes/3/").Name())
	assert.Equal(t, "ip_address", NewReference(c, fakeRoot+"ip-addresses/1/").Name())
	assert.Equal(t, "mailalias", NewReference(c, fakeRoot+"mailaliases/1/?x=1").Name())

	r := NewResource(nil, Fields{})
	assert.Equal(t, "", r.Name())
	r.Bind(NewManager(fakeRoot+"mailaliases/", "mailalias-list", c))
	assert.Equal(t, "mailalias", r.Name())
}

func TestProcessLinks(t *testing.T) {
	ctx := context.Background()
	c := newFakeClient()
	url := fakeRoot + "nodes/1/"
	c.add(url, map[string]interface{}{"name": "alpha"})
	c.links[url] = map[string]string{
		"node-reboot": url + "reboot/",
		"name-detail": url + "name/",
	}

	r := NewReference(c, url)
	reboot, err := r.Get(ctx, "reboot")
	require.NoError(t, err)
	if assert.IsType(t, &Manager{}, reboot) {
		m := reboot.(*Manager)
		assert.Equal(t, url+"reboot/", m.Endpoint)
		assert.Equal(t, "reboot", m.Name())
		result, err := m.Call(ctx, "invoke", nil)
		if assert.NoError(t, err) && assert.IsType(t, &Resource{}, result) {
			status, _ := result.(*Resource).TryGet("status")
			assert.Equal(t, "accepted", status)
		}
	}

	// Fields win over link relations.
	name, _ := r.TryGet("name")
	assert.Equal(t, "alpha", name)
	assert.Equal(t, []string{"reboot"}, r.Managers())
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	c := newFakeClient()
	m := NewManager(fakeRoot+"users/", "user-list", c)
	c.registry.Register("user-list", "create", func(ctx context.Context, m *Manager, fields Fields) (interface{}, error) {
		return "custom " + m.Name(), nil
	})

	result, err := m.Call(ctx, "create", Fields{"name": "ann"})
	assert.NoError(t, err)
	assert.Equal(t, "custom users", result)

	// The typed method bypasses the registry.
	created, err := m.Create(ctx, Fields{"name": "ann"})
	if assert.NoError(t, err) {
		assert.Equal(t, fakeRoot+"users/1/", created.URL())
	}

	assert.True(t, c.registry.Unregister("user-list", "create"))
	assert.False(t, c.registry.Unregister("user-list", "create"))
	result, err = m.Call(ctx, "create", Fields{"name": "bob"})
	if assert.NoError(t, err) && assert.IsType(t, &Resource{}, result) {
		assert.Equal(t, fakeRoot+"users/2/", result.(*Resource).URL())
	}

	result, err = m.Call(ctx, "retrieve", Fields{"name": "bob"})
	if assert.NoError(t, err) && assert.IsType(t, &Collection{}, result) {
		assert.Equal(t, 1, result.(*Collection).Len())
	}

	_, err = m.Call(ctx, "frobnicate", nil)
	assert.Equal(t, ErrUnknownMethod{Name: "frobnicate", Relation: "user-list"}, err)

	// HTTP verbs go straight to the endpoint.
	c.add(fakeRoot+"nodes/", map[string]interface{}{})
	nodes := NewManager(fakeRoot+"nodes/", "node-list", c)
	for _, verb := range []string{"get", "head", "post", "put", "patch", "delete"} {
		c.requests = nil
		result, err := nodes.Call(ctx, verb, nil)
		if assert.NoError(t, err, verb) && assert.IsType(t, &restdata.Response{}, result, verb) {
			resp := result.(*restdata.Response)
			assert.Equal(t, http.StatusOK, resp.StatusCode, verb)
			assert.Equal(t, strings.ToUpper(verb), resp.Method)
		}
		assert.Equal(t, []string{strings.ToUpper(verb) + " " + fakeRoot + "nodes/"}, c.requests)
	}
}

func TestSaveUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c := newFakeClient()
	r := NewResource(nil, Fields{"name": "new"})
	assert.Equal(t, ErrUnboundResource, r.Save(ctx))

	m, err := c.Manager(ctx, "nodes")
	require.NoError(t, err)
	r.Bind(m)
	require.NoError(t, r.Save(ctx))
	url := fakeRoot + "nodes/1/"
	assert.Equal(t, url, r.URL())

	r.Set("name", "renamed")
	require.NoError(t, r.Save(ctx))
	assert.Equal(t, "renamed", c.resources[url]["name"])

	require.NoError(t, r.Update(ctx, Fields{"age": 4}))
	age, _ := r.TryGet("age")
	assert.Equal(t, 4, age)
	assert.Equal(t, "renamed", c.resources[url]["name"])

	require.NoError(t, r.Delete(ctx))
	assert.NotContains(t, c.resources, url)
	assert.Equal(t, []string{"POST " + fakeRoot + "nodes/", "PUT " + url, "PATCH " + url, "DELETE " + url}, c.requests)
}

func TestDecode(t *testing.T) {
	var node struct {
		URL  string `json:"url"`
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	r := NewResource(nil, Fields{"url": fakeRoot + "nodes/1/", "name": "n", "age": int64(3)})
	if assert.NoError(t, r.Decode(&node)) {
		assert.Equal(t, fakeRoot+"nodes/1/", node.URL)
		assert.Equal(t, "n", node.Name)
		assert.Equal(t, 3, node.Age)
	}
}
