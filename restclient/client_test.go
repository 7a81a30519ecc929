// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/diffeo/go-orm/memory"
	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restserver"
	"github.com/diffeo/go-orm/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var testSchema = restserver.Schema{
	Kinds: []restserver.Kind{
		{Name: "groups", Required: []string{"name"}},
		{
			Name:       "nodes",
			References: map[string]string{"group": "groups"},
			Required:   []string{"name"},
			Actions:    []string{"reboot"},
		},
	},
}

// countingHandler records the requests that reach the server, and
// the last body sent to each.
type countingHandler struct {
	http.Handler
	mu     sync.Mutex
	counts map[string]int
	bodies map[string][]byte
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body []byte
	if req.Body != nil {
		body, _ = ioutil.ReadAll(req.Body)
		req.Body = ioutil.NopCloser(bytes.NewReader(body))
	}
	h.mu.Lock()
	key := req.Method + " " + req.URL.Path
	h.counts[key]++
	h.bodies[key] = body
	h.mu.Unlock()
	h.Handler.ServeHTTP(w, req)
}

func (h *countingHandler) Body(method, path string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bodies[method+" "+path]
}

func (h *countingHandler) Count(method, path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[method+" "+path]
}

func (h *countingHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make(map[string]int)
	h.bodies = make(map[string][]byte)
}

type ClientAssertions struct {
	*assert.Assertions
	Server  *httptest.Server
	Handler *countingHandler
	Store   store.Store
	Hook    *test.Hook
	Logger  *logrus.Logger
	API     *API
	Context context.Context
}

func NewClientAssertions(t *testing.T, cfg Config, schema restserver.Schema) *ClientAssertions {
	st := memory.New()
	handler := &countingHandler{
		Handler: restserver.NewRouter(st, schema),
		counts:  make(map[string]int),
		bodies:  make(map[string][]byte),
	}
	server := httptest.NewServer(handler)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	a := &ClientAssertions{
		Assertions: assert.New(t),
		Server:     server,
		Handler:    handler,
		Store:      st,
		Hook:       hook,
		Logger:     logger,
		Context:    context.Background(),
	}
	cfg.URL = server.URL + "/"
	api, err := New(cfg, WithLogger(logger))
	if !a.NoError(err) {
		t.FailNow()
	}
	a.API = api
	return a
}

func (a *ClientAssertions) Close() {
	a.Server.Close()
}

func (a *ClientAssertions) Manager(name string) *orm.Manager {
	m, err := a.API.Manager(a.Context, name)
	a.NoError(err)
	return m
}

// Create makes a resource through a manager, failing the test if it
// can't.
func (a *ClientAssertions) Create(m *orm.Manager, fields orm.Fields) *orm.Resource {
	r, err := m.Create(a.Context, fields)
	a.NoError(err)
	return r
}

// StatusCode extracts the HTTP status from a response error.
func (a *ClientAssertions) StatusCode(err error) int {
	if statusErr, ok := err.(*orm.ResponseStatusError); a.True(ok, "%+v", err) {
		return statusErr.Code
	}
	return 0
}

func (a *ClientAssertions) ErrorEntries() int {
	n := 0
	for _, entry := range a.Hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			n++
		}
	}
	return n
}

func TestManagers(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	nodes := a.Manager("nodes")
	a.Equal(a.Server.URL+"/nodes/", nodes.Endpoint)
	a.Equal("node-list", nodes.Relation)
	a.Equal("nodes", nodes.Name())

	_, err := a.API.Manager(a.Context, "zones")
	a.IsType(orm.ErrAttributeNotFound{}, err)

	root, err := a.API.Root(a.Context)
	if a.NoError(err) {
		a.Equal(a.Server.URL+"/", root.URL())
		a.Equal([]string{"get_auth_token", "groups", "nodes"}, root.Managers())
	}
	a.Equal(1, a.Handler.Count("GET", "/"))
}

func TestCreateRetrieveUpdateDelete(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	nodes := a.Manager("nodes")
	created := a.Create(nodes, orm.Fields{"name": "n1", "age": 3})
	if !a.NotNil(created) {
		return
	}
	a.Equal(a.Server.URL+"/nodes/1/", created.URL())

	r, err := nodes.RetrieveID(a.Context, "1")
	if !a.NoError(err) {
		return
	}
	a.True(r.Retrieved())
	name, err := r.Get(a.Context, "name")
	a.NoError(err)
	a.Equal("n1", name)
	age, err := r.Get(a.Context, "age")
	a.NoError(err)
	a.EqualValues(3, age)

	if a.NoError(r.Update(a.Context, orm.Fields{"age": 4})) {
		age, _ = r.Get(a.Context, "age")
		a.EqualValues(4, age)
	}

	r.Set("name", "m1")
	if a.NoError(r.Save(a.Context)) {
		name, _ = r.Get(a.Context, "name")
		a.Equal("m1", name)
	}
	record, err := a.Store.Get("nodes", "1")
	if a.NoError(err) {
		a.Equal("m1", record.Data["name"])
		a.NotContains(record.Data, "url")
	}

	if a.NoError(r.Delete(a.Context)) {
		_, err = nodes.RetrieveID(a.Context, "1")
		a.Equal(http.StatusNotFound, a.StatusCode(err))
		if statusErr, ok := err.(*orm.ResponseStatusError); ok {
			a.Equal("No such nodes 1", statusErr.Detail)
		}
	}
}

func TestBadRequestDetail(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	_, err := a.Manager("nodes").Create(a.Context, orm.Fields{"age": 3})
	a.Equal(http.StatusBadRequest, a.StatusCode(err))
	if statusErr, ok := err.(*orm.ResponseStatusError); ok {
		a.Equal("name: This field is required.", statusErr.Detail)
		a.Equal([]int{http.StatusCreated}, statusErr.Expected)
	}
}

func TestAction(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	a.Create(a.Manager("nodes"), orm.Fields{"name": "n1"})
	r, err := a.Manager("nodes").RetrieveID(a.Context, "1")
	if !a.NoError(err) {
		return
	}
	reboot, ok := r.Manager("reboot")
	if !a.True(ok) {
		return
	}
	result, err := reboot.Invoke(a.Context, nil)
	if a.NoError(err) {
		detail, _ := result.Get(a.Context, "detail")
		a.Equal("reboot accepted", detail)
	}
	a.Equal(1, a.Handler.Count("POST", "/nodes/1/reboot/"))
}

func TestCreateUser(t *testing.T) {
	schema := restserver.Schema{
		Kinds: []restserver.Kind{
			{
				Name:     "users",
				Required: []string{"username"},
				Actions:  []string{"change-password"},
			},
		},
	}
	a := NewClientAssertions(t, Config{}, schema)
	defer a.Close()

	users := a.Manager("users")
	a.Equal("user-list", users.Relation)
	result, err := users.Call(a.Context, "create", orm.Fields{"username": "ann", "password": "secret"})
	if !a.NoError(err) || !a.IsType(&orm.Resource{}, result) {
		return
	}
	a.Equal(a.Server.URL+"/users/1/", result.(*orm.Resource).URL())
	a.Equal(1, a.Handler.Count("POST", "/users/"))
	a.NotContains(string(a.Handler.Body("POST", "/users/")), "secret")
	a.Equal(1, a.Handler.Count("POST", "/users/1/change-password/"))
	a.JSONEq(`{"password": "secret"}`, string(a.Handler.Body("POST", "/users/1/change-password/")))
	record, err := a.Store.Get("users", "1")
	if a.NoError(err) {
		a.Equal(map[string]interface{}{"username": "ann"}, record.Data)
	}

	// No password, no second request.
	a.Handler.Reset()
	_, err = users.Call(a.Context, "create", orm.Fields{"username": "bob"})
	a.NoError(err)
	a.Equal(1, a.Handler.Count("POST", "/users/"))
	a.Equal(0, a.Handler.Count("POST", "/users/2/change-password/"))

	// The typed Create is the plain collection post.
	a.Handler.Reset()
	a.Create(users, orm.Fields{"username": "cy", "password": "pw"})
	a.Equal(0, a.Handler.Count("POST", "/users/3/change-password/"))
	record, err = a.Store.Get("users", "3")
	if a.NoError(err) {
		a.Equal("pw", record.Data["password"])
	}
}

func TestLazyTraversal(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	group := a.Create(a.Manager("groups"), orm.Fields{"name": "red"})
	other := a.Create(a.Manager("groups"), orm.Fields{"name": "blue"})
	a.Create(a.Manager("nodes"), orm.Fields{"name": "n1", "group": group})
	a.Create(a.Manager("nodes"), orm.Fields{"name": "n2", "group": other})

	all, err := a.Manager("nodes").Retrieve(a.Context, nil)
	if !a.NoError(err) || !a.Equal(2, all.Len()) {
		return
	}
	a.Equal(a.Server.URL+"/nodes/", all.URL())

	value, err := all.At(0).Get(a.Context, "group")
	if !a.NoError(err) {
		return
	}
	ref, ok := value.(*orm.Resource)
	if !a.True(ok) {
		return
	}
	a.False(ref.Retrieved())
	name, err := ref.Get(a.Context, "name")
	a.NoError(err)
	a.Equal("red", name)
	a.True(ref.Retrieved())

	value, err = ref.Get(a.Context, "nodes")
	if a.NoError(err) {
		members, ok := value.(*orm.Collection)
		if a.True(ok) && a.Equal(1, members.Len()) {
			a.Equal(a.Server.URL+"/nodes/1/", members.At(0).URL())
		}
	}

	red, err := all.Filter(a.Context, orm.Criteria{"group__name": "red"})
	if a.NoError(err) && a.Equal(1, red.Len()) {
		a.Equal(a.Server.URL+"/nodes/1/", red.At(0).URL())
	}

	filtered, err := a.Manager("nodes").Retrieve(a.Context, map[string]string{"name": "n2"})
	if a.NoError(err) && a.Equal(1, filtered.Len()) {
		a.Equal(a.Server.URL+"/nodes/2/", filtered.At(0).URL())
		a.Equal(a.Server.URL+"/nodes/?name=n2", filtered.URL())
	}
}

func TestConditionalRetrieve(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	a.Create(a.Manager("nodes"), orm.Fields{"name": "n1"})
	r, err := a.Manager("nodes").RetrieveID(a.Context, "1")
	if !a.NoError(err) {
		return
	}
	a.NotEmpty(r.Headers().Get("ETag"))

	a.API.Stats().Reset()
	if a.NoError(r.Retrieve(a.Context, true)) {
		name, _ := r.Get(a.Context, "name")
		a.Equal("n1", name)
	}
	a.Equal(int64(1), a.API.Stats().Get("conditional"))
	a.Equal(int64(1), a.API.Stats().Get("get"))

	// After a change the server sends the new representation
	_, err = a.Store.Update("nodes", "1", map[string]interface{}{"name": "n2"}, false)
	a.NoError(err)
	if a.NoError(r.Retrieve(a.Context, true)) {
		name, _ := r.Get(a.Context, "name")
		a.Equal("n2", name)
	}
	a.Equal(int64(2), a.API.Stats().Get("conditional"))
}

func TestCache(t *testing.T) {
	a := NewClientAssertions(t, Config{Cache: true}, testSchema)
	defer a.Close()

	a.Create(a.Manager("nodes"), orm.Fields{"name": "n1", "age": 3})
	url := a.Server.URL + "/nodes/1/"
	a.API.Stats().Reset()
	a.Handler.Reset()

	for i := 0; i < 2; i++ {
		r, err := a.API.RetrieveResource(a.Context, url, nil)
		if a.NoError(err) {
			age, _ := r.Get(a.Context, "age")
			a.EqualValues(3, age)
		}
	}
	a.Equal(1, a.Handler.Count("GET", "/nodes/1/"))
	a.Equal(int64(2), a.API.Stats().Get("get"))
	a.Equal(int64(0), a.API.Stats().Get("conditional"))

	// A write invalidates the cached response, and the next read
	// is conditional
	_, err := a.API.PartialUpdate(a.Context, url, orm.Fields{"age": 5})
	a.NoError(err)
	r, err := a.API.RetrieveResource(a.Context, url, nil)
	if a.NoError(err) {
		age, _ := r.Get(a.Context, "age")
		a.EqualValues(5, age)
	}
	a.Equal(2, a.Handler.Count("GET", "/nodes/1/"))
	a.Equal(int64(1), a.API.Stats().Get("conditional"))

	// An action below the resource invalidates it too, but nothing
	// changed, so the server answers "not modified"
	_, err = a.API.Action(a.Context, url+"reboot/", nil)
	a.NoError(err)
	r, err = a.API.RetrieveResource(a.Context, url, nil)
	if a.NoError(err) && a.NotNil(r) {
		age, _ := r.Get(a.Context, "age")
		a.EqualValues(5, age)
	}
	a.Equal(3, a.Handler.Count("GET", "/nodes/1/"))
	a.Equal(int64(2), a.API.Stats().Get("conditional"))
	a.Equal(2, a.API.Cache().Revalidations())
}

func TestLogin(t *testing.T) {
	schema := testSchema
	schema.Users = map[string]string{"admin": "secret"}

	a := NewClientAssertions(t, Config{}, schema)
	defer a.Close()

	_, err := a.Manager("nodes").Create(a.Context, orm.Fields{"name": "n1"})
	a.Equal(http.StatusUnauthorized, a.StatusCode(err))

	err = a.API.Login(a.Context, "admin", "wrong")
	a.Equal(http.StatusBadRequest, a.StatusCode(err))

	if a.NoError(a.API.Login(a.Context, "admin", "secret")) {
		a.Create(a.Manager("nodes"), orm.Fields{"name": "n1"})
	}

	a.API.Logout()
	_, err = a.Manager("nodes").Create(a.Context, orm.Fields{"name": "n2"})
	a.Equal(http.StatusUnauthorized, a.StatusCode(err))

	api, err := New(Config{URL: a.Server.URL + "/", Username: "admin", Password: "secret"},
		WithLogger(a.Logger))
	if a.NoError(err) {
		m, err := api.Manager(a.Context, "nodes")
		if a.NoError(err) {
			_, err = m.Create(a.Context, orm.Fields{"name": "n3"})
			a.NoError(err)
		}
	}
	_, err = New(Config{URL: a.Server.URL + "/", Username: "admin", Password: "wrong"},
		WithLogger(a.Logger))
	a.Error(err)
}

func TestRetrieveRelated(t *testing.T) {
	a := NewClientAssertions(t, Config{Concurrency: 2}, testSchema)
	defer a.Close()

	red := a.Create(a.Manager("groups"), orm.Fields{"name": "red"})
	blue := a.Create(a.Manager("groups"), orm.Fields{"name": "blue"})
	for i, group := range []*orm.Resource{red, red, red, blue} {
		a.Create(a.Manager("nodes"), orm.Fields{"name": i, "group": group})
	}
	all, err := a.Manager("nodes").Retrieve(a.Context, nil)
	if !a.NoError(err) || !a.Equal(4, all.Len()) {
		return
	}

	a.Handler.Reset()
	a.NoError(all.RetrieveRelated(a.Context, []string{"group"}, false))
	a.Equal(1, a.Handler.Count("GET", "/groups/1/"))
	a.Equal(1, a.Handler.Count("GET", "/groups/2/"))

	for i, expected := range []string{"red", "red", "red", "blue"} {
		value, state := all.At(i).TryGet("group")
		if !a.Equal(orm.Found, state) {
			continue
		}
		group := value.(*orm.Resource)
		name, state := group.TryGet("name")
		a.Equal(orm.Found, state)
		a.Equal(expected, name)
	}
	a.Equal(1, a.Handler.Count("GET", "/groups/1/"))
}

func TestBulkUpdatePartialFailure(t *testing.T) {
	a := NewClientAssertions(t, Config{Concurrency: 3}, testSchema)
	defer a.Close()

	nodes := a.Manager("nodes")
	for i := 0; i < 5; i++ {
		a.Create(nodes, orm.Fields{"name": i})
	}
	all, err := nodes.Retrieve(a.Context, nil)
	if !a.NoError(err) || !a.Equal(5, all.Len()) {
		return
	}
	a.NoError(a.Store.Delete("nodes", "3"))
	a.Hook.Reset()

	succeeded, failed := all.Update(a.Context, orm.Fields{"age": 9})
	a.Len(succeeded, 4)
	if a.Len(failed, 1) {
		a.Equal(a.Server.URL+"/nodes/3/", failed[0].Resource.URL())
		a.Equal(http.StatusNotFound, a.StatusCode(failed[0].Err))
	}
	for _, r := range succeeded {
		age, state := r.TryGet("age")
		a.Equal(orm.Found, state)
		a.EqualValues(9, age)
	}
	a.Equal(1, a.ErrorEntries())

	succeeded, failed = all.Destroy(a.Context)
	a.Len(succeeded, 4)
	a.Len(failed, 1)
	count, err := a.Store.Count()
	if a.NoError(err) {
		a.Equal(0, count["nodes"])
	}
}

func TestDownload(t *testing.T) {
	a := NewClientAssertions(t, Config{}, testSchema)
	defer a.Close()

	a.Create(a.Manager("nodes"), orm.Fields{"name": "n1"})
	url := a.Server.URL + "/nodes/1/"
	body, final, err := a.API.Download(a.Context, url)
	if a.NoError(err) {
		a.Equal(url, final)
		a.Contains(string(body), "n1")
	}
	_, _, err = a.API.Download(a.Context, a.Server.URL+"/nodes/2/")
	a.Equal(http.StatusNotFound, a.StatusCode(err))
}
