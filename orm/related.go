// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxRelatedDepth bounds the number of path segments RetrieveRelated
// follows.
const maxRelatedDepth = 10

// RetrieveRelated fetches the resources reachable from a set of
// resources along field paths such as "group__owner", one level at a
// time.  At each level every reference still in need of data is
// collected, each distinct URL is fetched once, concurrently, and
// the result is merged into every reference to that URL.  The next
// level starts from the resources found at this one.
//
// If soft is true, references that are already fully retrieved are
// left alone.  The starting resources themselves are never fetched,
// though a missing first path segment may be looked up lazily.
//
// Failures do not stop the traversal.  They are logged and returned
// together once it finishes.
func RetrieveRelated(ctx context.Context, resources []*Resource, paths []string, soft bool) error {
	if len(resources) == 0 || len(paths) == 0 {
		return nil
	}
	t := &traversal{
		soft:    soft,
		fetched: make(map[string]*Resource),
		logger:  logrus.StandardLogger(),
	}
	for _, r := range resources {
		if r != nil && r.client != nil {
			t.limit = r.client.Concurrency()
			if logger := r.client.Logger(); logger != nil {
				t.logger = logger
			}
			break
		}
	}

	segments := make([][]string, len(paths))
	frontiers := make([][]*Resource, len(paths))
	for i, path := range paths {
		segments[i] = splitPath(path)
		frontiers[i] = uniqueResources(resources)
	}

	for depth := 0; depth < maxRelatedDepth; depth++ {
		found := make([][]*Resource, len(paths))
		active := false
		for i := range paths {
			if depth >= len(segments[i]) {
				continue
			}
			active = true
			for _, r := range frontiers[i] {
				found[i] = append(found[i], t.resolve(ctx, r, segments[i][depth], depth == 0)...)
			}
		}
		if !active {
			break
		}

		var all []*Resource
		for i := range found {
			all = append(all, found[i]...)
		}
		t.fetch(ctx, all)
		for _, r := range uniqueResources(all) {
			t.merge(r)
		}

		for i := range found {
			frontiers[i] = uniqueResources(found[i])
		}
	}
	return t.errs.ErrorOrNil()
}

// RetrieveRelated fetches related resources of every member, as the
// package-level RetrieveRelated() does.
func (c *Collection) RetrieveRelated(ctx context.Context, paths []string, soft bool) error {
	return RetrieveRelated(ctx, c.items, paths, soft)
}

type traversal struct {
	soft    bool
	limit   int
	logger  logrus.FieldLogger
	fetched map[string]*Resource
	mu      sync.Mutex
	errs    *multierror.Error
}

func (t *traversal) fail(url string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.WithError(err).WithField("url", url).Error("failed to retrieve related resource")
	t.errs = multierror.Append(t.errs, err)
}

// needsFetch decides whether a reference should be filled in.
func (t *traversal) needsFetch(r *Resource) bool {
	return r.client != nil && r.url != "" && !(t.soft && r.retrieved)
}

// resolve finds the resources one segment away from r.  Only the
// first level may look fields up lazily; deeper references were
// fetched already or could not be.
func (t *traversal) resolve(ctx context.Context, r *Resource, segment string, lazy bool) []*Resource {
	value, state := r.TryGet(segment)
	switch state {
	case Pending:
		if !lazy {
			return nil
		}
		var err error
		value, err = r.Get(ctx, segment)
		if err != nil {
			t.fail(r.url, err)
			return nil
		}
	case Unknown:
		t.fail(r.url, ErrAttributeNotFound{Name: segment, URL: r.url})
		return nil
	}
	switch v := value.(type) {
	case *Resource:
		if v != nil {
			return []*Resource{v}
		}
	case *Collection:
		if v != nil {
			return v.items
		}
	}
	return nil
}

// fetch retrieves every reference that needs it and has not been
// attempted yet, one request per URL.
func (t *traversal) fetch(ctx context.Context, refs []*Resource) {
	pending := make(map[string]*Resource)
	var order []string
	for _, r := range refs {
		if !t.needsFetch(r) {
			continue
		}
		if _, done := t.fetched[r.url]; done {
			continue
		}
		if _, queued := pending[r.url]; queued {
			continue
		}
		pending[r.url] = r
		order = append(order, r.url)
	}

	var g errgroup.Group
	if t.limit > 0 {
		g.SetLimit(t.limit)
	}
	results := make([]*Resource, len(order))
	for i, url := range order {
		client := pending[url].client
		g.Go(func() error {
			fresh, err := client.RetrieveResource(ctx, url, nil)
			if err != nil {
				t.fail(url, err)
				return nil
			}
			results[i] = fresh
			return nil
		})
	}
	_ = g.Wait()
	for i, url := range order {
		t.fetched[url] = results[i]
	}
}

// merge fills in a reference from the response for its URL.
func (t *traversal) merge(r *Resource) {
	if !t.needsFetch(r) {
		return
	}
	fresh := t.fetched[r.url]
	if fresh == nil {
		return
	}
	r.Merge(fresh)
	r.processLinks()
	r.retrieved = true
}
