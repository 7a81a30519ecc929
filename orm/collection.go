// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"

	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
)

type collectionKind int

const (
	plainCollection collectionKind = iota
	relatedCollection
	resourceSet
)

// Collection is an ordered list of resources.
//
// A plain collection is what a collection endpoint returns; all of
// its members are of the same type, and it can create more through
// the endpoint's Manager.
//
// A related collection is the value of a list-valued field, such as
// the "nodes" of a group.  It remembers the resource it belongs to,
// and resources created in or appended to it get a field pointing
// back at that parent.
//
// A resource set holds any resources at all, without duplicates.  It
// exists to run bulk operations over unrelated resources, and cannot
// create new ones.
type Collection struct {
	kind        collectionKind
	items       []*Resource
	client      Client
	url         string
	parent      *Resource
	relatedName string
}

// NewCollection creates a plain collection of resources fetched from
// a collection endpoint.
func NewCollection(client Client, url string, items []*Resource) *Collection {
	return &Collection{
		kind:   plainCollection,
		items:  items,
		client: client,
		url:    url,
	}
}

// NewRelatedCollection creates the collection held in the field
// relatedName of parent.
func NewRelatedCollection(parent *Resource, relatedName string, items []*Resource) *Collection {
	c := &Collection{
		kind:        relatedCollection,
		items:       items,
		parent:      parent,
		relatedName: relatedName,
	}
	if parent != nil {
		c.client = parent.client
	}
	return c
}

// NewResourceSet creates a set of resources.  Duplicates, by
// Resource.Equal(), are dropped.
func NewResourceSet(items []*Resource) *Collection {
	return &Collection{
		kind:  resourceSet,
		items: distinctResources(items),
	}
}

// derive makes a collection like c holding different members.
func (c *Collection) derive(items []*Resource) *Collection {
	n := *c
	n.items = items
	return &n
}

// reparent copies a related collection for a new parent resource.
func (c *Collection) reparent(parent *Resource) *Collection {
	n := c.derive(append([]*Resource(nil), c.items...))
	n.parent = parent
	return n
}

// Len returns the number of members.
func (c *Collection) Len() int {
	return len(c.items)
}

// At returns the member at index i.
func (c *Collection) At(i int) *Resource {
	return c.items[i]
}

// Items returns a copy of the member list.
func (c *Collection) Items() []*Resource {
	return append([]*Resource(nil), c.items...)
}

// URL returns the endpoint a plain collection was fetched from.
func (c *Collection) URL() string {
	return c.url
}

// Parent returns the resource a related collection belongs to.
func (c *Collection) Parent() *Resource {
	return c.parent
}

// RelatedName returns the field of the parent resource that holds a
// related collection.
func (c *Collection) RelatedName() string {
	return c.relatedName
}

// IsRelated is true for related collections.
func (c *Collection) IsRelated() bool {
	return c.kind == relatedCollection
}

// IsSet is true for resource sets.
func (c *Collection) IsSet() bool {
	return c.kind == resourceSet
}

// Name returns the attribute name of the collection's manager on the
// API root, such as "nodes".  Resource sets have no name.
func (c *Collection) Name() string {
	switch c.kind {
	case relatedCollection:
		return c.relatedName
	case resourceSet:
		return ""
	}
	segments := restdata.PathSegments(c.url)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Manager finds the manager for the collection's endpoint.
func (c *Collection) Manager(ctx context.Context) (*Manager, error) {
	if c.kind == resourceSet {
		return nil, ErrNotCreatable
	}
	if c.client == nil {
		return nil, ErrUnboundResource
	}
	return c.client.Manager(ctx, c.Name())
}

// Serialize produces the plain data of every member.  If nested is
// true, members with URLs are replaced by their URLs.
func (c *Collection) Serialize(nested bool) []interface{} {
	out := make([]interface{}, len(c.items))
	for i, r := range c.items {
		if nested {
			out[i] = r.SerializeNested()
		} else {
			out[i] = r.Serialize()
		}
	}
	return out
}

// Append adds a resource to the collection.  In a related collection
// the resource gets a field pointing back to the parent; in a
// resource set, duplicates are dropped again.
func (c *Collection) Append(r *Resource) {
	switch c.kind {
	case relatedCollection:
		if c.parent != nil {
			if name := c.parent.Name(); name != "" {
				r.Set(name, c.parent)
			}
		}
		c.items = append(c.items, r)
	case resourceSet:
		c.items = distinctResources(append(c.items, r))
	default:
		c.items = append(c.items, r)
	}
}

// Create creates a new resource through the collection's manager and
// appends it.  In a related collection the new resource gets a field
// pointing to the parent.  A resource set returns ErrNotCreatable.
func (c *Collection) Create(ctx context.Context, fields Fields) (*Resource, error) {
	if c.kind == resourceSet {
		return nil, ErrNotCreatable
	}
	data := make(Fields, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	if c.kind == relatedCollection {
		if c.parent == nil || c.parent.Name() == "" {
			return nil, ErrUnboundResource
		}
		data[c.parent.Name()] = c.parent
	}
	m, err := c.Manager(ctx)
	if err != nil {
		return nil, err
	}
	r, err := m.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	c.items = append(c.items, r)
	return r, nil
}

// Distinct returns a collection without duplicate members, keeping
// the first of each.
func (c *Collection) Distinct() *Collection {
	return c.derive(distinctResources(c.items))
}

func distinctResources(items []*Resource) []*Resource {
	result := make([]*Resource, 0, len(items))
	for _, r := range items {
		duplicate := false
		for _, seen := range result {
			if seen.Equal(r) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, r)
		}
	}
	return result
}

// uniqueResources drops repeated pointers to the same Resource
// object, so concurrent work never touches one object twice.
func uniqueResources(items []*Resource) []*Resource {
	seen := make(map[*Resource]bool, len(items))
	result := make([]*Resource, 0, len(items))
	for _, r := range items {
		if r != nil && !seen[r] {
			seen[r] = true
			result = append(result, r)
		}
	}
	return result
}

// concurrency is the default in-flight request limit for bulk work.
func (c *Collection) concurrency() int {
	if client := c.anyClient(); client != nil {
		return client.Concurrency()
	}
	return 0
}

// anyClient finds a client for the collection: its own, or that of
// any member.
func (c *Collection) anyClient() Client {
	if c.client != nil {
		return c.client
	}
	for _, r := range c.items {
		if r != nil && r.client != nil {
			return r.client
		}
	}
	return nil
}

// logger returns where failures are reported.
func (c *Collection) logger() logrus.FieldLogger {
	if client := c.anyClient(); client != nil {
		if logger := client.Logger(); logger != nil {
			return logger
		}
	}
	return logrus.StandardLogger()
}
