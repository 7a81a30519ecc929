// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"sort"
	"strings"
)

// Criteria maps filter keys to the values they are compared against.
// A key is a field path, optionally ending in a lookup operator, as
// in "name", "group__name", or "age__gte".  Every criterion must hold
// for a resource to match.
type Criteria map[string]interface{}

// Filter returns the members matching every criterion.  Related
// resources named by multi-segment paths are fetched first, each
// distinct URL once; a path step that reaches a collection matches
// if any member of that collection does.
func (c *Collection) Filter(ctx context.Context, criteria Criteria) (*Collection, error) {
	return c.filter(ctx, criteria, false)
}

// Exclude returns the members for which no criterion holds.
func (c *Collection) Exclude(ctx context.Context, criteria Criteria) (*Collection, error) {
	return c.filter(ctx, criteria, true)
}

// Get returns the single member matching the criteria.  It returns
// ErrNotFound if there is none and ErrMultipleMatches if there is
// more than one.
func (c *Collection) Get(ctx context.Context, criteria Criteria) (*Resource, error) {
	matched, err := c.Filter(ctx, criteria)
	if err != nil {
		return nil, err
	}
	switch matched.Len() {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matched.At(0), nil
	}
	return nil, ErrMultipleMatches
}

func (c *Collection) filter(ctx context.Context, criteria Criteria, exclude bool) (*Collection, error) {
	keys := make([]string, 0, len(criteria))
	var related []string
	for key := range criteria {
		keys = append(keys, key)
		segments, _ := splitLookup(key)
		if len(segments) > 1 {
			related = append(related, strings.Join(segments, PathSeparator))
		}
	}
	sort.Strings(keys)
	if len(related) > 0 {
		// Failures are logged; the lookups below fetch or fail
		// on their own.
		_ = c.RetrieveRelated(ctx, related, true)
	}
	var result []*Resource
	for _, r := range c.items {
		include := true
		for _, key := range keys {
			segments, op := splitLookup(key)
			matched, err := matchResource(ctx, r, segments, op, criteria[key], exclude)
			if err != nil {
				return nil, err
			}
			if !matched {
				include = false
				break
			}
		}
		if include {
			result = append(result, r)
		}
	}
	return c.derive(result), nil
}

// matchResource decides whether a criterion includes r.  With
// exclude set the sense of the lookup is inverted.
func matchResource(ctx context.Context, r *Resource, segments []string, op string, value interface{}, exclude bool) (bool, error) {
	var current interface{} = r
	for i, segment := range segments {
		res, ok := current.(*Resource)
		if !ok || res == nil {
			return false, ErrAttributeNotFound{Name: segment}
		}
		next, err := res.Get(ctx, segment)
		if err != nil {
			return false, err
		}
		if sub, ok := next.(*Collection); ok && sub != nil {
			rest := segments[i+1:]
			for _, member := range sub.items {
				matched, err := matchResource(ctx, member, rest, op, value, exclude)
				if err != nil {
					return false, err
				}
				if matched {
					return true, nil
				}
			}
			return false, nil
		}
		current = next
	}
	return lookups[op](current, value) != exclude, nil
}

// resolvePath follows a field path from r, fetching resources along
// the way as needed.
func resolvePath(ctx context.Context, r *Resource, path string) (interface{}, error) {
	var current interface{} = r
	for _, segment := range splitPath(path) {
		res, ok := current.(*Resource)
		if !ok || res == nil {
			return nil, ErrAttributeNotFound{Name: segment}
		}
		next, err := res.Get(ctx, segment)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// Group is one bucket produced by Collection.GroupBy().
type Group struct {
	Key     interface{}
	Members *Collection
}

// GroupBy buckets the members by the value at a field path.  Groups
// are returned in the order their keys first appear.
func (c *Collection) GroupBy(ctx context.Context, path string) ([]Group, error) {
	_ = c.RetrieveRelated(ctx, []string{path}, true)
	var groups []Group
	for _, r := range c.items {
		key, err := resolvePath(ctx, r, path)
		if err != nil {
			return nil, err
		}
		found := false
		for _, group := range groups {
			if equalValues(group.Key, key) {
				group.Members.items = append(group.Members.items, r)
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, Group{Key: key, Members: c.derive([]*Resource{r})})
		}
	}
	return groups, nil
}

// OrderBy returns the members sorted by the value at a field path.
// Members with equal keys keep their order; with reverse set, the
// whole sorted list is reversed afterwards.
func (c *Collection) OrderBy(ctx context.Context, path string, reverse bool) (*Collection, error) {
	_ = c.RetrieveRelated(ctx, []string{path}, true)
	type keyed struct {
		key interface{}
		r   *Resource
	}
	entries := make([]keyed, len(c.items))
	for i, r := range c.items {
		key, err := resolvePath(ctx, r, path)
		if err != nil {
			return nil, err
		}
		entries[i] = keyed{key: key, r: r}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		cmp, ok := compareValues(entries[i].key, entries[j].key)
		return ok && cmp < 0
	})
	items := make([]*Resource, len(entries))
	for i, entry := range entries {
		if reverse {
			items[len(entries)-1-i] = entry.r
		} else {
			items[i] = entry.r
		}
	}
	return c.derive(items), nil
}

// ValuesList collects the value at a field path from every member.
// Where a step reaches a collection, the rest of the path is
// followed through each of its members and the results flattened.
func (c *Collection) ValuesList(ctx context.Context, path string) (*Values, error) {
	items, err := valuesOf(ctx, c.items, splitPath(path))
	if err != nil {
		return nil, err
	}
	return &Values{items: items}, nil
}
