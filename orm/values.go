// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
)

// Values is the result of Collection.ValuesList(): a list of field
// values, which may be plain data, resources, or collections.
type Values struct {
	items []interface{}
}

// NewValues wraps a list of values.
func NewValues(items []interface{}) *Values {
	return &Values{items: items}
}

// Len returns the number of values.
func (v *Values) Len() int {
	return len(v.items)
}

// At returns the value at index i.
func (v *Values) At(i int) interface{} {
	return v.items[i]
}

// Items returns a copy of the values.
func (v *Values) Items() []interface{} {
	return append([]interface{}(nil), v.items...)
}

// Distinct drops repeated values, keeping the first of each.
func (v *Values) Distinct() *Values {
	var result []interface{}
	for _, item := range v.items {
		duplicate := false
		for _, seen := range result {
			if equalValues(seen, item) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, item)
		}
	}
	return &Values{items: result}
}

// ValuesList follows a further field path through every value.
func (v *Values) ValuesList(ctx context.Context, path string) (*Values, error) {
	var result []interface{}
	segments := splitPath(path)
	for _, item := range v.items {
		values, err := valueAt(ctx, item, segments)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	return &Values{items: result}, nil
}

// Collection turns a list of resources back into a collection, so
// it can be filtered or operated on in bulk.
func (v *Values) Collection() (*Collection, error) {
	items := make([]*Resource, 0, len(v.items))
	var client Client
	for _, item := range v.items {
		r, ok := item.(*Resource)
		if !ok || r == nil {
			return nil, ErrUnexpectedContent{Expected: "resources"}
		}
		if client == nil {
			client = r.client
		}
		items = append(items, r)
	}
	return &Collection{kind: plainCollection, items: items, client: client}, nil
}

func valuesOf(ctx context.Context, items []*Resource, segments []string) ([]interface{}, error) {
	var result []interface{}
	for _, r := range items {
		values, err := valueAt(ctx, r, segments)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	return result, nil
}

// valueAt follows segments from item.  A collection met before the
// path is used up fans out over its members.
func valueAt(ctx context.Context, item interface{}, segments []string) ([]interface{}, error) {
	current := item
	for i, segment := range segments {
		switch v := current.(type) {
		case *Collection:
			return valuesOf(ctx, v.items, segments[i:])
		case *Values:
			var result []interface{}
			for _, member := range v.items {
				values, err := valueAt(ctx, member, segments[i:])
				if err != nil {
					return nil, err
				}
				result = append(result, values...)
			}
			return result, nil
		case *Resource:
			if v == nil {
				return nil, ErrAttributeNotFound{Name: segment}
			}
			next, err := v.Get(ctx, segment)
			if err != nil {
				return nil, err
			}
			current = next
		default:
			return nil, ErrAttributeNotFound{Name: segment}
		}
	}
	return []interface{}{current}, nil
}
