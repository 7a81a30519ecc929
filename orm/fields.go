// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"strings"
)

// Fields holds the field data of a resource: a JSON-like map, whose
// values may also be *Resource and *Collection objects.
type Fields map[string]interface{}

// isURL decides whether a field value refers to another resource.
func isURL(value interface{}) bool {
	s, ok := value.(string)
	return ok && strings.HasPrefix(s, "http")
}

// promote converts a raw field value of parent into the object it
// represents.  URL strings become unretrieved Resources; objects
// become embedded Resources; lists of either, and empty lists,
// become related Collections.  Anything else is returned unchanged.
func promote(client Client, parent *Resource, name string, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if name != "url" && isURL(v) {
			return newReference(client, v)
		}
	case map[string]interface{}:
		return newResource(client, Fields(v))
	case Fields:
		return newResource(client, v)
	case []*Resource:
		return NewRelatedCollection(parent, name, v)
	case []interface{}:
		items := make([]*Resource, 0, len(v))
		for _, item := range v {
			switch iv := item.(type) {
			case string:
				if !isURL(iv) {
					return value
				}
				items = append(items, newReference(client, iv))
			case map[string]interface{}:
				items = append(items, newResource(client, Fields(iv)))
			case *Resource:
				items = append(items, iv)
			default:
				return value
			}
		}
		return NewRelatedCollection(parent, name, items)
	}
	return value
}

// SerializeValue converts a field value to plain data suitable for a
// request body.  Resources with a URL become that URL, other
// Resources become their field maps, and Collections become lists.
func SerializeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *Resource:
		if v == nil {
			return nil
		}
		return v.SerializeNested()
	case *Collection:
		if v == nil {
			return nil
		}
		return v.Serialize(true)
	case Fields:
		return serializeMap(v)
	case map[string]interface{}:
		return serializeMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = SerializeValue(item)
		}
		return out
	}
	return value
}

func serializeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = SerializeValue(v)
	}
	return out
}

// SerializeFields converts a set of fields to plain data, as
// SerializeValue does for each value.
func SerializeFields(fields Fields) map[string]interface{} {
	if fields == nil {
		return map[string]interface{}{}
	}
	return serializeMap(fields)
}
