// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"fmt"
	"reflect"
	"strings"
)

// PathSeparator joins the segments of a field path, as in
// "group__name".  A "." is accepted as well.
const PathSeparator = "__"

// splitPath breaks a field path into its segments.
func splitPath(path string) []string {
	path = strings.Replace(path, ".", PathSeparator, -1)
	return strings.Split(path, PathSeparator)
}

// splitLookup breaks a filter key into its field path and lookup
// operator.  A key with no operator uses "exact".
func splitLookup(key string) ([]string, string) {
	segments := splitPath(key)
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		if _, ok := lookups[last]; ok {
			return segments[:len(segments)-1], last
		}
	}
	return segments, "exact"
}

// lookupFunc compares a field value a against a criterion value b.
type lookupFunc func(a, b interface{}) bool

// lookups maps the name of a lookup operator to its implementation.
var lookups = map[string]lookupFunc{
	"exact": equalValues,
	"iexact": func(a, b interface{}) bool {
		return stringLookup(a, b, func(x, y string) bool { return strings.ToLower(x) == strings.ToLower(y) })
	},
	"lt":  ordered(func(c int) bool { return c < 0 }),
	"lte": ordered(func(c int) bool { return c <= 0 }),
	"gt":  ordered(func(c int) bool { return c > 0 }),
	"gte": ordered(func(c int) bool { return c >= 0 }),
	"in": func(a, b interface{}) bool {
		return containsValue(b, a)
	},
	"contains": func(a, b interface{}) bool {
		if sa, ok := a.(string); ok {
			sb, ok := b.(string)
			return ok && strings.Contains(sa, sb)
		}
		return containsValue(a, b)
	},
	"icontains": func(a, b interface{}) bool {
		return stringLookup(a, b, func(x, y string) bool { return strings.Contains(strings.ToLower(x), strings.ToLower(y)) })
	},
	"startswith": func(a, b interface{}) bool {
		return stringLookup(a, b, strings.HasPrefix)
	},
	"istartswith": func(a, b interface{}) bool {
		return stringLookup(a, b, func(x, y string) bool { return strings.HasPrefix(strings.ToLower(x), strings.ToLower(y)) })
	},
	"endswith": func(a, b interface{}) bool {
		return stringLookup(a, b, strings.HasSuffix)
	},
	"iendswith": func(a, b interface{}) bool {
		return stringLookup(a, b, func(x, y string) bool { return strings.HasSuffix(strings.ToLower(x), strings.ToLower(y)) })
	},
	"isnull": func(a, b interface{}) bool {
		want, ok := b.(bool)
		return ok && isNull(a) == want
	},
}

func stringLookup(a, b interface{}, f func(string, string) bool) bool {
	sa, ok := a.(string)
	if !ok {
		return false
	}
	sb, ok := b.(string)
	return ok && f(sa, sb)
}

func ordered(f func(int) bool) lookupFunc {
	return func(a, b interface{}) bool {
		c, ok := compareValues(a, b)
		return ok && f(c)
	}
}

func isNull(v interface{}) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case *Resource:
		return vv == nil
	case *Collection:
		return vv == nil
	}
	return false
}

// toFloat converts any Go numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// equalValues compares field values.  Numbers compare by value
// whatever their Go type, resources compare with Resource.Equal(),
// and a resource equals a string holding its URL.
func equalValues(a, b interface{}) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ra, ok := a.(*Resource); ok {
		switch vb := b.(type) {
		case *Resource:
			return ra.Equal(vb)
		case string:
			return ra.url != "" && ra.url == vb
		}
		return false
	}
	if rb, ok := b.(*Resource); ok {
		sa, ok := a.(string)
		return ok && rb.url != "" && rb.url == sa
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two field values, returning a negative
// number, zero, or a positive number.  Null sorts before everything
// else.  The second return value is false if the values cannot be
// ordered.
func compareValues(a, b interface{}) (int, bool) {
	switch {
	case isNull(a) && isNull(b):
		return 0, true
	case isNull(a):
		return -1, true
	case isNull(b):
		return 1, true
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(va, vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		}
		return 1, true
	case *Resource:
		vb, ok := b.(*Resource)
		if !ok {
			return 0, false
		}
		return strings.Compare(va.url, vb.url), true
	}
	return 0, false
}

// containsValue checks whether a list-like value holds an item.
func containsValue(container, item interface{}) bool {
	switch c := container.(type) {
	case nil:
		return false
	case *Collection:
		if c == nil {
			return false
		}
		for _, member := range c.items {
			if equalValues(member, item) {
				return true
			}
		}
		return false
	case *Values:
		if c == nil {
			return false
		}
		for _, v := range c.items {
			if equalValues(v, item) {
				return true
			}
		}
		return false
	case string:
		s, ok := item.(string)
		return ok && strings.Contains(c, s)
	}
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if equalValues(rv.Index(i).Interface(), item) {
				return true
			}
		}
	}
	return false
}

// valueString renders a field value for a query string.
func valueString(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case *Resource:
		if vv == nil {
			return ""
		}
		return vv.url
	}
	return fmt.Sprint(v)
}
