// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// MaybeEncodeName makes a record identifier or action name safe to
// use as a single URL path segment.  Names made only of RFC 3986
// unreserved characters pass through unchanged; anything else,
// including the empty string and any name starting with "-", becomes
// "-" followed by unpadded URL-safe base64.
func MaybeEncodeName(name string) string {
	if name == "" || name[0] == '-' {
		return encodeName(name)
	}
	for _, c := range name {
		switch {
		case c == '-', c == '.', c == '_', c == ':',
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9':
		default:
			return encodeName(name)
		}
	}
	return name
}

func encodeName(name string) string {
	return "-" + base64.RawURLEncoding.EncodeToString([]byte(name))
}

// MaybeDecodeName reverses MaybeEncodeName.  A segment that does not
// start with "-" is returned as is; one that does must be valid
// base64 after the sign.
func MaybeDecodeName(segment string) (string, error) {
	if !strings.HasPrefix(segment, "-") {
		return segment, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(segment[1:])
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// StripQuery drops the query string and fragment from a URL.
func StripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// PathSegments returns the non-empty path segments of a URL, ignoring
// its query.  "http://h/nodes/3/?x=1" yields "nodes" and "3".
// Returns nil if the URL does not parse.
func PathSegments(target string) []string {
	u, err := url.Parse(StripQuery(target))
	if err != nil {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Ancestors returns a URL without its query, followed by each of its
// parent paths up to the server root.  "http://h/nodes/3/" yields
// itself, "http://h/nodes/", and "http://h/".  These are the
// collection and root responses a write to the URL makes stale.
func Ancestors(target string) []string {
	u, err := url.Parse(StripQuery(target))
	if err != nil {
		return []string{target}
	}
	result := []string{u.String()}
	path := strings.TrimSuffix(u.Path, "/")
	for path != "" {
		i := strings.LastIndex(path, "/")
		if i < 0 {
			break
		}
		path = path[:i]
		parent := *u
		parent.Path = path + "/"
		result = append(result, parent.String())
	}
	return result
}
