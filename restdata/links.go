// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"sort"
	"strings"
)

// ParseLinks parses an RFC 5988 Link: header into a map from relation
// name to URL.  The header is a comma-separated list of entries of
// the form
//
//     <http://host/nodes/>; rel="node-list"
//
// Entries without both a bracketed URL and a quoted relation are
// skipped.
func ParseLinks(header string) map[string]string {
	links := make(map[string]string)
	for _, entry := range strings.Split(header, ",") {
		start := strings.Index(entry, "<")
		end := strings.Index(entry, ">")
		if start < 0 || end < start {
			continue
		}
		link := entry[start+1 : end]
		relation := ""
		for _, param := range strings.Split(entry[end+1:], ";") {
			param = strings.TrimSpace(param)
			if strings.HasPrefix(param, "rel=") {
				relation = strings.Trim(param[len("rel="):], "\"")
			}
		}
		if relation == "" {
			continue
		}
		links[relation] = link
	}
	return links
}

// FormatLinks produces a Link: header value from a map of relation
// name to URL.  Relations are emitted in sorted order.
func FormatLinks(links map[string]string) string {
	relations := make([]string, 0, len(links))
	for relation := range links {
		relations = append(relations, relation)
	}
	sort.Strings(relations)
	entries := make([]string, len(relations))
	for i, relation := range relations {
		entries[i] = fmt.Sprintf("<%s>; rel=\"%s\"", links[relation], relation)
	}
	return strings.Join(entries, ", ")
}

// RelationName converts a link relation token to the attribute name
// it is exposed under.  Supported forms are
//
//     mailalias-list        mailaliases
//     node-detail           node
//     zone-refresh-serial   refresh_serial
//
// A "-list" suffix pluralizes the prefix, a "-detail" suffix yields
// the bare prefix, and anything else yields everything after the
// first hyphen.  Remaining hyphens become underscores.
func RelationName(relation string) string {
	var name string
	switch {
	case strings.HasSuffix(relation, "-list"):
		name = strings.TrimSuffix(relation, "-list")
		if strings.HasSuffix(name, "s") {
			name += "es"
		} else {
			name += "s"
		}
	case strings.HasSuffix(relation, "-detail"):
		name = strings.TrimSuffix(relation, "-detail")
	default:
		if i := strings.Index(relation, "-"); i >= 0 {
			name = relation[i+1:]
		}
	}
	return strings.Replace(name, "-", "_", -1)
}

// Singular undoes the pluralization RelationName applies to "-list"
// relations: "mailaliases" becomes "mailalias" and "nodes" becomes
// "node".
func Singular(plural string) string {
	switch {
	case strings.HasSuffix(plural, "ses"):
		return strings.TrimSuffix(plural, "es")
	case strings.HasSuffix(plural, "s"):
		return strings.TrimSuffix(plural, "s")
	}
	return plural
}
