// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache holds HTTP responses for the REST client.  Entries are
// keyed by a fingerprint of the request that produced them, and can be
// invalidated by URL when a write makes them stale; an invalid entry
// is kept so that its entity tag can be used for a conditional
// request.
//
// Hits and misses are counted as follows.  Every Get() that finds an
// entry is a hit and increments that entry's access count, whether or
// not the entry is still valid.  Every Get() that finds nothing is a
// miss.  A hit on an invalid entry is additionally counted as a
// revalidation, since the caller is expected to make a conditional
// request with it.  Put() never changes the counters.
package cache

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/restdata"
)

// DefaultSize is the capacity of a cache created with a non-positive
// size.
const DefaultSize = 1024

// Entry is a single cached response.
type Entry struct {
	// Response is the cached response itself.
	Response *restdata.Response

	// URL is the request URL that produced the response.
	URL string

	// Valid is false once the entry has been invalidated by a
	// write to its URL.
	Valid bool

	// Accesses counts the number of times Get() has found this
	// entry since it was stored.
	Accesses int

	// StoredAt is the time the entry was stored or last
	// revalidated.
	StoredAt time.Time

	key string
}

// Cache is a concurrency-safe store of HTTP responses.
type Cache struct {
	mu            sync.Mutex
	lru           *lru
	clock         clock.Clock
	hits          int
	misses        int
	revalidations int
}

// New creates a new cache holding at most size entries.  If clk is
// nil, uses the system clock.
func New(size int, clk clock.Clock) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{
		lru:   newLRU(size),
		clock: clk,
	}
}

// ignoredHeaders do not distinguish otherwise-identical requests.
var ignoredHeaders = map[string]bool{
	"If-None-Match": true,
}

// Key produces the cache key for a request.  Requests with the same
// method, URL, and headers share a key; the If-None-Match: header is
// ignored so that a conditional request maps to the entry it is
// revalidating.
func Key(method, url string, header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		canonical := http.CanonicalHeaderKey(name)
		if !ignoredHeaders[canonical] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := []string{strings.ToUpper(method) + " " + url}
	for _, name := range names {
		parts = append(parts, http.CanonicalHeaderKey(name)+": "+strings.Join(header[name], ", "))
	}
	return strings.Join(parts, "\n")
}

// Get looks up a cached response.  If one is present, returns a copy
// of its entry and true.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.lru.Get(key)
	if entry == nil {
		c.misses++
		return Entry{}, false
	}
	c.hits++
	if !entry.Valid {
		c.revalidations++
	}
	entry.Accesses++
	return *entry, true
}

// Put stores a response, replacing any existing entry with the same
// key.  The new entry is valid and has not been accessed.
func (c *Cache) Put(key, url string, response *restdata.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Put(&Entry{
		Response: response,
		URL:      url,
		Valid:    true,
		StoredAt: c.clock.Now(),
		key:      key,
	})
}

// Revalidate marks an entry valid again, typically after a
// conditional request answered "not modified".  Returns false if
// there is no such entry.
func (c *Cache) Revalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.lru.Peek(key)
	if entry == nil {
		return false
	}
	entry.Valid = true
	entry.StoredAt = c.clock.Now()
	return true
}

// Invalidate marks every entry for url as invalid, or every entry at
// all if url is empty.  Returns the number of entries changed.
func (c *Cache) Invalidate(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	c.lru.Each(func(entry *Entry) {
		if url == "" || entry.URL == url {
			entry.Valid = false
			count++
		}
	})
	return count
}

// InvalidateMatching marks every entry whose URL satisfies match as
// invalid.  Returns the number of entries changed.
func (c *Cache) InvalidateMatching(match func(url string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	c.lru.Each(func(entry *Entry) {
		if match(entry.URL) {
			entry.Valid = false
			count++
		}
	})
	return count
}

// Remove drops every entry for url, or every entry at all if url is
// empty.  Returns the number of entries removed.
func (c *Cache) Remove(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	c.lru.Each(func(entry *Entry) {
		if url == "" || entry.URL == url {
			keys = append(keys, entry.key)
		}
	})
	for _, key := range keys {
		c.lru.Remove(key)
	}
	return len(keys)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Hits returns the number of lookups that found an entry.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Misses returns the number of lookups that found nothing.
func (c *Cache) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Revalidations returns the number of lookups that found an invalid
// entry.
func (c *Cache) Revalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revalidations
}
