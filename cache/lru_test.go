// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type LRUAssertions struct {
	*assert.Assertions
	LRU *lru
}

func NewLRUAssertions(t assert.TestingT, size int) *LRUAssertions {
	return &LRUAssertions{
		assert.New(t),
		newLRU(size),
	}
}

// PutKey adds an item with key to the cache.
func (a *LRUAssertions) PutKey(key string) {
	a.LRU.Put(&Entry{key: key, URL: key})
}

// GetPresent fetches an item with key from the cache; if not present,
// it should produce an assertion error.
func (a *LRUAssertions) GetPresent(key string) {
	item := a.LRU.Get(key)
	if a.NotNil(item) {
		a.Equal(key, item.key)
	}
}

// LRUHas asserts that an item with key is in the cache.
func (a *LRUAssertions) LRUHas(key string) {
	item := a.LRU.Peek(key)
	if a.NotNil(item) {
		a.Equal(key, item.key)
	}
}

// LRUDoesNotHave asserts that no item with key is in the cache.
func (a *LRUAssertions) LRUDoesNotHave(key string) {
	item := a.LRU.Peek(key)
	a.Nil(item)
}

// TestLRUSimple tests minimal object presence.
func TestLRUSimple(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.PutKey("Sam")

	a.LRUHas("Sam")
	a.LRUDoesNotHave("Horton")
	a.Nil(a.LRU.Get("Horton"))
}

// TestLRUEviction tests that adding past capacity evicts the oldest
// item.
func TestLRUEviction(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.PutKey("Marvin")
	a.PutKey("Horton")
	a.LRUHas("Marvin")
	a.LRUHas("Horton")

	// Now add one more key; since it is a third one, the oldest
	// (Marvin) should be evicted
	a.PutKey("Sam")
	a.LRUDoesNotHave("Marvin")
	a.LRUHas("Horton")
	a.LRUHas("Sam")
	a.Equal(2, a.LRU.Len())
}

// TestLRUOrder tests that getting an item causes it to not get evicted.
func TestLRUOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.PutKey("Marvin")
	a.PutKey("Horton")

	// Do an *additional* get for Marvin, so he is more-recently-used
	a.GetPresent("Marvin")

	// Now when we add Sam, Horton gets pushed out
	a.PutKey("Sam")
	a.LRUHas("Marvin")
	a.LRUDoesNotHave("Horton")
	a.LRUHas("Sam")
}

// TestLRUReplace tests that putting an existing key replaces the item
// without growing the cache.
func TestLRUReplace(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.PutKey("Marvin")
	a.LRU.Put(&Entry{key: "Marvin", URL: "replaced"})
	a.Equal(1, a.LRU.Len())
	item := a.LRU.Peek("Marvin")
	if a.NotNil(item) {
		a.Equal("replaced", item.URL)
	}
}

// TestLRURemoval does simple tests on the Remove call.
func TestLRURemoval(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.PutKey("Marvin")
	a.LRUHas("Marvin")
	a.LRU.Remove("Marvin")
	a.LRUDoesNotHave("Marvin")

	a.LRU.Remove("Sam")
	a.LRUDoesNotHave("Sam")

	// Also if we remove a more-recent thing, the
	// older-but-present thing shouldn't get evicted
	a.PutKey("Marvin")
	a.PutKey("Horton")
	a.LRU.Remove("Horton")
	a.PutKey("Sam")
	a.LRUHas("Marvin")
	a.LRUDoesNotHave("Horton")
	a.LRUHas("Sam")
}

// TestLRUEach tests iteration order.
func TestLRUEach(t *testing.T) {
	a := NewLRUAssertions(t, 3)
	a.PutKey("Marvin")
	a.PutKey("Horton")
	a.PutKey("Sam")
	a.GetPresent("Marvin")

	var keys []string
	a.LRU.Each(func(e *Entry) { keys = append(keys, e.key) })
	a.Equal([]string{"Horton", "Sam", "Marvin"}, keys)
}
