// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache.  I know of at least two
// other implementations, though it is a pretty simple concept; this
// one additionally needs to walk every entry to invalidate all of
// the cached responses for a URL.

import (
	"container/list"
	"sync"
)

// lru is a least-recently-used cache of entries with a fixed
// capacity.  The cache can be safely accessed from multiple
// goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache, marking it most recently
// used, or returns nil if it is absent.
func (lru *lru) Get(key string) *Entry {
	// This sadly happens under a writer lock, since we need to move
	// the item to the back of the list if it is present
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		lru.evictList.MoveToBack(element)
		return element.Value.(*Entry)
	}
	return nil
}

// Peek looks for an item in the cache and returns it if present, or
// returns nil if absent.  This runs under a reader lock, and so can
// run concurrently with itself but not calls to Put or Get.  This
// does not affect the recency of the item.
func (lru *lru) Peek(key string) *Entry {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[key]; present {
		return element.Value.(*Entry)
	}
	return nil
}

// Put adds an item to the LRU cache, possibly evicting something.
func (lru *lru) Put(item *Entry) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := lru.index[item.key]; present {
		element.Value = item
		lru.evictList.MoveToBack(element)
		return
	}

	// Otherwise add it
	element := lru.evictList.PushBack(item)
	lru.index[item.key] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(*Entry).key)
		lru.evictList.Remove(head)
	}
}

// Remove takes an item out of the cache.  It does nothing if that
// key does not exist.
func (lru *lru) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		delete(lru.index, key)
		lru.evictList.Remove(element)
	}
}

// Each calls f on every item in the cache, least recently used
// first.  f must not call back into the cache.
func (lru *lru) Each(f func(*Entry)) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	for element := lru.evictList.Front(); element != nil; element = element.Next() {
		f(element.Value.(*Entry))
	}
}

// Len returns the number of items in the cache.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}
