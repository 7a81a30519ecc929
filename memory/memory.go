// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// Store.  There is no persistence on this store, nor is there any
// automatic sharing.  The entire system is behind a single global
// semaphore to protect against concurrent updates; in some cases
// this can limit performance in the name of correctness.
//
// This is mostly intended as a simple reference implementation of
// Store that can be used for testing, including in-process testing
// of higher-level components.  It is generally tuned for
// correctness, not performance or scalability.
package memory

import (
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/store"
)

// New creates a new Store interface that operates purely in memory.
func New() store.Store {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new Store interface that operates purely in
// memory, using a specified time source.  This is generally
// intended for tests that need to control the modification times
// of records.
func NewWithClock(clk clock.Clock) store.Store {
	return &memStore{
		clock: clk,
		kinds: make(map[string]*kind),
	}
}

type memStore struct {
	clock clock.Clock
	kinds map[string]*kind
	sem   sync.Mutex
}

// kind holds every record of a single kind, and the sequence used
// to number new ones.
type kind struct {
	name    string
	lastID  int
	records map[string]*store.Record
}

// getKind finds or creates the named kind.  The caller must hold the
// global lock.
func (s *memStore) getKind(name string) *kind {
	k := s.kinds[name]
	if k == nil {
		k = &kind{
			name:    name,
			records: make(map[string]*store.Record),
		}
		s.kinds[name] = k
	}
	return k
}

// snapshot returns a copy of a record the caller may freely modify.
func snapshot(r *store.Record) store.Record {
	return store.Record{
		Kind:     r.Kind,
		ID:       r.ID,
		Data:     store.CopyData(r.Data),
		Modified: r.Modified,
	}
}

func (s *memStore) Create(kindName string, data map[string]interface{}) (store.Record, error) {
	if kindName == "" {
		return store.Record{}, store.ErrNoKind
	}
	s.sem.Lock()
	defer s.sem.Unlock()

	k := s.getKind(kindName)
	k.lastID++
	record := &store.Record{
		Kind:     kindName,
		ID:       strconv.Itoa(k.lastID),
		Data:     store.CopyData(data),
		Modified: s.clock.Now(),
	}
	k.records[record.ID] = record
	return snapshot(record), nil
}

func (s *memStore) Get(kindName, id string) (store.Record, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	record := s.getKind(kindName).records[id]
	if record == nil {
		return store.Record{}, store.ErrNoSuchRecord{Kind: kindName, ID: id}
	}
	return snapshot(record), nil
}

func (s *memStore) List(kindName string) ([]store.Record, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	k := s.getKind(kindName)
	result := make([]store.Record, 0, len(k.records))
	for _, record := range k.records {
		result = append(result, snapshot(record))
	}
	store.SortRecords(result)
	return result, nil
}

func (s *memStore) Update(kindName, id string, data map[string]interface{}, partial bool) (store.Record, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	record := s.getKind(kindName).records[id]
	if record == nil {
		return store.Record{}, store.ErrNoSuchRecord{Kind: kindName, ID: id}
	}
	if partial {
		record.Data = store.MergeData(record.Data, data)
	} else {
		record.Data = store.CopyData(data)
	}
	record.Modified = s.clock.Now()
	return snapshot(record), nil
}

func (s *memStore) Delete(kindName, id string) error {
	s.sem.Lock()
	defer s.sem.Unlock()

	k := s.getKind(kindName)
	if k.records[id] == nil {
		return store.ErrNoSuchRecord{Kind: kindName, ID: id}
	}
	delete(k.records, id)
	return nil
}

func (s *memStore) Count() (map[string]int, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	result := make(map[string]int, len(s.kinds))
	for name, k := range s.kinds {
		result[name] = len(k.records)
	}
	return result, nil
}
