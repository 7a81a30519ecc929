// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package store defines the persistence interface behind the REST
// server.  A Store holds records, each of which is a JSON-like map of
// data filed under a kind (for instance "node") and an identifier
// assigned by the store.
//
// The memory package provides an in-process implementation, and the
// postgres package an implementation backed by a PostgreSQL database.
// The backend package chooses between them from a command-line flag.
package store

import (
	"sort"
	"strconv"
	"time"
)

// Record is a single stored object.
type Record struct {
	// Kind is the name of the collection the record belongs to.
	Kind string

	// ID is the store-assigned identifier of the record, unique
	// within its kind.
	ID string

	// Data holds the record's fields.  It never contains server
	// computed fields such as "url".
	Data map[string]interface{}

	// Modified is the time the record was created or last changed.
	Modified time.Time
}

// Store is the top-level persistence interface.
type Store interface {
	// Create adds a new record of some kind, assigning it a new
	// identifier.
	Create(kind string, data map[string]interface{}) (Record, error)

	// Get retrieves a single record.  If it does not exist,
	// returns ErrNoSuchRecord.
	Get(kind, id string) (Record, error)

	// List retrieves every record of some kind, ordered by
	// identifier.
	List(kind string) ([]Record, error)

	// Update changes the data of an existing record.  If partial
	// is true, the keys in data are merged into the existing
	// data; otherwise data replaces it outright.
	Update(kind, id string, data map[string]interface{}, partial bool) (Record, error)

	// Delete removes a record.  If it does not exist, returns
	// ErrNoSuchRecord.
	Delete(kind, id string) error

	// Count returns the number of records of each kind that has
	// ever held records.
	Count() (map[string]int, error)
}

// CopyData makes a deep copy of a record's data.  Nested maps and
// lists are copied; other values are shared.
func CopyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		return CopyData(vv)
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, item := range vv {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}

// MergeData produces the result of a partial update: a copy of
// existing with every key in changes replaced.
func MergeData(existing, changes map[string]interface{}) map[string]interface{} {
	out := CopyData(existing)
	for k, v := range changes {
		out[k] = copyValue(v)
	}
	return out
}

// SortRecords orders records by identifier.  Identifiers that are
// integers sort numerically before any that are not.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ni, erri := strconv.Atoi(records[i].ID)
		nj, errj := strconv.Atoi(records[j].ID)
		switch {
		case erri == nil && errj == nil:
			return ni < nj
		case erri == nil:
			return true
		case errj == nil:
			return false
		}
		return records[i].ID < records[j].ID
	})
}
