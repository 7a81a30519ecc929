// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storetest provides generic functional tests for the Store
// interface.  A typical backend test module needs to wrap Suite to
// create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-orm/store/storetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             storetest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.Store = NewWithClock(s.Clock)
//     }
//
//     // TestStore runs the Store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package storetest

import (
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/store"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic Store backend test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in tests.  It
	// is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Store contains the top-level interface to the backend under
	// test.  It is set by importing packages.
	Store store.Store

	// prefix is prepended to every record kind, so that repeated
	// runs against a persistent backend start out empty.
	prefix string
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
	s.prefix = "t" + strings.Replace(uuid.NewV4().String(), "-", "", -1)[:8]
}

// kind returns a record kind unique to the running test, so that
// backends with persistent state do not see other tests' records.
func (s *Suite) kind(suffix string) string {
	name := strings.Replace(s.T().Name(), "/", "_", -1)
	return s.prefix + "_" + strings.ToLower(name) + "_" + suffix
}

// DataMatches checks that a record's data matches an expected value.
// Numbers are compared after conversion, since some backends
// round-trip data through JSON.
func (s *Suite) DataMatches(expected map[string]interface{}, record store.Record) {
	for key, value := range expected {
		if s.Contains(record.Data, key, "missing data[%q]", key) {
			s.EqualValues(value, record.Data[key], "data[%q]", key)
		}
	}
	for key := range record.Data {
		s.Contains(expected, key, "extra data[%q]", key)
	}
}

// TestCreateGet creates a record and reads it back.
func (s *Suite) TestCreateGet() {
	kind := s.kind("node")
	data := map[string]interface{}{
		"name":    "n1",
		"enabled": true,
	}
	created, err := s.Store.Create(kind, data)
	if !s.NoError(err) {
		return
	}
	s.Equal(kind, created.Kind)
	s.NotEmpty(created.ID)
	s.DataMatches(data, created)
	s.True(created.Modified.Equal(s.Clock.Now()),
		"modified %v, now %v", created.Modified, s.Clock.Now())

	fetched, err := s.Store.Get(kind, created.ID)
	if s.NoError(err) {
		s.Equal(created.ID, fetched.ID)
		s.DataMatches(data, fetched)
	}
}

// TestCreateCopies checks that changing the caller's map after a
// create does not change the stored record.
func (s *Suite) TestCreateCopies() {
	kind := s.kind("node")
	data := map[string]interface{}{"name": "n1"}
	created, err := s.Store.Create(kind, data)
	if !s.NoError(err) {
		return
	}
	data["name"] = "changed"
	fetched, err := s.Store.Get(kind, created.ID)
	if s.NoError(err) {
		s.Equal("n1", fetched.Data["name"])
	}
}

// TestCreateNoKind checks that an empty kind is rejected.
func (s *Suite) TestCreateNoKind() {
	_, err := s.Store.Create("", map[string]interface{}{})
	s.Equal(store.ErrNoKind, err)
}

// TestGetMissing checks the error returned for unknown records.
func (s *Suite) TestGetMissing() {
	kind := s.kind("node")
	_, err := s.Store.Get(kind, "17")
	s.Equal(store.ErrNoSuchRecord{Kind: kind, ID: "17"}, err)

	_, err = s.Store.Get(kind, "not-a-number")
	s.Equal(store.ErrNoSuchRecord{Kind: kind, ID: "not-a-number"}, err)
}

// TestList checks that records are listed in creation order and
// that kinds are independent.
func (s *Suite) TestList() {
	nodes := s.kind("node")
	zones := s.kind("zone")

	records, err := s.Store.List(nodes)
	if s.NoError(err) {
		s.Empty(records)
	}

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		record, err := s.Store.Create(nodes, map[string]interface{}{"name": name})
		if !s.NoError(err) {
			return
		}
		ids = append(ids, record.ID)
	}
	_, err = s.Store.Create(zones, map[string]interface{}{"name": "z"})
	s.NoError(err)

	records, err = s.Store.List(nodes)
	if s.NoError(err) && s.Len(records, 3) {
		for i, record := range records {
			s.Equal(ids[i], record.ID)
			s.Equal(nodes, record.Kind)
		}
		s.Equal("a", records[0].Data["name"])
		s.Equal("c", records[2].Data["name"])
	}

	records, err = s.Store.List(zones)
	if s.NoError(err) {
		s.Len(records, 1)
	}
}

// TestUpdateFull checks that a non-partial update replaces the data.
func (s *Suite) TestUpdateFull() {
	kind := s.kind("node")
	created, err := s.Store.Create(kind, map[string]interface{}{
		"name":    "n1",
		"enabled": true,
	})
	if !s.NoError(err) {
		return
	}

	s.Clock.Add(5 * time.Second)
	updated, err := s.Store.Update(kind, created.ID, map[string]interface{}{
		"name": "n2",
	}, false)
	if s.NoError(err) {
		s.DataMatches(map[string]interface{}{"name": "n2"}, updated)
		s.True(updated.Modified.Equal(s.Clock.Now()))
	}

	fetched, err := s.Store.Get(kind, created.ID)
	if s.NoError(err) {
		s.DataMatches(map[string]interface{}{"name": "n2"}, fetched)
	}
}

// TestUpdatePartial checks that a partial update merges the data.
func (s *Suite) TestUpdatePartial() {
	kind := s.kind("node")
	created, err := s.Store.Create(kind, map[string]interface{}{
		"name":    "n1",
		"enabled": true,
	})
	if !s.NoError(err) {
		return
	}

	updated, err := s.Store.Update(kind, created.ID, map[string]interface{}{
		"enabled": false,
		"tags":    []interface{}{"x", "y"},
	}, true)
	if s.NoError(err) {
		s.DataMatches(map[string]interface{}{
			"name":    "n1",
			"enabled": false,
			"tags":    []interface{}{"x", "y"},
		}, updated)
	}
}

// TestUpdateMissing checks updating an unknown record.
func (s *Suite) TestUpdateMissing() {
	kind := s.kind("node")
	_, err := s.Store.Update(kind, "99", map[string]interface{}{}, true)
	s.Equal(store.ErrNoSuchRecord{Kind: kind, ID: "99"}, err)
}

// TestDelete checks record deletion.
func (s *Suite) TestDelete() {
	kind := s.kind("node")
	created, err := s.Store.Create(kind, map[string]interface{}{"name": "n1"})
	if !s.NoError(err) {
		return
	}

	err = s.Store.Delete(kind, created.ID)
	s.NoError(err)

	_, err = s.Store.Get(kind, created.ID)
	s.Equal(store.ErrNoSuchRecord{Kind: kind, ID: created.ID}, err)

	err = s.Store.Delete(kind, created.ID)
	s.Equal(store.ErrNoSuchRecord{Kind: kind, ID: created.ID}, err)
}

// TestIDsNotReused checks that a deleted record's identifier is not
// handed out again.
func (s *Suite) TestIDsNotReused() {
	kind := s.kind("node")
	first, err := s.Store.Create(kind, map[string]interface{}{})
	if !s.NoError(err) {
		return
	}
	s.NoError(s.Store.Delete(kind, first.ID))
	second, err := s.Store.Create(kind, map[string]interface{}{})
	if s.NoError(err) {
		s.NotEqual(first.ID, second.ID)
	}
}

// TestCount checks per-kind record counts.
func (s *Suite) TestCount() {
	nodes := s.kind("node")
	zones := s.kind("zone")
	for i := 0; i < 3; i++ {
		_, err := s.Store.Create(nodes, map[string]interface{}{})
		s.NoError(err)
	}
	_, err := s.Store.Create(zones, map[string]interface{}{})
	s.NoError(err)

	counts, err := s.Store.Count()
	if s.NoError(err) {
		s.Equal(3, counts[nodes])
		s.Equal(1, counts[zones])
	}
}
