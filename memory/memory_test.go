// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"testing"

	"github.com/diffeo/go-orm/store/storetest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic store tests against the in-memory backend.
type Suite struct {
	storetest.Suite
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Store = NewWithClock(s.Clock)
}

// TestStore runs the Store generic tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}
