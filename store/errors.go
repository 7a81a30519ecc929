// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"errors"
	"fmt"
)

// ErrNoKind is returned from Store.Create() and similar calls given
// an empty kind name.
var ErrNoKind = errors.New("No record kind given")

// ErrNoSuchRecord is returned by Store.Get() and similar functions
// that want to look up a record, but cannot find it.
type ErrNoSuchRecord struct {
	Kind string
	ID   string
}

func (err ErrNoSuchRecord) Error() string {
	return fmt.Sprintf("No such %v %v", err.Kind, err.ID)
}
