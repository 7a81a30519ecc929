// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a record store
// based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-orm/memory"
	"github.com/diffeo/go-orm/postgres"
	"github.com/diffeo/go-orm/store"
)

// Backend describes user-visible parameters to store records.  This
// implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl:address of record storage")
//         flag.Parse()
//         st, err := backend.Store()
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// implementations lists the names Set() accepts.
var implementations = map[string]bool{
	"memory":   true,
	"postgres": true,
}

// Store creates a new record store.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent sets of records.
func (b *Backend) Store() (store.Store, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(b.Address)
	}
	return nil, fmt.Errorf("unknown backend %q", b.Implementation)
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither this
// nor Store() attempts to validate the b.Address part of the string
// until a connection is actually made.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	if !implementations[parts[0]] {
		return fmt.Errorf("unknown backend %q", parts[0])
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}
