// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package orm treats the resources of a hypermedia REST API as local
// objects.
//
// A Resource is a schema-free proxy for one remote entity.  Its
// fields are whatever the server returned; fields whose value is a
// URL are themselves Resources, initially holding only that URL, and
// fields whose value is a list of URLs are Collections of them.
// Looking up a field a Resource does not have yet fetches the full
// representation:
//
//     node, err := api.RetrieveResource(ctx, "http://host/nodes/1/", nil)
//     group, err := node.Get(ctx, "group")  // a *Resource holding a URL
//     name, err := group.(*orm.Resource).Get(ctx, "name")  // fetches the group
//
// Code that must not block can call TryGet() instead, which reports
// whether the field is present, absent, or would need a fetch.
//
// The Link: header of a response names related endpoints.  Each one
// becomes a Manager attached to the Resource under a name derived by
// restdata.RelationName(), so the root document of an API has a
// Manager for every collection the server offers.
//
// A Collection is an ordered list of Resources.  Collections filter,
// group, sort, and project their members client-side, using Django
// style paths:
//
//     nodes.Filter(ctx, orm.Criteria{"group__name__startswith": "lab"})
//
// and dispatch retrieves, updates, and deletes of every member
// concurrently, reporting per-member success and failure.
// RetrieveRelated() fetches whole relation paths across many
// resources at once, never fetching the same URL twice.
//
// Nothing in this package talks HTTP directly; it goes through the
// Client interface, which the restclient package implements.
// Resources and Collections are not safe for concurrent mutation.
package orm
