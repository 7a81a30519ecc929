// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Operation is a per-member request Collection.Bulk() can make.
type Operation int

const (
	// OpDestroy deletes each member.
	OpDestroy Operation = iota

	// OpPartialUpdate changes some fields of each member.
	OpPartialUpdate

	// OpUpdate replaces each member.
	OpUpdate
)

func (op Operation) String() string {
	switch op {
	case OpDestroy:
		return "destroy"
	case OpPartialUpdate:
		return "partial_update"
	case OpUpdate:
		return "update"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

func (op Operation) apply(ctx context.Context, r *Resource, fields Fields) (*Resource, error) {
	switch op {
	case OpDestroy:
		return nil, r.client.Destroy(ctx, r.url)
	case OpPartialUpdate:
		return r.client.PartialUpdate(ctx, r.url, fields)
	case OpUpdate:
		return r.client.Update(ctx, r.url, fields)
	}
	return nil, fmt.Errorf("unknown bulk operation %v", op)
}

// Failure records one member a bulk operation failed on.
type Failure struct {
	Resource *Resource
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%v: %v", f.Resource.url, f.Err)
}

type bulkOptions struct {
	merge bool
	limit int
}

// BulkOption changes how Collection.Bulk() runs.
type BulkOption func(*bulkOptions)

// WithoutMerge leaves members unchanged after a successful request,
// rather than merging the server's response into them.
func WithoutMerge() BulkOption {
	return func(o *bulkOptions) { o.merge = false }
}

// Sequential runs one request at a time.
func Sequential() BulkOption {
	return WithConcurrency(1)
}

// WithConcurrency limits the number of requests in flight.  Zero
// means no limit.
func WithConcurrency(n int) BulkOption {
	return func(o *bulkOptions) { o.limit = n }
}

func (c *Collection) bulkOptions(opts []BulkOption) bulkOptions {
	options := bulkOptions{merge: true, limit: c.concurrency()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Bulk runs one operation on every member.  Requests go out
// concurrently, up to the client's concurrency limit.  A failure on
// one member does not stop the others; the result partitions the
// members into those that succeeded, in collection order, and those
// that failed.  Each failure is also logged.  Unless WithoutMerge()
// is given, successful responses are merged into their members once
// every request has finished.
func (c *Collection) Bulk(ctx context.Context, op Operation, fields Fields, opts ...BulkOption) ([]*Resource, []Failure) {
	options := c.bulkOptions(opts)
	members := uniqueResources(c.items)
	results := make([]*Resource, len(members))
	errs := make([]error, len(members))

	var g errgroup.Group
	if options.limit > 0 {
		g.SetLimit(options.limit)
	}
	for i, r := range members {
		if r.client == nil || r.url == "" {
			errs[i] = ErrUnboundResource
			continue
		}
		g.Go(func() error {
			results[i], errs[i] = op.apply(ctx, r, fields)
			return nil
		})
	}
	_ = g.Wait()

	var (
		succeeded []*Resource
		failed    []Failure
	)
	logger := c.logger()
	for i, r := range members {
		if errs[i] != nil {
			logger.WithError(errs[i]).
				WithField("url", r.url).
				WithField("operation", op.String()).
				Error("bulk operation failed")
			failed = append(failed, Failure{Resource: r, Err: errs[i]})
			continue
		}
		if options.merge && results[i] != nil {
			r.Merge(results[i])
		}
		succeeded = append(succeeded, r)
	}
	return succeeded, failed
}

// Destroy deletes every member.  Members stay in the collection.
func (c *Collection) Destroy(ctx context.Context, opts ...BulkOption) ([]*Resource, []Failure) {
	return c.Bulk(ctx, OpDestroy, nil, append([]BulkOption{WithoutMerge()}, opts...)...)
}

// Update changes the same fields on every member.
func (c *Collection) Update(ctx context.Context, fields Fields, opts ...BulkOption) ([]*Resource, []Failure) {
	return c.Bulk(ctx, OpPartialUpdate, fields, opts...)
}

// Retrieve fetches every member concurrently and merges the results
// in.  For a related collection, the parent resource is retrieved
// first and the collection takes the parent's current membership.
// All failures are returned together.
func (c *Collection) Retrieve(ctx context.Context, opts ...BulkOption) error {
	if c.kind == relatedCollection {
		if c.parent == nil {
			return ErrUnboundResource
		}
		if err := c.parent.Retrieve(ctx, true); err != nil {
			return err
		}
		value, state := c.parent.TryGet(c.relatedName)
		if state != Found {
			return ErrAttributeNotFound{Name: c.relatedName, URL: c.parent.url}
		}
		fresh, ok := value.(*Collection)
		if !ok {
			return ErrUnexpectedContent{URL: c.parent.url, Expected: "a list for " + c.relatedName}
		}
		if fresh != c {
			c.items = fresh.items
		}
	}

	options := c.bulkOptions(opts)
	var (
		g      errgroup.Group
		errs   = make([]error, 0)
		errsCh = make(chan error, len(c.items))
	)
	if options.limit > 0 {
		g.SetLimit(options.limit)
	}
	for _, r := range uniqueResources(c.items) {
		g.Go(func() error {
			if err := r.Retrieve(ctx, true); err != nil {
				errsCh <- Failure{Resource: r, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(errsCh)
	for err := range errsCh {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	logger := c.logger()
	for _, err := range errs {
		logger.WithError(err).Error("retrieve failed")
	}
	return multierror.Append(nil, errs...)
}
