// Package blobstore implements the keyed blob store described by the
// ledger's storage component (§4.A): an index-addressed append log plus a
// keyed current-value map, backend-agnostic so the ledger engine can run
// purely in memory for tests or durably against SQLite in production.
//
// The SQLite backend uses the ncruces/go-sqlite3 pure-Go driver, WAL
// journal mode, and a single-connection pool to avoid the
// writer-serialization pitfalls of concurrent SQLite connections.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Store is the keyed blob store interface the ledger engine and event log
// persist through. Keys and values are opaque byte strings; callers (the
// ledger engine, the event log) impose their own encoding.
type Store interface {
	// Put writes value under key, replacing any prior value.
	Put(ctx context.Context, namespace, key string, value []byte) error
	// Get reads the current value for key, reporting ok=false if absent.
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	// Delete removes key from namespace. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, namespace, key string) error
	// Scan calls fn for every (key, value) pair in namespace. Iteration
	// order is backend-defined; callers must not rely on ordering.
	Scan(ctx context.Context, namespace string, fn func(key string, value []byte) error) error
	// Append adds value to namespace's append log and returns the index
	// it was written at, starting from 0 and increasing by one per
	// namespace (§4.A: the append log, addressed by index, as distinct
	// from the keyed current-value map Put/Get/Delete/Scan serve).
	Append(ctx context.Context, namespace string, value []byte) (uint64, error)
	// Read returns the value previously written by Append at index
	// within namespace, reporting ok=false if no such index exists.
	Read(ctx context.Context, namespace string, index uint64) ([]byte, bool, error)
	// Close releases any resources the backend holds.
	Close() error
}

// BackendIOFailureError wraps a backend I/O error per the §7 taxonomy:
// callers should treat it as retryable via RetryPut/RetryGet rather than
// a permanent rejection.
type BackendIOFailureError struct {
	Op  string
	Err error
}

func (e *BackendIOFailureError) Error() string {
	return fmt.Sprintf("blobstore %s: %v", e.Op, e.Err)
}

func (e *BackendIOFailureError) Unwrap() error {
	return e.Err
}

// defaultBackoff is a bounded retry policy for flaky storage I/O: a
// handful of short exponential backoffs, never unbounded, so a
// genuinely down backend still surfaces as an error.
func defaultBackoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = defaultInitialInterval
	eb.MaxElapsedTime = defaultMaxElapsedTime
	return backoff.WithContext(eb, ctx)
}

const (
	defaultInitialInterval = 20 * time.Millisecond
	defaultMaxElapsedTime  = 500 * time.Millisecond
)

// RetryPut wraps Put with the store's default bounded retry policy, for
// backends whose I/O is known to be occasionally flaky (e.g. a SQLite file
// on a network filesystem).
func RetryPut(ctx context.Context, s Store, namespace, key string, value []byte) error {
	op := func() error {
		if err := s.Put(ctx, namespace, key, value); err != nil {
			return &BackendIOFailureError{Op: "put", Err: err}
		}
		return nil
	}
	if err := backoff.Retry(op, defaultBackoff(ctx)); err != nil {
		return err
	}
	return nil
}

// RetryGet wraps Get with the store's default bounded retry policy.
func RetryGet(ctx context.Context, s Store, namespace, key string) ([]byte, bool, error) {
	var value []byte
	var ok bool
	op := func() error {
		v, found, err := s.Get(ctx, namespace, key)
		if err != nil {
			return &BackendIOFailureError{Op: "get", Err: err}
		}
		value, ok = v, found
		return nil
	}
	if err := backoff.Retry(op, defaultBackoff(ctx)); err != nil {
		return nil, false, err
	}
	return value, ok, nil
}
