package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ns", "k1", []byte("hello")))

	got, ok, err := s.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestMemoryStoreGetMissingKeyNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "ns", "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreDeleteRemovesKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "ns", "k1", []byte("v")))
	require.NoError(t, s.Delete(ctx, "ns", "k1"))

	_, ok, err := s.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreDeleteAbsentKeyIsNotError(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Delete(context.Background(), "ns", "never-existed"))
}

func TestMemoryStoreScanVisitsEveryEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "ns", "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "ns", "b", []byte("2")))

	seen := map[string]string{}
	err := s.Scan(ctx, "ns", func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestMemoryStoreNamespacesAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "ns1", "k", []byte("one")))
	require.NoError(t, s.Put(ctx, "ns2", "k", []byte("two")))

	got1, _, _ := s.Get(ctx, "ns1", "k")
	got2, _, _ := s.Get(ctx, "ns2", "k")
	require.Equal(t, []byte("one"), got1)
	require.Equal(t, []byte("two"), got2)
}

func TestMemoryStorePutCopiesValueDefensively(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	value := []byte("mutable")
	require.NoError(t, s.Put(ctx, "ns", "k", value))

	value[0] = 'X'
	got, _, _ := s.Get(ctx, "ns", "k")
	require.Equal(t, []byte("mutable"), got)
}

func TestMemoryStoreAppendReturnsIncreasingIndices(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	i0, err := s.Append(ctx, "log", []byte("first"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), i0)

	i1, err := s.Append(ctx, "log", []byte("second"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), i1)

	got, ok, err := s.Read(ctx, "log", i0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("first"), got)

	got, ok, err = s.Read(ctx, "log", i1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("second"), got)
}

func TestMemoryStoreReadMissingIndexNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Read(context.Background(), "log", 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreAppendNamespacesAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Append(ctx, "a", []byte("a0"))
	require.NoError(t, err)
	_, err = s.Append(ctx, "b", []byte("b0"))
	require.NoError(t, err)

	got, ok, err := s.Read(ctx, "a", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a0"), got)

	got, ok, err = s.Read(ctx, "b", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b0"), got)
}

func TestRetryPutSucceedsOnWorkingStore(t *testing.T) {
	s := NewMemoryStore()
	err := RetryPut(context.Background(), s, "ns", "k", []byte("v"))
	require.NoError(t, err)

	got, ok, err := s.Get(context.Background(), "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)
}

// alwaysFailStore fails every Put/Get, used to confirm RetryPut/RetryGet
// give up and surface a BackendIOFailureError rather than retrying forever.
type alwaysFailStore struct{}

func (alwaysFailStore) Put(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}
func (alwaysFailStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}
func (alwaysFailStore) Delete(context.Context, string, string) error { return nil }
func (alwaysFailStore) Scan(context.Context, string, func(string, []byte) error) error {
	return nil
}
func (alwaysFailStore) Append(context.Context, string, []byte) (uint64, error) {
	return 0, errors.New("disk full")
}
func (alwaysFailStore) Read(context.Context, string, uint64) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}
func (alwaysFailStore) Close() error { return nil }

func TestRetryPutGivesUpAndWrapsError(t *testing.T) {
	err := RetryPut(context.Background(), alwaysFailStore{}, "ns", "k", []byte("v"))
	require.Error(t, err)
	var failure *BackendIOFailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "put", failure.Op)
}

func TestRetryGetGivesUpAndWrapsError(t *testing.T) {
	_, _, err := RetryGet(context.Background(), alwaysFailStore{}, "ns", "k")
	require.Error(t, err)
	var failure *BackendIOFailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "get", failure.Op)
}
