package eventlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speki-dev/cardledger/internal/model"
)

func TestChainAppendAndValidate(t *testing.T) {
	store := NewMemoryStore()
	chain, err := OpenChain(store)
	require.NoError(t, err)
	require.Equal(t, uint64(0), chain.Len())

	k1 := model.NewKey()
	r1, err := chain.Append(1000, "card", k1, Create, "alice", []byte(`{"front":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, ZeroHash, r1.PrevHash)

	k2 := model.NewKey()
	r2, err := chain.Append(2000, "card", k2, Modify, "alice", []byte(`{"front":"bye"}`))
	require.NoError(t, err)
	require.Equal(t, r1.Hash, r2.PrevHash)
	require.NotEqual(t, r1.Hash, r2.Hash)

	require.Equal(t, uint64(2), chain.Len())

	// Reopening replays and validates the existing chain.
	chain2, err := OpenChain(store)
	require.NoError(t, err)
	require.Equal(t, uint64(2), chain2.Len())
	require.Equal(t, r2.Hash, chain2.TipHash())
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	chain, err := OpenChain(store)
	require.NoError(t, err)

	k1 := model.NewKey()
	_, err = chain.Append(1000, "card", k1, Create, "alice", []byte(`{"front":"hi"}`))
	require.NoError(t, err)
	k2 := model.NewKey()
	_, err = chain.Append(2000, "card", k2, Delete, "alice", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, chain.Export(&buf))

	records, err := Import(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, k1, records[0].Target)
	require.Equal(t, Create, records[0].Kind)
	require.Equal(t, Delete, records[1].Kind)
}

func TestHashChainMismatchOnTamperedRecord(t *testing.T) {
	store := NewMemoryStore()
	chain, err := OpenChain(store)
	require.NoError(t, err)

	k1 := model.NewKey()
	_, err = chain.Append(1000, "card", k1, Create, "alice", []byte(`{"front":"hi"}`))
	require.NoError(t, err)

	store.records[0].Payload = []byte(`{"front":"tampered"}`)

	_, err = OpenChain(store)
	require.Error(t, err)
	var mismatch *HashChainMismatchError
	require.ErrorAs(t, err, &mismatch)
}
