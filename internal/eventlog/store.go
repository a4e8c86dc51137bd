package eventlog

import (
	"bufio"
	"fmt"
	"io"

	"github.com/speki-dev/cardledger/internal/model"
)

// Store is the persistence boundary the Chain appends to and reads from.
// SQLiteStore (sqlite.go) provides the durable implementation, sharing the
// *sql.DB that internal/blobstore opens; an
// in-memory slice-backed Store is used by tests and by the pure-in-memory
// engine configuration.
type Store interface {
	// Append durably writes r as the next record. Implementations must
	// not reorder or coalesce records.
	Append(r Record) error
	// Len returns the number of records currently stored.
	Len() (uint64, error)
	// Scan calls fn for every record in index order, stopping early if
	// fn returns an error.
	Scan(fn func(Record) error) error
}

// MemoryStore is a Store backed by an in-memory slice, used for tests and
// for ledgers that opt out of durable persistence.
type MemoryStore struct {
	records []Record
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(r Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryStore) Len() (uint64, error) {
	return uint64(len(s.records)), nil
}

func (s *MemoryStore) Scan(fn func(Record) error) error {
	for _, r := range s.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Chain wraps a Store with the hash-chaining discipline: every Append
// computes the new record's PrevHash from the last appended record (or
// ZeroHash for an empty chain) and keeps that tip in memory so appends
// don't need to re-read the store.
type Chain struct {
	store   Store
	tipHash [32]byte
	nextIdx uint64
}

// OpenChain loads an existing Store, validating the full chain, and
// returns a Chain ready to append further records. An empty store yields a
// Chain starting at index 0 with ZeroHash as its tip.
func OpenChain(store Store) (*Chain, error) {
	c := &Chain{store: store, tipHash: ZeroHash}
	var expectedIdx uint64
	err := store.Scan(func(r Record) error {
		if r.Index != expectedIdx {
			return fmt.Errorf("event log: expected index %d, got %d", expectedIdx, r.Index)
		}
		if err := r.Validate(c.tipHash); err != nil {
			return err
		}
		c.tipHash = r.Hash
		expectedIdx++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("validate event log chain: %w", err)
	}
	c.nextIdx = expectedIdx
	return c, nil
}

// Append builds and persists the next record in the chain.
func (c *Chain) Append(timestampNanos int64, category string, target model.Key, kind Kind, actor string, payload []byte) (Record, error) {
	r := NewRecord(c.tipHash, c.nextIdx, timestampNanos, category, target, kind, actor, payload)
	if err := c.store.Append(r); err != nil {
		return Record{}, fmt.Errorf("append event log record %d: %w", r.Index, err)
	}
	c.tipHash = r.Hash
	c.nextIdx++
	return r, nil
}

// Len returns the number of records appended so far.
func (c *Chain) Len() uint64 {
	return c.nextIdx
}

// TipHash returns the hash of the most recently appended record, or
// ZeroHash if the chain is empty.
func (c *Chain) TipHash() [32]byte {
	return c.tipHash
}

// Scan delegates to the underlying Store.
func (c *Chain) Scan(fn func(Record) error) error {
	return c.store.Scan(fn)
}

// Export writes every record as one JSONL line to w, in index order.
func (c *Chain) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	err := c.store.Scan(func(r Record) error {
		line, err := r.ToCanonicalLine()
		if err != nil {
			return err
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	})
	if err != nil {
		return fmt.Errorf("export event log: %w", err)
	}
	return bw.Flush()
}

// Import reads a JSONL stream previously produced by Export and validates
// it as a standalone chain (starting at ZeroHash), without appending it to
// any Chain. Callers combine this with the import strategies in internal/boundary.
func Import(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []Record
	expectedPrev := ZeroHash
	var expectedIdx uint64
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := ParseCanonicalLine(line)
		if err != nil {
			return nil, fmt.Errorf("import event log: %w", err)
		}
		if rec.Index != expectedIdx {
			return nil, fmt.Errorf("import event log: expected index %d, got %d", expectedIdx, rec.Index)
		}
		if err := rec.Validate(expectedPrev); err != nil {
			return nil, fmt.Errorf("import event log: %w", err)
		}
		records = append(records, rec)
		expectedPrev = rec.Hash
		expectedIdx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("import event log: %w", err)
	}
	return records, nil
}
