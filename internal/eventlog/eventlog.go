// Package eventlog implements the append-only, hash-chained event log
// described by the ledger's event record wire format: each record commits
// to the hash of the record before it, so the log can be validated as a
// single chain and any altered or reordered record is detectable (P3).
//
// The hashing and canonical-line design is adapted from the append-only
// log pattern used elsewhere in the retrieval pack (a storelog-style
// content-addressed record), generalized here to chain each record to its
// predecessor instead of hashing records independently.
package eventlog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/speki-dev/cardledger/internal/model"
)

// Kind discriminates the three event payload shapes the ledger accepts.
type Kind uint8

const (
	// Create introduces a new item; Payload holds the encoded initial
	// modifier (the item model decides what "initial form" means).
	Create Kind = iota
	// Modify applies a modifier to an existing item.
	Modify
	// Delete removes an item, subject to the strong-reference check.
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Record is one immutable entry in the event log.
type Record struct {
	Index     uint64     `json:"index"`
	PrevHash  [32]byte   `json:"prev_hash"`
	Hash      [32]byte   `json:"hash"`
	Timestamp int64      `json:"timestamp"` // unix nanoseconds
	Category  string     `json:"category"`
	Target    model.Key  `json:"target"`
	Kind      Kind       `json:"kind"`
	Actor     string     `json:"actor"`
	Payload   []byte     `json:"payload"` // canonical encoding of the modifier/initial form; empty for Delete
}

// ZeroHash is the PrevHash of the first record in a chain.
var ZeroHash [32]byte

// computeHash hashes the record's fields in a fixed canonical order so the
// chain is reproducible across implementations, independent of struct
// field order or JSON map ordering.
func computeHash(prevHash [32]byte, index uint64, timestampNanos int64, category string, target model.Key, kind Kind, actor string, payload []byte) [32]byte {
	h := sha256.New()
	h.Write(prevHash[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], uint64(timestampNanos))
	h.Write(buf[:])

	writeLP := func(b []byte) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	writeLP([]byte(category))
	writeLP(target[:])
	h.Write([]byte{byte(kind)})
	writeLP([]byte(actor))
	writeLP(payload)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewRecord constructs the next record in a chain given the previous
// record's hash (ZeroHash for the first record) and computes its own Hash.
func NewRecord(prevHash [32]byte, index uint64, timestampNanos int64, category string, target model.Key, kind Kind, actor string, payload []byte) Record {
	r := Record{
		Index:     index,
		PrevHash:  prevHash,
		Timestamp: timestampNanos,
		Category:  category,
		Target:    target,
		Kind:      kind,
		Actor:     actor,
		Payload:   payload,
	}
	r.Hash = computeHash(prevHash, index, timestampNanos, category, target, kind, actor, payload)
	return r
}

// Validate recomputes r's hash from its fields and checks it against
// r.Hash, and checks r.PrevHash against the supplied expected predecessor
// hash. A mismatch means the record was tampered with or the chain is
// broken (HashChainMismatchError).
func (r Record) Validate(expectedPrevHash [32]byte) error {
	if r.PrevHash != expectedPrevHash {
		return &HashChainMismatchError{Index: r.Index, Reason: "prev_hash does not match preceding record"}
	}
	want := computeHash(r.PrevHash, r.Index, r.Timestamp, r.Category, r.Target, r.Kind, r.Actor, r.Payload)
	if want != r.Hash {
		return &HashChainMismatchError{Index: r.Index, Reason: "recomputed hash does not match stored hash"}
	}
	return nil
}

// HashChainMismatchError reports that a record's hash does not match its
// recomputed value, or its PrevHash does not match its predecessor.
type HashChainMismatchError struct {
	Index  uint64
	Reason string
}

func (e *HashChainMismatchError) Error() string {
	return fmt.Sprintf("event log record %d: %s", e.Index, e.Reason)
}

// jsonRecord mirrors Record but hex-encodes the hash fields and base64-encodes
// the payload so the JSONL export is text-safe; see ToCanonicalLine/ParseCanonicalLine.
type jsonRecord struct {
	Index     uint64    `json:"index"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
	Timestamp int64     `json:"timestamp"`
	Category  string    `json:"category"`
	Target    model.Key `json:"target"`
	Kind      Kind      `json:"kind"`
	Actor     string    `json:"actor"`
	Payload   string    `json:"payload"` // base64 via json encoding of []byte
}

// ToCanonicalLine renders r as one line of the JSONL export format used by
// export_log (§6.1).
func (r Record) ToCanonicalLine() ([]byte, error) {
	jr := jsonRecord{
		Index:     r.Index,
		PrevHash:  fmt.Sprintf("%x", r.PrevHash),
		Hash:      fmt.Sprintf("%x", r.Hash),
		Timestamp: r.Timestamp,
		Category:  r.Category,
		Target:    r.Target,
		Kind:      r.Kind,
		Actor:     r.Actor,
	}
	if r.Payload != nil {
		encoded, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		jr.Payload = string(encoded)
	}
	line, err := json.Marshal(jr)
	if err != nil {
		return nil, fmt.Errorf("marshal record %d: %w", r.Index, err)
	}
	return line, nil
}

// ParseCanonicalLine parses one line previously produced by
// ToCanonicalLine.
func ParseCanonicalLine(line []byte) (Record, error) {
	var jr jsonRecord
	if err := json.Unmarshal(line, &jr); err != nil {
		return Record{}, fmt.Errorf("unmarshal record line: %w", err)
	}
	var prevHash, hash [32]byte
	if _, err := fmt.Sscanf(jr.PrevHash, "%x", &prevHash); err != nil {
		return Record{}, fmt.Errorf("decode prev_hash: %w", err)
	}
	if _, err := fmt.Sscanf(jr.Hash, "%x", &hash); err != nil {
		return Record{}, fmt.Errorf("decode hash: %w", err)
	}
	var payload []byte
	if jr.Payload != "" {
		if err := json.Unmarshal([]byte(jr.Payload), &payload); err != nil {
			return Record{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	return Record{
		Index:     jr.Index,
		PrevHash:  prevHash,
		Hash:      hash,
		Timestamp: jr.Timestamp,
		Category:  jr.Category,
		Target:    jr.Target,
		Kind:      jr.Kind,
		Actor:     jr.Actor,
		Payload:   payload,
	}, nil
}
