package eventlog

import (
	"database/sql"
	"fmt"

	"github.com/speki-dev/cardledger/internal/model"
)

// eventLogSchema creates the durable table backing SQLiteStore. Callers
// share a single *sql.DB (typically the same file as blobstore.SQLiteStore)
// so the event log and blobstore's blobs and appends tables live side by side.
const eventLogSchema = `
CREATE TABLE IF NOT EXISTS event_log (
	idx        INTEGER NOT NULL,
	category   TEXT NOT NULL,
	prev_hash  BLOB NOT NULL,
	hash       BLOB NOT NULL,
	timestamp  INTEGER NOT NULL,
	target     BLOB NOT NULL,
	kind       INTEGER NOT NULL,
	actor      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	PRIMARY KEY (category, idx)
);
`

// SQLiteStore is a Store backed by a SQLite table, sharing a *sql.DB handle
// with the rest of the ledger's persisted state.
type SQLiteStore struct {
	db       *sql.DB
	category string
}

// OpenSQLiteStore prepares (creating the table if necessary) a Store for
// one category's event log within db.
func OpenSQLiteStore(db *sql.DB, category string) (*SQLiteStore, error) {
	if _, err := db.Exec(eventLogSchema); err != nil {
		return nil, fmt.Errorf("init event_log schema: %w", err)
	}
	return &SQLiteStore{db: db, category: category}, nil
}

func (s *SQLiteStore) Append(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO event_log (idx, category, prev_hash, hash, timestamp, target, kind, actor, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Index, s.category, r.PrevHash[:], r.Hash[:], r.Timestamp, r.Target[:], int(r.Kind), r.Actor, r.Payload)
	if err != nil {
		return fmt.Errorf("append event_log row %d: %w", r.Index, err)
	}
	return nil
}

func (s *SQLiteStore) Len() (uint64, error) {
	var n uint64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM event_log WHERE category = ?`, s.category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count event_log rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Scan(fn func(Record) error) error {
	rows, err := s.db.Query(
		`SELECT idx, prev_hash, hash, timestamp, target, kind, actor, payload
		 FROM event_log WHERE category = ? ORDER BY idx ASC`, s.category)
	if err != nil {
		return fmt.Errorf("scan event_log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		var prevHash, hash, target []byte
		var kind int
		r.Category = s.category
		if err := rows.Scan(&r.Index, &prevHash, &hash, &r.Timestamp, &target, &kind, &r.Actor, &r.Payload); err != nil {
			return fmt.Errorf("scan event_log row: %w", err)
		}
		copy(r.PrevHash[:], prevHash)
		copy(r.Hash[:], hash)
		var key model.Key
		copy(key[:], target)
		r.Target = key
		r.Kind = Kind(kind)
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
