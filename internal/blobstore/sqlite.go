package blobstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schema is two tables: blobs for namespaced keyed blobs and appends for
// the per-namespace append logs. The event log's own
// SQLite-backed eventlog.Store uses a sibling table in the same database.
const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE TABLE IF NOT EXISTS appends (
	namespace TEXT NOT NULL,
	idx       INTEGER NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, idx)
);
`

// SQLiteStore is a Store backed by a single SQLite database file via the
// pure-Go ncruces/go-sqlite3 driver: WAL journal mode and a single-
// connection pool, since SQLite serializes writers regardless and a pool
// of size 1 avoids "database is locked" churn under the engine's own
// RWMutex.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed Store at
// path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite blobstore %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite blobstore schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying *sql.DB so internal/eventlog's SQLite-backed
// Store can share the same database file and connection pool.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM blobs WHERE namespace = ? AND key = ?`, namespace, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Scan(ctx context.Context, namespace string, fn func(key string, value []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM blobs WHERE namespace = ?`, namespace)
	if err != nil {
		return fmt.Errorf("scan %s: %w", namespace, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan %s: %w", namespace, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Append writes value at the next free index for namespace, computed
// within the same transaction as the insert so concurrent appends to the
// same namespace still serialize to distinct indices (SQLite's own
// writer-serialization, relied on rather than re-implemented).
func (s *SQLiteStore) Append(ctx context.Context, namespace string, value []byte) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", namespace, err)
	}
	defer tx.Rollback()

	var next sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(idx) FROM appends WHERE namespace = ?`, namespace)
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("append %s: %w", namespace, err)
	}
	index := uint64(0)
	if next.Valid {
		index = uint64(next.Int64) + 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO appends (namespace, idx, value) VALUES (?, ?, ?)`,
		namespace, index, value); err != nil {
		return 0, fmt.Errorf("append %s: %w", namespace, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append %s: %w", namespace, err)
	}
	return index, nil
}

func (s *SQLiteStore) Read(ctx context.Context, namespace string, index uint64) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM appends WHERE namespace = ? AND idx = ?`, namespace, index)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s[%d]: %w", namespace, index, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
