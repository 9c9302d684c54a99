package replay

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	_ "modernc.org/sqlite"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// SQLiteStore is the reference Store implementation: a single SQLite
// table keyed by (action, tag offset, tag microstep), migrated on
// construction, using the same migrate-then-database/sql pattern this
// codebase uses elsewhere for durable storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-open *sql.DB (so callers can point it
// at a file, ":memory:", or, in tests, a sqlmock driver) and runs the
// table migration.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("replay: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const query = `
	CREATE TABLE IF NOT EXISTS action_values (
		action_key    INTEGER NOT NULL,
		tag_offset_ns INTEGER NOT NULL,
		tag_microstep INTEGER NOT NULL,
		value         BLOB NOT NULL,
		blob_hash     TEXT NOT NULL,
		recorded_at   DATETIME NOT NULL,
		PRIMARY KEY (action_key, tag_offset_ns, tag_microstep)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func blobHash(value []byte) string {
	sum := blake2b.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// SerializeValueAt upserts value for (action, tag), recomputing the
// content hash each time so a later read can detect whether a replayed
// run produced a different value at the same tag.
func (s *SQLiteStore) SerializeValueAt(ctx context.Context, action reactor.ActionKey, tag reactor.Tag, value []byte) error {
	const query = `
	INSERT INTO action_values (action_key, tag_offset_ns, tag_microstep, value, blob_hash, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(action_key, tag_offset_ns, tag_microstep) DO UPDATE SET
		value = excluded.value, blob_hash = excluded.blob_hash, recorded_at = excluded.recorded_at`
	_, err := s.db.ExecContext(ctx, query,
		int(action), int64(tag.Offset), int64(tag.Microstep), value, blobHash(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("replay: serialize value at %s: %w", tag, err)
	}
	return nil
}

// DeserializeValueAt returns the recorded bytes for (action, tag), if any.
func (s *SQLiteStore) DeserializeValueAt(ctx context.Context, action reactor.ActionKey, tag reactor.Tag) ([]byte, bool, error) {
	const query = `
	SELECT value FROM action_values WHERE action_key = ? AND tag_offset_ns = ? AND tag_microstep = ?`
	row := s.db.QueryRowContext(ctx, query, int(action), int64(tag.Offset), int64(tag.Microstep))
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("replay: deserialize value at %s: %w", tag, err)
	}
	return value, true, nil
}

// List returns every recorded entry for action, ordered by tag, for
// snapshot export (cmd/reactorctl's export subcommand).
func (s *SQLiteStore) List(ctx context.Context, action reactor.ActionKey) ([]Entry, error) {
	const query = `
	SELECT tag_offset_ns, tag_microstep, value, blob_hash, recorded_at
	FROM action_values WHERE action_key = ? ORDER BY tag_offset_ns, tag_microstep`
	rows, err := s.db.QueryContext(ctx, query, int(action))
	if err != nil {
		return nil, fmt.Errorf("replay: list action %d: %w", action, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var offsetNs, microstep int64
		var value []byte
		var hash string
		var recordedAt time.Time
		if err := rows.Scan(&offsetNs, &microstep, &value, &hash, &recordedAt); err != nil {
			return nil, fmt.Errorf("replay: scan entry: %w", err)
		}
		entries = append(entries, Entry{
			Action:     action,
			Tag:        reactor.Tag{Offset: time.Duration(offsetNs), Microstep: uint32(microstep)},
			Value:      value,
			BlobHash:   hash,
			RecordedAt: recordedAt,
		})
	}
	return entries, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
