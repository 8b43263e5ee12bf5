package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/opd-ai/openmail/address"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Envelope implements Store.
func (s *SQLiteStore) Envelope(ctx context.Context, key Key) (map[string]string, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}

	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT header FROM envelopes WHERE author = ? AND broadcast = ? AND id = ?",
		key.Author.String(), key.Broadcast, key.ID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading envelope %s: %w", shortID(key.ID), err)
	}

	var header map[string]string
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return nil, false, fmt.Errorf("decoding envelope %s: %w", shortID(key.ID), err)
	}
	return header, true, nil
}

// PutEnvelope implements Store.
func (s *SQLiteStore) PutEnvelope(ctx context.Context, key Key, header map[string]string) error {
	if err := key.validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding envelope %s: %w", shortID(key.ID), err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO envelopes (author, broadcast, id, header, stored_at) VALUES (?, ?, ?, ?, ?)",
		key.Author.String(), key.Broadcast, key.ID, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing envelope %s: %w", shortID(key.ID), err)
	}
	return nil
}

// Body implements Store.
func (s *SQLiteStore) Body(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}

	var body []byte
	err := s.db.GetContext(ctx, &body,
		"SELECT body FROM bodies WHERE author = ? AND broadcast = ? AND id = ?",
		key.Author.String(), key.Broadcast, key.ID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading body %s: %w", shortID(key.ID), err)
	}
	return body, true, nil
}

// PutBody implements Store.
func (s *SQLiteStore) PutBody(ctx context.Context, key Key, body []byte) error {
	if err := key.validate(); err != nil {
		return err
	}
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO bodies (author, broadcast, id, body) VALUES (?, ?, ?, ?)",
		key.Author.String(), key.Broadcast, key.ID, body,
	)
	if err != nil {
		return fmt.Errorf("storing body %s: %w", shortID(key.ID), err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"envelopes", "bodies"} {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE author = ? AND broadcast = ? AND id = ?",
			key.Author.String(), key.Broadcast, key.ID,
		)
		if err != nil {
			return fmt.Errorf("deleting %s %s: %w", table, shortID(key.ID), err)
		}
	}
	return tx.Commit()
}

// EnvelopeIDs implements Store.
func (s *SQLiteStore) EnvelopeIDs(ctx context.Context, author address.Address, broadcast bool) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM envelopes WHERE author = ? AND broadcast = ? ORDER BY id",
		author.String(), broadcast,
	)
	if err != nil {
		return nil, fmt.Errorf("listing cached envelopes: %w", err)
	}
	return ids, nil
}

type notificationRow struct {
	ID       string    `db:"id"`
	Received time.Time `db:"received"`
}

// SeenNotifications implements Store.
func (s *SQLiteStore) SeenNotifications(ctx context.Context) (map[string]time.Time, error) {
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, received FROM notifications"); err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	seen := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		seen[r.ID] = r.Received
	}
	return seen, nil
}

// SaveNotifications implements Store.
func (s *SQLiteStore) SaveNotifications(ctx context.Context, seen map[string]time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO notifications (id, received) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing notification insert: %w", err)
	}
	defer stmt.Close()

	for id, received := range seen {
		if _, err := stmt.ExecContext(ctx, id, received.UTC()); err != nil {
			return fmt.Errorf("storing notification %s: %w", shortID(id), err)
		}
	}
	return tx.Commit()
}
