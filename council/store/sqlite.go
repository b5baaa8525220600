package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/council-go/council"
)

// SQLiteStore is a SQLite-backed ConversationStore.
//
// Designed for:
//   - Development and single-host deployments with zero setup
//   - Local persistence across process restarts
//   - Prototyping before migrating to MySQL
//
// Each conversation is one row carrying its full record as a JSON document,
// mirroring the one-document-per-conversation layout the data originated
// in. Appends rewrite the document inside a transaction, so a turn is
// either fully visible or not at all. v1 single-turn documents are
// normalized transparently on read (see DecodeRecord).
//
// WAL mode is enabled for concurrent reads; writes are serialized through a
// single connection.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./council.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store creates the database file and schema on first use, enables WAL
// mode, and sets a busy timeout so concurrent writers wait instead of
// failing.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./council.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT NOT NULL PRIMARY KEY,
			created_at TEXT NOT NULL,
			first_query TEXT NOT NULL DEFAULT '',
			turn_count INTEGER NOT NULL DEFAULT 0,
			record TEXT NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at)"); err != nil {
		return fmt.Errorf("failed to create idx_conversations_created: %w", err)
	}
	return nil
}

// LoadContext returns the committed turns of a conversation in commit
// order. Unknown ids yield an empty slice.
func (s *SQLiteStore) LoadContext(ctx context.Context, conversationID string) ([]council.Turn, error) {
	rec, err := s.Get(ctx, conversationID)
	if errors.Is(err, council.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Turns, nil
}

// Commit atomically appends a turn, creating the conversation on first use.
func (s *SQLiteStore) Commit(ctx context.Context, conversationID string, turn council.Turn) (council.ConversationRecord, error) {
	if err := s.checkOpen(); err != nil {
		return council.ConversationRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		raw string
		rec council.ConversationRecord
	)
	err = tx.QueryRowContext(ctx, "SELECT record FROM conversations WHERE id = ?", conversationID).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		err = nil
		rec = council.ConversationRecord{ID: conversationID, CreatedAt: turn.CreatedAt}
	case err != nil:
		return council.ConversationRecord{}, fmt.Errorf("failed to load conversation: %w", err)
	default:
		rec, err = DecodeRecord([]byte(raw), conversationID)
		if err != nil {
			return council.ConversationRecord{}, err
		}
	}

	rec.Turns = append(rec.Turns, turn)

	data, err := json.Marshal(rec)
	if err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to marshal conversation record: %w", err)
	}

	upsert := `
		INSERT INTO conversations (id, created_at, first_query, turn_count, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_query = excluded.first_query,
			turn_count = excluded.turn_count,
			record = excluded.record
	`
	_, err = tx.ExecContext(ctx, upsert,
		conversationID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Turns[0].Query,
		len(rec.Turns),
		string(data),
	)
	if err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to save conversation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, nil
}

// Get returns the full conversation record, council.ErrNotFound when the id
// is unknown.
func (s *SQLiteStore) Get(ctx context.Context, conversationID string) (council.ConversationRecord, error) {
	if err := s.checkOpen(); err != nil {
		return council.ConversationRecord{}, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM conversations WHERE id = ?", conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return council.ConversationRecord{}, council.ErrNotFound
	}
	if err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return DecodeRecord([]byte(raw), conversationID)
}

// List returns summaries of all conversations, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]council.ConversationSummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, created_at, first_query, turn_count
		FROM conversations
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []council.ConversationSummary
	for rows.Next() {
		var (
			summary   council.ConversationSummary
			createdAt string
		)
		if err := rows.Scan(&summary.ID, &createdAt, &summary.FirstQuery, &summary.TurnCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		summary.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return out, nil
}

// Delete removes a conversation, council.ErrNotFound when the id is unknown.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return council.ErrNotFound
	}
	return nil
}

// Close closes the database connection. Calling Close multiple times is
// safe.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
