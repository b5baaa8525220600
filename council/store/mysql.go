package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/council-go/council"
)

// MySQLStore is a MySQL/MariaDB-backed ConversationStore.
//
// Designed for:
//   - Production deployments requiring durable shared persistence
//   - Multiple hosts serving councils over one conversation corpus
//   - Audit trails across process restarts
//
// Layout and transaction semantics match SQLiteStore: one row per
// conversation with the record as a JSON document, appends rewritten inside
// a transaction with the row locked FOR UPDATE.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/council?parseTime=true
//	user:password@tcp(127.0.0.1:3306)/council?parseTime=true
//
// The parseTime=true parameter is required so DATETIME columns scan into
// time.Time values.
//
// Never hardcode credentials; read the DSN from the environment:
//
//	st, err := store.NewMySQLStore(os.Getenv("MYSQL_DSN"))
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS conversations (
			id VARCHAR(191) NOT NULL PRIMARY KEY,
			created_at DATETIME(6) NOT NULL,
			first_query TEXT NOT NULL,
			turn_count INT NOT NULL DEFAULT 0,
			record LONGTEXT NOT NULL,
			INDEX idx_conversations_created (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}
	return nil
}

// LoadContext returns the committed turns of a conversation in commit
// order. Unknown ids yield an empty slice.
func (m *MySQLStore) LoadContext(ctx context.Context, conversationID string) ([]council.Turn, error) {
	rec, err := m.Get(ctx, conversationID)
	if errors.Is(err, council.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Turns, nil
}

// Commit atomically appends a turn, creating the conversation on first use.
// The conversation row is locked for the duration of the transaction, so
// concurrent appends from separate processes serialize at the database.
func (m *MySQLStore) Commit(ctx context.Context, conversationID string, turn council.Turn) (council.ConversationRecord, error) {
	if err := m.checkOpen(); err != nil {
		return council.ConversationRecord{}, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
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
	err = tx.QueryRowContext(ctx, "SELECT record FROM conversations WHERE id = ? FOR UPDATE", conversationID).Scan(&raw)
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
		ON DUPLICATE KEY UPDATE
			first_query = VALUES(first_query),
			turn_count = VALUES(turn_count),
			record = VALUES(record)
	`
	_, err = tx.ExecContext(ctx, upsert,
		conversationID,
		rec.CreatedAt.UTC(),
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
func (m *MySQLStore) Get(ctx context.Context, conversationID string) (council.ConversationRecord, error) {
	if err := m.checkOpen(); err != nil {
		return council.ConversationRecord{}, err
	}

	var raw string
	err := m.db.QueryRowContext(ctx, "SELECT record FROM conversations WHERE id = ?", conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return council.ConversationRecord{}, council.ErrNotFound
	}
	if err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return DecodeRecord([]byte(raw), conversationID)
}

// List returns summaries of all conversations, newest first.
func (m *MySQLStore) List(ctx context.Context) ([]council.ConversationSummary, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, created_at, first_query, turn_count
		FROM conversations
		ORDER BY created_at DESC
	`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []council.ConversationSummary
	for rows.Next() {
		var summary council.ConversationSummary
		if err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.FirstQuery, &summary.TurnCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return out, nil
}

// Delete removes a conversation, council.ErrNotFound when the id is unknown.
func (m *MySQLStore) Delete(ctx context.Context, conversationID string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conversationID)
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
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
