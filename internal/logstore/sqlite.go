package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	logpkg "github.com/rzbill/tailview/pkg/log"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `CREATE TABLE IF NOT EXISTS logs (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL
)`

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// Path is the database file. Required.
	Path string
	// Synchronous maps to PRAGMA synchronous (FULL, NORMAL, OFF). Default FULL.
	Synchronous string
	Logger      logpkg.Logger
}

// SQLiteStore is a DurableLogStore over a single SQLite table named "logs".
type SQLiteStore struct {
	db     *sql.DB
	logger logpkg.Logger

	// mu serializes writers and guards count.
	mu     sync.Mutex
	count  uint64
	notify *notifier
}

// OpenSQLite opens (creating if needed) the database at opts.Path.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("logstore: SQLiteOptions.Path is required")
	}
	syncMode := opts.Synchronous
	if syncMode == "" {
		syncMode = "FULL"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(%s)", opts.Path, syncMode)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	// One connection keeps writes and the count cache in the same order.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storageErr("open", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	s := &SQLiteStore{db: db, logger: logger, notify: newNotifier()}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&s.count); err != nil {
		_ = db.Close()
		return nil, storageErr("open", err)
	}
	return s, nil
}

// Append inserts the batch in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, lines []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(lines) == 0 {
		return s.count, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("append", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO logs(text) VALUES(?)`)
	if err != nil {
		return 0, storageErr("append", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		if _, err := stmt.ExecContext(ctx, line); err != nil {
			return 0, storageErr("append", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("append", err)
	}
	s.count += uint64(len(lines))
	s.notify.broadcast()
	return s.count, nil
}

// Count returns the cached row count, kept in step with committed appends.
func (s *SQLiteStore) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

// GetRange selects rows by primary key.
func (s *SQLiteStore) GetRange(ctx context.Context, lowID, highID uint64) ([]LogEntry, error) {
	if lowID > highID {
		return []LogEntry{}, nil
	}
	// SQLite integers are signed 64-bit.
	const maxID = uint64(1<<63 - 1)
	if highID > maxID {
		highID = maxID
	}
	if lowID > maxID {
		return []LogEntry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text FROM logs WHERE id BETWEEN ? AND ? ORDER BY id`, int64(lowID), int64(highID))
	if err != nil {
		return nil, storageErr("get_range", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Text); err != nil {
			return nil, storageErr("get_range", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get_range", err)
	}
	return entries, nil
}

// Clear deletes every row and resets the AUTOINCREMENT sequence so the next
// id is 1 again.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM logs`); err != nil {
		return storageErr("clear", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'logs'`); err != nil {
		return storageErr("clear", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("clear", err)
	}
	s.count = 0
	s.notify.broadcast()
	s.logger.Info("log store cleared")
	return nil
}

// Changes implements Watcher.
func (s *SQLiteStore) Changes() <-chan struct{} { return s.notify.changes() }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return storageErr("close", s.db.Close())
}
