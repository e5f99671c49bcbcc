package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/logging"
	"github.com/ttvsnap/ttvsnap/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides a SQLite-based capture journal with WAL mode.
// It is thread-safe and supports concurrent access.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *logging.Logger

	// Retention cleanup
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled and no retention
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithRetention(dbPath, 0, nil)
}

// NewSQLiteStoreWithRetention creates a new SQLite store that drops rows older
// than retentionDays once an hour. retentionDays <= 0 keeps everything.
func NewSQLiteStoreWithRetention(dbPath string, retentionDays int, logger *logging.Logger) (*SQLiteStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	// Open database with WAL mode enabled
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = logging.Discard()
	}

	store := &SQLiteStore{
		db:            db,
		logger:        logger,
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	if retentionDays > 0 {
		store.startCleanup()
	}

	return store, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS captures (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					channel TEXT NOT NULL,
					path TEXT NOT NULL,
					thumbnail_path TEXT NOT NULL DEFAULT '',
					source_url TEXT NOT NULL DEFAULT '',
					captured_at INTEGER NOT NULL,
					marker TEXT NOT NULL DEFAULT '',
					size_bytes INTEGER NOT NULL DEFAULT 0,
					saved_at INTEGER NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_captures_channel_captured ON captures(channel, captured_at);
			`,
		},
		{
			version: 2,
			up: `
				ALTER TABLE captures ADD COLUMN first_of_session INTEGER NOT NULL DEFAULT 0;
				CREATE INDEX IF NOT EXISTS idx_captures_saved ON captures(saved_at);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// startCleanup starts the retention cleanup goroutine
func (s *SQLiteStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
				if n, err := s.Prune(context.Background(), cutoff); err != nil {
					s.logger.Error("cleanup failed", "table", "captures", "error", err)
				} else if n > 0 {
					s.logger.Info("pruned capture journal", "rows", n)
				}
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

// Close gracefully shuts down the store
func (s *SQLiteStore) Close() error {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
		s.cleanupTicker = nil
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a capture and sets its ID.
func (s *SQLiteStore) Record(ctx context.Context, c *models.Capture) error {
	if err := c.Validate(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "record capture", Err: err}
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO captures (channel, path, thumbnail_path, source_url, captured_at, marker, size_bytes, saved_at, first_of_session)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Channel, c.Path, c.ThumbnailPath, c.SourceURL, c.CapturedAt.UTC().Unix(), c.Marker, c.SizeBytes,
		c.SavedAt.UTC().UnixNano(), boolToInt(c.FirstOfSession))
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "record capture", Err: err}
	}

	if id, err := res.LastInsertId(); err == nil {
		c.ID = id
	}
	return nil
}

// Latest returns the most recent capture for channel.
func (s *SQLiteStore) Latest(ctx context.Context, channel string) (*models.Capture, bool, error) {
	list, err := s.List(ctx, channel, 1)
	if err != nil {
		return nil, false, err
	}
	if len(list) == 0 {
		return nil, false, nil
	}
	return list[0], true, nil
}

// List returns captures newest first.
func (s *SQLiteStore) List(ctx context.Context, channel string, limit int) ([]*models.Capture, error) {
	query := `SELECT id, channel, path, thumbnail_path, source_url, captured_at, marker, size_bytes, saved_at, first_of_session FROM captures`
	var args []interface{}
	if channel != "" {
		query += ` WHERE channel = ?`
		args = append(args, channel)
	}
	query += ` ORDER BY captured_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list captures", Err: err}
	}
	defer rows.Close()

	var captures []*models.Capture
	for rows.Next() {
		var (
			c                   models.Capture
			capturedAt, savedAt int64
			first               int
		)
		if err := rows.Scan(&c.ID, &c.Channel, &c.Path, &c.ThumbnailPath, &c.SourceURL, &capturedAt,
			&c.Marker, &c.SizeBytes, &savedAt, &first); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan capture", Err: err}
		}
		c.CapturedAt = time.Unix(capturedAt, 0).UTC()
		c.SavedAt = time.Unix(0, savedAt).UTC()
		c.FirstOfSession = first != 0
		captures = append(captures, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list captures", Err: err}
	}

	return captures, nil
}

// Count returns the number of captures for channel, or all captures when channel is empty.
func (s *SQLiteStore) Count(ctx context.Context, channel string) (int64, error) {
	query := `SELECT COUNT(*) FROM captures`
	var args []interface{}
	if channel != "" {
		query += ` WHERE channel = ?`
		args = append(args, channel)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count captures", Err: err}
	}
	return n, nil
}

// Prune deletes captures saved before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM captures WHERE saved_at < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "prune captures", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
