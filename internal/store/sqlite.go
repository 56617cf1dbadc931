package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/shopnotify/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which is all one client needs.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
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

	// Check if schema_version table exists.
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

// SaveNotifications replaces the cached page with items, keeping their order.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	items []model.Notification,
	info model.PageInfo,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO notifications (
			id, position, type, title, message,
			is_read, action_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, n := range items {
		_, err = stmt.ExecContext(ctx,
			n.ID, i, string(n.Type), n.Title, n.Message,
			boolToInt(n.IsRead), n.ActionURL, n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO page_info (
			id, page, page_size, total_pages, total, unread_only, saved_at
		) VALUES (1, ?, ?, ?, ?, ?, ?)`,
		info.Page, info.PageSize, info.TotalPages, info.Total,
		boolToInt(info.UnreadOnly), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("caching page info: %w", err)
	}

	return tx.Commit()
}

// LoadNotifications returns the cached page, or nil if nothing was saved.
func (s *SQLiteStore) LoadNotifications(ctx context.Context) (*CachedPage, error) {
	var (
		info       model.PageInfo
		unreadOnly int
		savedAt    time.Time
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT page, page_size, total_pages, total, unread_only, saved_at
		FROM page_info WHERE id = 1`,
	).Scan(&info.Page, &info.PageSize, &info.TotalPages, &info.Total, &unreadOnly, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached page info: %w", err)
	}
	info.UnreadOnly = unreadOnly != 0

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, type, title, message, is_read, action_url, created_at
		FROM notifications ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cached notifications: %w", err)
	}
	defer rows.Close()

	items := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cached notifications: %w", err)
	}

	return &CachedPage{Items: items, Info: info, SavedAt: savedAt}, nil
}

// SaveStats replaces the cached stats snapshot.
func (s *SQLiteStore) SaveStats(ctx context.Context, stats model.Stats) error {
	byType, err := json.Marshal(stats.ByType)
	if err != nil {
		return fmt.Errorf("marshaling by_type: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO stats (id, total, unread, read, by_type, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		stats.Total, stats.Unread, stats.Read, string(byType), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("caching stats: %w", err)
	}
	return nil
}

// LoadStats returns the cached stats snapshot, or nil if none was saved.
func (s *SQLiteStore) LoadStats(ctx context.Context) (*model.Stats, error) {
	var (
		stats  model.Stats
		byType string
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT total, unread, read, by_type FROM stats WHERE id = 1",
	).Scan(&stats.Total, &stats.Unread, &stats.Read, &byType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached stats: %w", err)
	}

	stats.ByType = make(map[model.NotificationType]int)
	if byType != "" {
		if err := json.Unmarshal([]byte(byType), &stats.ByType); err != nil {
			return nil, fmt.Errorf("unmarshaling by_type: %w", err)
		}
	}

	return &stats, nil
}

// Clear drops everything cached, e.g. on logout.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"notifications", "page_info", "stats"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		typ       string
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &typ, &n.Title, &n.Message,
		&readInt, &n.ActionURL, &createdAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Type = model.NotificationType(typ)
	n.IsRead = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
