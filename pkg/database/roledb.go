// Package database manages the per-role SQLite stores that imported datasets
// and app bookkeeping live in.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ReservedTablePrefix namespaces the engine's own bookkeeping tables inside a
// role store. Schema probing and plan generation filter tables by this
// prefix, so user tables can never collide with internal ones.
const ReservedTablePrefix = "app_"

// Manager opens and initializes per-role SQLite databases under the data
// directory. One database file per role, keyed by the sanitized role name.
type Manager struct {
	dataDir string
	logger  *zap.Logger
}

// NewManager creates a Manager rooted at dataDir, creating it if needed.
func NewManager(dataDir string, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &Manager{
		dataDir: dataDir,
		logger:  logger.Named("roledb"),
	}, nil
}

// SanitizeRoleName reduces a role name to a filesystem/identifier-safe key.
// Two role names that sanitize to the same key collide; this is an accepted
// constraint of the storage layout.
func SanitizeRoleName(roleName string) string {
	var b strings.Builder
	for _, ch := range roleName {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == ' ':
			b.WriteRune(ch)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// Path returns the database file path for a role.
func (m *Manager) Path(roleName string) string {
	return filepath.Join(m.dataDir, SanitizeRoleName(roleName)+".db")
}

// Exists reports whether the role's database file is present.
func (m *Manager) Exists(roleName string) bool {
	_, err := os.Stat(m.Path(roleName))
	return err == nil
}

// Open opens the role's database, creating the file and the reserved
// bookkeeping tables if they do not exist yet.
func (m *Manager) Open(roleName string) (*sql.DB, error) {
	path := m.Path(roleName)
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open role database %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize role database %s: %w", path, err)
	}
	return db, nil
}

// OpenExisting opens the role's database, failing if the file is absent.
func (m *Manager) OpenExisting(roleName string) (*sql.DB, error) {
	if !m.Exists(roleName) {
		return nil, fmt.Errorf("role database not found for %s", roleName)
	}
	return m.Open(roleName)
}

// initSchema creates the reserved bookkeeping tables.
func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS app_chart_insights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chart_id TEXT NOT NULL UNIQUE,
			chart_title TEXT NOT NULL,
			insights_json TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS app_saved_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_id TEXT UNIQUE NOT NULL,
			action_title TEXT NOT NULL,
			action_description TEXT,
			status TEXT DEFAULT 'pending',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS app_action_notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_id TEXT NOT NULL,
			note_text TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (action_id) REFERENCES app_saved_actions (action_id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create bookkeeping table: %w", err)
		}
	}
	return nil
}

// ListDataTables returns the user data tables in a role store, excluding
// SQLite internals and reserved bookkeeping tables.
func ListDataTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table'
		   AND name NOT LIKE 'sqlite_%'
		   AND name NOT LIKE ?
		 ORDER BY name`,
		ReservedTablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query table list: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table list: %w", err)
	}
	return tables, nil
}
