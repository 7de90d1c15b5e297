// Package store persists folder data, the selected folder and the global
// enabled flag in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ajramos/chatfolders/internal/folders"
)

// Storage keys. The names match the extension storage contract.
const (
	keyFolders        = "folders_data"
	keySelectedFolder = "selectedFolderId"
	keyEnabled        = "isEnabled"
)

// Store wraps a SQLite database holding the folder state
type Store struct {
	db *sql.DB
}

// Open opens (and creates/migrates) the folder store at the given path.
// The migration contract runs on every open: missing system folders are
// appended and the "all" folder is forced to the first position.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty store path")
	}
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(dbPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid store path: contains directory traversal")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	// Ensure file exists with strict perms
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		f, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create store db: %w", err)
		}
		_ = f.Close()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// Pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrateFolders(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)
	if ver == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS kv (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
		if err == nil {
			_, err = tx.ExecContext(ctx, "PRAGMA user_version=1;")
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v1: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// migrateFolders applies the folder-list migration contract on startup
func (s *Store) migrateFolders(ctx context.Context) error {
	list, err := s.Folders(ctx)
	if err != nil {
		return err
	}
	normalized, changed := folders.Normalize(list)
	if changed {
		return s.SaveFolders(ctx, normalized)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Folders returns the persisted folder list, seeding the default set on
// first run. Malformed stored data is discarded in favor of the defaults
// rather than failing the caller.
func (s *Store) Folders(ctx context.Context) ([]folders.Folder, error) {
	raw, ok, err := s.get(ctx, keyFolders)
	if err != nil {
		return nil, err
	}
	if ok {
		var list []folders.Folder
		if err := json.Unmarshal([]byte(raw), &list); err == nil && folders.Validate(list) {
			return list, nil
		}
	}
	list := folders.DefaultList()
	if err := s.SaveFolders(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// SaveFolders persists the folder list
func (s *Store) SaveFolders(ctx context.Context, list []folders.Folder) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal folders: %w", err)
	}
	return s.set(ctx, keyFolders, string(data))
}

// SelectedFolder returns the last-selected folder id, defaulting to "all"
func (s *Store) SelectedFolder(ctx context.Context) (string, error) {
	v, ok, err := s.get(ctx, keySelectedFolder)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return folders.FolderAll, nil
	}
	return v, nil
}

// SetSelectedFolder persists the selected folder id
func (s *Store) SetSelectedFolder(ctx context.Context, id string) error {
	return s.set(ctx, keySelectedFolder, id)
}

// Enabled returns the global enabled flag, defaulting to true
func (s *Store) Enabled(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, keyEnabled)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return v == "1", nil
}

// SetEnabled persists the global enabled flag
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.set(ctx, keyEnabled, v)
}
