// Package vpn provides profile storage and connection orchestration.
// This file contains the SQLite-backed profile store.
package vpn

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// profiles is keyed by name; id only fixes the enumeration order.
const storeSchema = `
CREATE TABLE IF NOT EXISTS profiles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    config_path TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    last_used_at INTEGER
);
`

// Store persists VPN profiles in a SQLite database owned by the current
// user. Listing returns profiles in insertion order.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (or creates) the profile database at path and applies the
// schema. Use ":memory:" for an in-memory database (useful in tests).
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("%w: failed to create store directory: %w", common.ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open profile database: %w", common.ErrStorage, err)
	}

	// Keep a single writer connection to avoid SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL: %w", common.ErrStorage, err)
	}

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to apply schema: %w", common.ErrStorage, err)
	}

	if path != ":memory:" {
		// The database holds only profile metadata, but it still belongs
		// to the current user alone.
		_ = os.Chmod(path, 0600)
	}

	logger.Debug("profile store opened", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all profiles in insertion order. An empty store yields an
// empty slice, never an error.
func (s *Store) List() ([]Profile, error) {
	rows, err := s.db.Query(`SELECT name, config_path, created_at, last_used_at FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list profiles: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read profile row: %w", common.ErrStorage, err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list profiles: %w", common.ErrStorage, err)
	}

	return profiles, nil
}

// Add validates and persists a new profile. The name must be non-blank and
// unique; the config file must exist when the profile is added.
func (s *Store) Add(name, configPath string) (*Profile, error) {
	profile := &Profile{
		Name:       strings.TrimSpace(name),
		ConfigPath: configPath,
		CreatedAt:  time.Now(),
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if !common.IsRegularFile(profile.ConfigPath) {
		return nil, fmt.Errorf("%w: config file not found: %s", common.ErrInvalidInput, profile.ConfigPath)
	}

	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM profiles WHERE name = ?)`, profile.Name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check profile name: %w", common.ErrStorage, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", common.ErrDuplicateName, profile.Name)
	}

	_, err = s.db.Exec(
		`INSERT INTO profiles (name, config_path, created_at) VALUES (?, ?, ?)`,
		profile.Name, profile.ConfigPath, profile.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert profile: %w", common.ErrStorage, err)
	}

	s.logger.Info("profile added", "name", profile.Name, "config", profile.ConfigPath)

	return profile, nil
}

// Remove deletes the named profile. Removing an absent name reports
// ErrProfileNotFound.
func (s *Store) Remove(name string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("%w: failed to remove profile: %w", common.ErrStorage, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to remove profile: %w", common.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", common.ErrProfileNotFound, name)
	}

	s.logger.Info("profile removed", "name", name)

	return nil
}

// Get retrieves a profile by exact name match.
func (s *Store) Get(name string) (*Profile, error) {
	row := s.db.QueryRow(`SELECT name, config_path, created_at, last_used_at FROM profiles WHERE name = ?`, name)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read profile: %w", common.ErrStorage, err)
	}

	return &p, nil
}

// MarkUsed updates the last-used timestamp for a profile.
func (s *Store) MarkUsed(name string) error {
	res, err := s.db.Exec(`UPDATE profiles SET last_used_at = ? WHERE name = ?`, time.Now().Unix(), name)
	if err != nil {
		return fmt.Errorf("%w: failed to update profile: %w", common.ErrStorage, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to update profile: %w", common.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", common.ErrProfileNotFound, name)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var (
		p        Profile
		created  int64
		lastUsed sql.NullInt64
	)
	if err := row.Scan(&p.Name, &p.ConfigPath, &created, &lastUsed); err != nil {
		return Profile{}, err
	}
	p.CreatedAt = time.Unix(created, 0)
	if lastUsed.Valid {
		p.LastUsedAt = time.Unix(lastUsed.Int64, 0)
	}
	return p, nil
}
