// Package store persists the client's boot-time flags in a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Flag keys stored in the flags table.
const (
	FlagConsentGiven       = "consent-given"
	FlagOnboardingComplete = "onboarding-complete"
)

const schema = `
	CREATE TABLE IF NOT EXISTS flags (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		updatedAt REAL NOT NULL
	);
`

// Store provides access to the soundstage SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the database path inside dataDir.
func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "soundstage.sqlite")
}

// Open opens (creating if needed) the database at path with WAL.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newStore(db)
}

// OpenMemory opens a private in-memory database, for tests and dry runs.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Flags reads both boot flags. Missing rows read as false.
func (s *Store) Flags() (Flags, error) {
	rows, err := s.db.Query(`SELECT key, value FROM flags WHERE key IN (?, ?)`,
		FlagConsentGiven, FlagOnboardingComplete)
	if err != nil {
		return Flags{}, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var f Flags
	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return Flags{}, fmt.Errorf("scan flag: %w", err)
		}
		switch key {
		case FlagConsentGiven:
			f.ConsentGiven = value != 0
		case FlagOnboardingComplete:
			f.OnboardingComplete = value != 0
		}
	}
	return f, rows.Err()
}

// Flag reads a single flag and when it was last written.
func (s *Store) Flag(key string) (bool, time.Time, error) {
	var value int
	var updatedAt float64
	err := s.db.QueryRow(`SELECT value, updatedAt FROM flags WHERE key = ?`, key).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("query flag %s: %w", key, err)
	}
	return value != 0, timeFromUnix(updatedAt), nil
}

// SetFlag upserts a flag value.
func (s *Store) SetFlag(key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO flags (key, value, updatedAt)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = excluded.updatedAt
	`, key, v, unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set flag %s: %w", key, err)
	}
	return nil
}

// SetConsentGiven records that the consent gate was passed.
func (s *Store) SetConsentGiven() error {
	return s.SetFlag(FlagConsentGiven, true)
}

// SetOnboardingComplete records that the setup wizard finished.
func (s *Store) SetOnboardingComplete() error {
	return s.SetFlag(FlagOnboardingComplete, true)
}

// Reset clears both flags so the next start shows consent and onboarding again.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM flags`); err != nil {
		return fmt.Errorf("reset flags: %w", err)
	}
	return nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
