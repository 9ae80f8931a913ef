package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"gazetteer/internal/config"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CatalogPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Health aggregates catalog state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.TaskStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusArchiving:
			health.Archiving += count
		case StatusFailed:
			health.Failed += count
		}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media`).Scan(&health.Media); err != nil {
		return HealthSummary{}, fmt.Errorf("count media: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM locations`).Scan(&health.Locations); err != nil {
		return HealthSummary{}, fmt.Errorf("count locations: %w", err)
	}
	return health, nil
}

// CheckHealth verifies the database file exists, answers queries, and passes
// an integrity check.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("catalog database connection unavailable")
	}
	if s.path == "" {
		return errors.New("catalog database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("catalog database path %q is a directory", s.path)
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		return fmt.Errorf("ping catalog database: %w", err)
	}
	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check reported %q", integrity)
	}
	return nil
}

// exists helpers feed identity.UniqueRandom when minting new identifiers.

// TaskIDExists reports whether a task identifier is already taken.
func (s *Store) TaskIDExists(ctx context.Context, id string) (bool, error) {
	return s.idExists(ctx, "capture_tasks", id)
}

// LocationIDExists reports whether a location identifier is already taken.
func (s *Store) LocationIDExists(ctx context.Context, id string) (bool, error) {
	return s.idExists(ctx, "locations", id)
}

// MediaIDExists reports whether a media identifier is already taken.
func (s *Store) MediaIDExists(ctx context.Context, id string) (bool, error) {
	return s.idExists(ctx, "media", id)
}

func (s *Store) idExists(ctx context.Context, table, id string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM ` + table + ` WHERE id = ?`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check %s id: %w", table, err)
	}
	return count > 0, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
