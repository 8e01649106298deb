// Package sqlstore keeps mind maps in a SQLite database. Each save
// replaces the map's node and edge rows in one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/raghurai/raidical-bjj/internal/mapdoc"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrConflict is returned when saving a map id owned by another athlete.
var ErrConflict = errors.New("map owned by another athlete")

// Store is a SQLite-backed mind map adapter.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and applies any
// pending migrations. A nil logger discards.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newWithDB(db, logger), nil
}

func newWithDB(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, log: logger}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns a map owned by athleteID, or mapdoc.ErrNotFound.
func (s *Store) Load(ctx context.Context, athleteID, mapID string) (*mapdoc.Document, error) {
	doc, err := queryLoadMap(ctx, s.db, athleteID, mapID)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", athleteID, mapID, err)
	}
	return doc, nil
}

// Save replaces the stored rows of doc's map and bumps its version. It
// sets doc.Version to the stored version.
func (s *Store) Save(ctx context.Context, doc *mapdoc.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	version, err := querySaveMap(ctx, tx, doc)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	doc.Version = version
	s.log.Info("map saved", "athlete", doc.AthleteID, "map", doc.ID, "version", version,
		"nodes", len(doc.Snapshot.Nodes), "edges", len(doc.Snapshot.Edges))
	return nil
}

// List summarises every map an athlete owns, ordered by id.
func (s *Store) List(ctx context.Context, athleteID string) ([]mapdoc.Summary, error) {
	return queryListMaps(ctx, s.db, athleteID)
}
