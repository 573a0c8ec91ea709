package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added publish-time index on version_sync_states
const currentSchemaVersion = 1

// DefaultBusyTimeoutMS is the SQLite busy timeout used when Options leaves it unset.
const DefaultBusyTimeoutMS = 5000

// Options tunes how the database is opened.
type Options struct {
	BusyTimeoutMS int
}

// Store provides durable storage for the private, public and stage spaces.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sqlx.DB
}

// Open creates or opens a SQLite database at the given path with default options.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - busy timeout for lock contention (5 seconds unless overridden)
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = DefaultBusyTimeoutMS
	}
	if err := applyPragmas(db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an already configured database handle. The schema is assumed to
// exist; used by tests that drive the repositories through sqlmock.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Elements returns the element repository.
func (s *Store) Elements() *ElementRepository { return &ElementRepository{db: s.db} }

// ElementStates returns the element synchronization state repository.
func (s *Store) ElementStates() *ElementSyncStateRepository {
	return &ElementSyncStateRepository{db: s.db}
}

// Versions returns the version repository.
func (s *Store) Versions() *VersionRepository { return &VersionRepository{db: s.db} }

// VersionStates returns the version synchronization state repository.
func (s *Store) VersionStates() *VersionSyncStateRepository {
	return &VersionSyncStateRepository{db: s.db}
}

// ElementStage returns the staged element repository.
func (s *Store) ElementStage() *ElementStageRepository { return &ElementStageRepository{db: s.db} }

// VersionStage returns the staged version repository.
func (s *Store) VersionStage() *VersionStageRepository { return &VersionStageRepository{db: s.db} }

// CheckHealth verifies the schema is reachable.
func (s *Store) CheckHealth(ctx context.Context) error {
	return checkHealth(ctx, s.db)
}

func checkHealth(ctx context.Context, db *sqlx.DB) error {
	var version int
	if err := db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("check health: %w", err)
	}
	if version != currentSchemaVersion {
		return fmt.Errorf("check health: schema version %d, expected %d", version, currentSchemaVersion)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sqlx.DB, opts Options) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes version states by publish time so revision listings and
// head lookups avoid a full scan.
func migrateToV1(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_version_sync_states_publish
		ON version_sync_states(space, item_id, version_id, publish_time)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.Get(&value, fmt.Sprintf("PRAGMA %s", name)); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
