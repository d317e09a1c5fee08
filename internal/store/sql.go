package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // Required for file source
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state_entries (
	entry_key   TEXT PRIMARY KEY,
	entry_value TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_entries_expires_at ON state_entries(expires_at);
`

// SQLStore keeps entries in a relational table. Expired rows are invisible to reads and are
// deleted by PurgeExpired.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresDB establishes a new connection to the PostgreSQL database.
func NewPostgresDB(dataSourceName string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to the database!")
	return db, nil
}

// MigrateDB runs the postgres migrations found under migrationsPath.
func MigrateDB(db *sqlx.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "paradoxplazabot", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully")
	return nil
}

// NewSQLiteDB opens a SQLite database and creates the state table.
func NewSQLiteDB(path string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("State database initialized", zap.String("db_path", path))
	return db, nil
}

// NewSQLStore wraps an open database whose schema is already in place.
func NewSQLStore(db *sqlx.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	query := s.db.Rebind(`SELECT entry_value FROM state_entries WHERE entry_key = ? AND expires_at > ?`)
	err := s.db.GetContext(ctx, &value, query, key, s.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("Failed to get state entry", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLRequired
	}
	query := s.db.Rebind(`
		INSERT INTO state_entries (entry_key, entry_value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (entry_key) DO UPDATE SET entry_value = excluded.entry_value, expires_at = excluded.expires_at
	`)
	expiresAt := s.now().Add(ttl)
	// Round up so sub-second TTLs do not expire immediately.
	unix := expiresAt.Unix()
	if expiresAt.Nanosecond() > 0 {
		unix++
	}
	if _, err := s.db.ExecContext(ctx, query, key, value, unix); err != nil {
		s.logger.Error("Failed to set state entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := s.db.Rebind(`DELETE FROM state_entries WHERE entry_key = ?`)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		s.logger.Error("Failed to delete state entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	query := s.db.Rebind(`
		SELECT entry_key FROM state_entries
		WHERE entry_key LIKE ? ESCAPE '\' AND expires_at > ?
		ORDER BY entry_key
	`)
	if err := s.db.SelectContext(ctx, &keys, query, escapeLike(prefix)+"%", s.now().Unix()); err != nil {
		s.logger.Error("Failed to scan state entries", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return keys, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	query := s.db.Rebind(`DELETE FROM state_entries WHERE expires_at <= ?`)
	result, err := s.db.ExecContext(ctx, query, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
