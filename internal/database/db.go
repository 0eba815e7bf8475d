package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations
var migrationsFS embed.FS

// ErrNotFound is returned when a row addressed by ID does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with a unique key
var ErrConflict = errors.New("already exists")

// Dialect selects the SQL backend
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps the database connection and query builder for one dialect
type DB struct {
	conn    *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// New connects to the database described by databaseURL and applies migrations.
// postgres:// and postgresql:// URLs use pgx, sqlite:// URLs, file: DSNs and
// :memory: use the embedded SQLite driver.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	return Open(ctx, dialect, dsn)
}

// ParseURL splits a DATABASE_URL into a dialect and a driver DSN
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return DialectSQLite, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL %q", databaseURL)
	}
}

// Open connects using an explicit dialect and driver DSN
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	var (
		driver string
		format sq.PlaceholderFormat
	)
	switch dialect {
	case DialectPostgres:
		driver, format = "pgx", sq.Dollar
	case DialectSQLite:
		driver, format = "sqlite", sq.Question
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// One connection keeps :memory: databases shared and serializes writers.
		conn.SetMaxOpenConns(1)
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:    conn,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
	}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect reports which backend this DB talks to
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	dir := "migrations/" + string(db.dialect)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		query, args, err := db.sb.Select("COUNT(*)").From("schema_migrations").Where(sq.Eq{"version": f}).ToSql()
		if err != nil {
			return fmt.Errorf("build migration check: %w", err)
		}
		var applied int
		if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, dir+"/"+f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		record, recordArgs, err := db.sb.Insert("schema_migrations").
			Columns("version", "applied_at").
			Values(f, time.Now().UTC()).
			ToSql()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("build migration record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, record, recordArgs...); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either backend
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
