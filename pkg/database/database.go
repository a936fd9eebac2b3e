package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/prashanttc/tweetAut/pkg/logging"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrNoRows is returned when a query returns no rows
var ErrNoRows = sql.ErrNoRows

// Dialect names the SQL flavour behind a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB is a connection pool tagged with its dialect. Queries are written with
// Postgres $N placeholders and passed through Rebind.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Wrap tags an existing pool, e.g. a sqlmock connection in tests.
func Wrap(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// Config holds database configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns default database configuration
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ParseURL maps a DATABASE_URL to a driver dialect and DSN. postgres:// and
// postgresql:// go to lib/pq; sqlite://path, file:..., :memory: and bare
// *.db paths go to SQLite.
func ParseURL(raw string) (Dialect, string, error) {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return "", "", fmt.Errorf("database URL is required")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DialectPostgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(u, "sqlite://"), nil
	case strings.HasPrefix(u, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(u, "sqlite:"), nil
	case strings.HasPrefix(u, "file:"), u == ":memory:",
		strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"):
		return DialectSQLite, u, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme")
	}
}

// Connect establishes a database connection with the given configuration
func Connect(ctx context.Context, cfg Config, logger logging.Logger) (*DB, error) {
	dialect, dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	driver := "postgres"
	if dialect == DialectSQLite {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite serialises writers; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if logger != nil {
		logger.WithFields(logging.Fields{
			"dialect":           dialect,
			"max_open_conns":    cfg.MaxOpenConns,
			"conn_max_lifetime": cfg.ConnMaxLifetime,
		}).Info("Database connected")
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// MustConnect is like Connect but exits on error
func MustConnect(ctx context.Context, cfg Config, logger logging.Logger) *DB {
	db, err := Connect(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	return db
}

// Migrate applies the embedded schema for the connection's dialect. The
// schema is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database unavailable")
	}
	schema, err := Schema(db.Dialect)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply %s schema: %w", db.Dialect, err)
	}
	return nil
}

// Schema returns the DDL for a dialect.
func Schema(dialect Dialect) (string, error) {
	data, err := schemaFS.ReadFile("schema/" + string(dialect) + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for dialect %q", dialect)
	}
	return string(data), nil
}

// Rebind rewrites $N placeholders for the connection's dialect.
func (db *DB) Rebind(query string) string {
	if db == nil || db.Dialect != DialectSQLite {
		return query
	}
	return Rebind(DialectSQLite, query)
}

// Rebind rewrites $N placeholders to ?N for SQLite. Placeholders inside
// single-quoted literals are left alone.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectSQLite || !strings.Contains(query, "$") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			inQuote = !inQuote
		}
		if ch == '$' && !inQuote && i+1 < len(query) && isDigit(query[i+1]) {
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			b.WriteByte('?')
			b.WriteString(strconv.Itoa(n))
			i = j - 1
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
