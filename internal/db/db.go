package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

// sqliteLowerFunc is a Unicode-aware replacement for SQLite's LOWER, which
// only folds ASCII letters.
const sqliteLowerFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// Dialect names the SQL flavour behind a *sql.DB. Its value doubles as the
// database/sql driver name.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "pgx"
)

func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case SQLite:
		return SQLite, nil
	case MySQL:
		return MySQL, nil
	case Postgres, "postgres":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Lower wraps a column expression in a case fold that handles non-ASCII
// letters. MySQL and Postgres LOWER already do.
func (d Dialect) Lower(expr string) string {
	if d == SQLite {
		return sqliteLowerFunc + "(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}

// SupportsReturning reports whether INSERT ... RETURNING id can be used.
func (d Dialect) SupportsReturning() bool {
	return d == SQLite || d == Postgres
}

// TxOptions returns the options used for check-then-write transactions.
// SQLite transactions are already serializable.
func (d Dialect) TxOptions() *sql.TxOptions {
	if d == SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

type Options struct {
	Dialect     Dialect
	DSN         string
	Path        string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func Open(opts Options) (*sql.DB, error) {
	if opts.Dialect == SQLite {
		return OpenSQLite(opts.Path, opts.MaxOpen, opts.MaxIdle, opts.MaxLifetime)
	}
	dsn := opts.DSN
	if opts.Dialect == MySQL {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(string(opts.Dialect), dsn)
	if err != nil {
		return nil, err
	}
	configurePool(db, opts.MaxOpen, opts.MaxIdle, opts.MaxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// mysqlDSN makes DATETIME columns scan into time.Time in UTC, which the
// store relies on for every timestamp.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	db, err := sql.Open(string(SQLite), dsn)
	if err != nil {
		return nil, err
	}
	configurePool(db, maxOpen, maxIdle, maxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func configurePool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
