package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"docmanager/internal/db"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

// ReferencedError is returned when a category or document type is still used
// by active documents.
type ReferencedError struct {
	Kind  string
	Count int64
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s is referenced by %d active document(s)", e.Kind, e.Count)
}

type Store struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

func New(sqldb *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: sqldb, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source used for created_at/updated_at values.
func (s *Store) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions())
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, qr querier, query string, args ...any) (int64, error) {
	if s.dialect.SupportsReturning() {
		var id int64
		if err := qr.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := qr.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ensureAffected turns a zero-row UPDATE into ErrNotFound. MySQL reports zero
// affected rows when the new values equal the old ones, so the row is looked
// up before giving up.
func (s *Store) ensureAffected(ctx context.Context, qr querier, res sql.Result, table string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := qr.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM `+table+` WHERE id=?`), id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
