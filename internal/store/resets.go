package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// CreatePasswordReset stores a hashed reset token for email. Older tokens for
// the same address are dropped.
func (s *Store) CreatePasswordReset(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM password_resets WHERE email=?`), email); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO password_resets(email,token_hash,expires_at,created_at) VALUES(?,?,?,?)`),
			email, tokenHash, expiresAt.UTC(), s.now(),
		)
		return err
	})
}

// ConsumePasswordReset looks up an unexpired token, stores the new password
// hash for its owner and deletes the token. Unknown or expired tokens yield
// ErrNotFound.
func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		var email string
		var expiresAt time.Time
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT id,email,expires_at FROM password_resets WHERE token_hash=?`), tokenHash,
		).Scan(&id, &email, &expiresAt)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !s.now().Before(expiresAt) {
			return ErrNotFound
		}
		res, err := tx.ExecContext(ctx, s.q(`UPDATE users SET password_hash=? WHERE email=?`), passwordHash, email)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, s.q(`DELETE FROM password_resets WHERE id=?`), id)
		return err
	})
}

func (s *Store) DeleteExpiredPasswordResets(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM password_resets WHERE expires_at < ?`), s.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
