package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docmanager/internal/models"
)

const userColumns = `id,email,password_hash,full_name,student_code,role,department,avatar_url,is_blocked,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(rs rowScanner) (models.User, error) {
	var u models.User
	var studentCode, department, avatar sql.NullString
	var blocked int
	if err := rs.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &studentCode, &u.Role, &department, &avatar, &blocked, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.StudentCode = stringPtr(studentCode)
	u.Department = stringPtr(department)
	u.AvatarURL = stringPtr(avatar)
	u.IsBlocked = blocked == 1
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.now()
	id, err := s.insert(ctx, s.db,
		`INSERT INTO users(email,password_hash,full_name,student_code,role,department,avatar_url,is_blocked,created_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.FullName, nullString(u.StudentCode), u.Role, nullString(u.Department), nullString(u.AvatarURL), boolToInt(u.IsBlocked), u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrConflict
		}
		return models.User{}, err
	}
	u.ID = id
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator or promotes and re-keys an
// existing account with the same email.
func (s *Store) EnsureAdmin(ctx context.Context, email, fullName, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil
	}
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_, err = s.CreateUser(ctx, models.User{Email: email, PasswordHash: passwordHash, FullName: fullName, Role: models.RoleAdmin})
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`UPDATE users SET role=?, is_blocked=0, password_hash=? WHERE id=?`),
		models.RoleAdmin, passwordHash, u.ID,
	)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE email=?`), strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) UpdateUserPasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET password_hash=? WHERE id=?`), passwordHash, userID)
	if err != nil {
		return err
	}
	return s.ensureAffected(ctx, s.db, res, "users", userID)
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, fullName string, studentCode, department *string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET full_name=?, student_code=?, department=? WHERE id=?`),
		fullName, nullString(studentCode), nullString(department), userID,
	)
	if err != nil {
		return err
	}
	return s.ensureAffected(ctx, s.db, res, "users", userID)
}

func (s *Store) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET avatar_url=? WHERE id=?`), avatarURL, userID)
	if err != nil {
		return err
	}
	return s.ensureAffected(ctx, s.db, res, "users", userID)
}

// SetBlocked updates the block flag and records the audit entry in the same
// transaction. Setting the current value again still succeeds.
func (s *Store) SetBlocked(ctx context.Context, adminID, userID int64, blocked bool, reason *string) error {
	action := "unblock_user"
	if blocked {
		action = "block_user"
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE users SET is_blocked=? WHERE id=?`), boolToInt(blocked), userID)
		if err != nil {
			return err
		}
		if err := s.ensureAffected(ctx, tx, res, "users", userID); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: action, TargetType: "user", TargetID: userID, Reason: reason})
	})
}

func userWhere(q models.UserQuery) (string, []any) {
	where := []string{"1=1"}
	var args []any
	if q.Role != "" {
		where = append(where, "role = ?")
		args = append(args, q.Role)
	}
	switch q.Status {
	case "active":
		where = append(where, "is_blocked = 0")
	case "blocked":
		where = append(where, "is_blocked = 1")
	}
	return strings.Join(where, " AND "), args
}

func (s *Store) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int64, error) {
	where, args := userWhere(q)
	var total int64
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users WHERE `+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		append(args, q.Limit, q.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.User, 0, q.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
