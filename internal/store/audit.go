package store

import (
	"context"
	"database/sql"

	"docmanager/internal/models"
)

func (s *Store) insertAudit(ctx context.Context, qr querier, e models.AdminLog) error {
	_, err := qr.ExecContext(ctx,
		s.q(`INSERT INTO admin_logs(admin_id,action,target_type,target_id,reason,created_at) VALUES(?,?,?,?,?,?)`),
		e.AdminID, e.Action, e.TargetType, e.TargetID, nullString(e.Reason), s.now(),
	)
	return err
}

// ListAudit returns audit entries newest first with the acting admin's name.
func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]models.AdminLog, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admin_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT l.id,l.admin_id,COALESCE(u.full_name,''),l.action,l.target_type,l.target_id,l.reason,l.created_at
		 FROM admin_logs l LEFT JOIN users u ON l.admin_id = u.id
		 ORDER BY l.created_at DESC, l.id DESC LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.AdminLog, 0, limit)
	for rows.Next() {
		var e models.AdminLog
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminName, &e.Action, &e.TargetType, &e.TargetID, &reason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Reason = stringPtr(reason)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
