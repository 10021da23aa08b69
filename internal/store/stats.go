package store

import (
	"context"
	"time"

	"docmanager/internal/db"
	"docmanager/internal/models"
)

// StatisticsTotals holds the scalar counters of the admin dashboard.
type StatisticsTotals struct {
	Documents int64
	Users     int64
	Downloads int64
}

func (s *Store) StatisticsTotals(ctx context.Context) (StatisticsTotals, error) {
	var t StatisticsTotals
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents WHERE is_deleted = 0`).Scan(&t.Documents); err != nil {
		return t, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role <> 'admin'`).Scan(&t.Users); err != nil {
		return t, err
	}
	sum := `COALESCE(SUM(download_count),0)`
	if s.dialect == db.Postgres {
		// SUM(bigint) is numeric on Postgres.
		sum = `CAST(` + sum + ` AS BIGINT)`
	}
	if err := s.db.QueryRowContext(ctx, `SELECT `+sum+` FROM documents WHERE is_deleted = 0`).Scan(&t.Downloads); err != nil {
		return t, err
	}
	return t, nil
}

// DocumentCreationTimes returns creation times of active documents created at
// or after since. Bucketing happens in Go to stay portable across dialects.
func (s *Store) DocumentCreationTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT created_at FROM documents WHERE is_deleted = 0 AND created_at >= ?`), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DocumentsByCategory(ctx context.Context) ([]models.CountByName, error) {
	return s.countByName(ctx, `SELECT c.name, COUNT(d.id) FROM categories c
	 LEFT JOIN documents d ON c.id = d.category_id AND d.is_deleted = 0
	 GROUP BY c.id, c.name ORDER BY c.name, c.id`)
}

func (s *Store) DocumentsByType(ctx context.Context) ([]models.CountByName, error) {
	return s.countByName(ctx, `SELECT dt.name, COUNT(d.id) FROM document_types dt
	 LEFT JOIN documents d ON dt.id = d.document_type_id AND d.is_deleted = 0
	 GROUP BY dt.id, dt.name ORDER BY dt.name, dt.id`)
}

func (s *Store) countByName(ctx context.Context, query string) ([]models.CountByName, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.CountByName{}
	for rows.Next() {
		var c models.CountByName
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) TopDownloadedDocuments(ctx context.Context, limit int) ([]models.TopDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id,title,download_count,view_count FROM documents WHERE is_deleted = 0 ORDER BY download_count DESC, id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.TopDocument{}
	for rows.Next() {
		var d models.TopDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.DownloadCount, &d.ViewCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
