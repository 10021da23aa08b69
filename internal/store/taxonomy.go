package store

import (
	"context"
	"database/sql"

	"docmanager/internal/models"
)

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,description,parent_id,created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		var desc sql.NullString
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &desc, &parent, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Description = stringPtr(desc)
		c.ParentID = int64Ptr(parent)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var c models.Category
	var desc sql.NullString
	var parent sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id,name,description,parent_id,created_at FROM categories WHERE id=?`), id).
		Scan(&c.ID, &c.Name, &desc, &parent, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Category{}, ErrNotFound
	}
	if err != nil {
		return models.Category{}, err
	}
	c.Description = stringPtr(desc)
	c.ParentID = int64Ptr(parent)
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, adminID int64, c models.Category) (models.Category, error) {
	c.CreatedAt = s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx,
			`INSERT INTO categories(name,description,parent_id,created_at) VALUES(?,?,?,?)`,
			c.Name, nullString(c.Description), nullInt64(c.ParentID), c.CreatedAt,
		)
		if err != nil {
			return err
		}
		c.ID = id
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: "add_category", TargetType: "category", TargetID: id})
	})
	return c, err
}

func (s *Store) UpdateCategory(ctx context.Context, adminID int64, c models.Category) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE categories SET name=?, description=?, parent_id=? WHERE id=?`),
			c.Name, nullString(c.Description), nullInt64(c.ParentID), c.ID,
		)
		if err != nil {
			return err
		}
		if err := s.ensureAffected(ctx, tx, res, "categories", c.ID); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: "update_category", TargetType: "category", TargetID: c.ID})
	})
}

// DeleteCategory removes a category that no active document references.
// Check and delete share a transaction.
func (s *Store) DeleteCategory(ctx context.Context, adminID, id int64) error {
	return s.deleteTaxonomy(ctx, adminID, id, "categories", "category_id", "category", "delete_category")
}

func (s *Store) ListDocumentTypes(ctx context.Context) ([]models.DocumentType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,description,created_at FROM document_types ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DocumentType{}
	for rows.Next() {
		var t models.DocumentType
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Description = stringPtr(desc)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetDocumentType(ctx context.Context, id int64) (models.DocumentType, error) {
	var t models.DocumentType
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id,name,description,created_at FROM document_types WHERE id=?`), id).
		Scan(&t.ID, &t.Name, &desc, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return models.DocumentType{}, ErrNotFound
	}
	if err != nil {
		return models.DocumentType{}, err
	}
	t.Description = stringPtr(desc)
	return t, nil
}

func (s *Store) CreateDocumentType(ctx context.Context, adminID int64, t models.DocumentType) (models.DocumentType, error) {
	t.CreatedAt = s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx,
			`INSERT INTO document_types(name,description,created_at) VALUES(?,?,?)`,
			t.Name, nullString(t.Description), t.CreatedAt,
		)
		if err != nil {
			return err
		}
		t.ID = id
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: "add_type", TargetType: "document_type", TargetID: id})
	})
	return t, err
}

func (s *Store) UpdateDocumentType(ctx context.Context, adminID int64, t models.DocumentType) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE document_types SET name=?, description=? WHERE id=?`),
			t.Name, nullString(t.Description), t.ID,
		)
		if err != nil {
			return err
		}
		if err := s.ensureAffected(ctx, tx, res, "document_types", t.ID); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: "update_type", TargetType: "document_type", TargetID: t.ID})
	})
}

func (s *Store) DeleteDocumentType(ctx context.Context, adminID, id int64) error {
	return s.deleteTaxonomy(ctx, adminID, id, "document_types", "document_type_id", "document_type", "delete_type")
}

func (s *Store) deleteTaxonomy(ctx context.Context, adminID, id int64, table, fkColumn, kind, action string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM `+table+` WHERE id=?`), id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		var count int64
		if err := tx.QueryRowContext(ctx,
			s.q(`SELECT COUNT(1) FROM documents WHERE `+fkColumn+`=? AND is_deleted=0`), id,
		).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return &ReferencedError{Kind: kind, Count: count}
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE id=?`), id); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: action, TargetType: kind, TargetID: id})
	})
}
