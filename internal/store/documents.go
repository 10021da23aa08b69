package store

import (
	"context"
	"database/sql"
	"strings"

	"docmanager/internal/models"
)

// documentFrom is shared by the count and page queries of a listing so both
// always see the same joined rows.
const documentFrom = ` FROM documents d
 LEFT JOIN users u ON d.author_id = u.id
 LEFT JOIN categories c ON d.category_id = c.id
 LEFT JOIN document_types dt ON d.document_type_id = dt.id`

const documentColumns = `d.id,d.title,d.description,d.file_path,d.file_name,d.file_size,d.file_format,d.author_id,
 COALESCE(u.full_name,''),d.category_id,c.name,d.document_type_id,dt.name,
 d.view_count,d.download_count,d.is_deleted,d.created_at,d.updated_at`

func scanDocument(rs rowScanner) (models.Document, error) {
	var d models.Document
	var catID, typeID sql.NullInt64
	var catName, typeName sql.NullString
	var deleted int
	err := rs.Scan(&d.ID, &d.Title, &d.Description, &d.FilePath, &d.FileName, &d.FileSize, &d.FileFormat, &d.AuthorID,
		&d.AuthorName, &catID, &catName, &typeID, &typeName,
		&d.ViewCount, &d.DownloadCount, &deleted, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, err
	}
	d.CategoryID = int64Ptr(catID)
	d.CategoryName = stringPtr(catName)
	d.DocumentTypeID = int64Ptr(typeID)
	d.DocTypeName = stringPtr(typeName)
	d.IsDeleted = deleted == 1
	return d, nil
}

// documentWhere builds the predicate for a listing. Every filter is optional
// and they are AND-combined.
func (s *Store) documentWhere(f models.DocumentFilter) (string, []any) {
	var where []string
	var args []any
	if !f.IncludeDeleted {
		where = append(where, "d.is_deleted = 0")
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		lower := s.dialect.Lower
		where = append(where, "("+lower("d.title")+" LIKE ? ESCAPE '!' OR "+
			lower("d.description")+" LIKE ? ESCAPE '!' OR "+
			lower("u.full_name")+" LIKE ? ESCAPE '!')")
		args = append(args, like, like, like)
	}
	if f.CategoryID != nil {
		where = append(where, "d.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.DocumentTypeID != nil {
		where = append(where, "d.document_type_id = ?")
		args = append(args, *f.DocumentTypeID)
	}
	if len(f.Formats) > 0 {
		marks := make([]string, len(f.Formats))
		for i, fm := range f.Formats {
			marks[i] = "?"
			args = append(args, string(fm))
		}
		where = append(where, "d.file_format IN ("+strings.Join(marks, ",")+")")
	}
	if f.AuthorID != nil {
		where = append(where, "d.author_id = ?")
		args = append(args, *f.AuthorID)
	}
	if f.Since != nil {
		where = append(where, "d.created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// ListDocuments returns one page of documents matching f plus the total
// number of matches.
func (s *Store) ListDocuments(ctx context.Context, f models.DocumentFilter, limit, offset int) ([]models.Document, int64, error) {
	where, args := s.documentWhere(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1)`+documentFrom+` WHERE `+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+documentColumns+documentFrom+` WHERE `+where+` ORDER BY d.created_at DESC, d.id DESC LIMIT ? OFFSET ?`),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.Document, 0, limit)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (s *Store) getDocument(ctx context.Context, qr querier, id int64) (models.Document, error) {
	row := qr.QueryRowContext(ctx, s.q(`SELECT `+documentColumns+documentFrom+` WHERE d.id = ?`), id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return models.Document{}, ErrNotFound
	}
	return d, err
}

// GetDocument returns a document regardless of its deleted flag.
func (s *Store) GetDocument(ctx context.Context, id int64) (models.Document, error) {
	return s.getDocument(ctx, s.db, id)
}

// GetActiveDocument returns a non-deleted document.
func (s *Store) GetActiveDocument(ctx context.Context, id int64) (models.Document, error) {
	d, err := s.getDocument(ctx, s.db, id)
	if err != nil {
		return models.Document{}, err
	}
	if d.IsDeleted {
		return models.Document{}, ErrNotFound
	}
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, authorID int64, meta models.DocumentMeta, file models.StoredFile) (int64, error) {
	now := s.now()
	return s.insert(ctx, s.db,
		`INSERT INTO documents(title,description,file_path,file_name,file_size,file_format,author_id,category_id,document_type_id,view_count,download_count,is_deleted,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,0,0,0,?,?)`,
		meta.Title, meta.Description, file.Path, file.Name, file.Size, string(file.Format), authorID,
		nullInt64(meta.CategoryID), nullInt64(meta.DocumentTypeID), now, now,
	)
}

// UpdateDocument replaces the editable metadata and, when file is non-nil, the
// stored file reference.
func (s *Store) UpdateDocument(ctx context.Context, id int64, meta models.DocumentMeta, file *models.StoredFile) error {
	now := s.now()
	var res sql.Result
	var err error
	if file != nil {
		res, err = s.db.ExecContext(ctx,
			s.q(`UPDATE documents SET title=?, description=?, category_id=?, document_type_id=?, file_path=?, file_name=?, file_size=?, file_format=?, updated_at=? WHERE id=?`),
			meta.Title, meta.Description, nullInt64(meta.CategoryID), nullInt64(meta.DocumentTypeID),
			file.Path, file.Name, file.Size, string(file.Format), now, id,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			s.q(`UPDATE documents SET title=?, description=?, category_id=?, document_type_id=?, updated_at=? WHERE id=?`),
			meta.Title, meta.Description, nullInt64(meta.CategoryID), nullInt64(meta.DocumentTypeID), now, id,
		)
	}
	if err != nil {
		return err
	}
	return s.ensureAffected(ctx, s.db, res, "documents", id)
}

func (s *Store) SoftDeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE documents SET is_deleted=1, updated_at=? WHERE id=?`), s.now(), id)
	if err != nil {
		return err
	}
	return s.ensureAffected(ctx, s.db, res, "documents", id)
}

// HardDeleteDocument removes the row and records the audit entry atomically.
// The returned document is the row as it was before deletion so the caller
// can remove its file.
func (s *Store) HardDeleteDocument(ctx context.Context, adminID, id int64, reason *string) (models.Document, error) {
	var doc models.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		doc, err = s.getDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM documents WHERE id=?`), id); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, models.AdminLog{AdminID: adminID, Action: "delete_document", TargetType: "document", TargetID: id, Reason: reason})
	})
	if err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

func (s *Store) IncrementViewCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE documents SET view_count = view_count + 1 WHERE id=? AND is_deleted=0`), id)
	return err
}

func (s *Store) IncrementDownloadCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE documents SET download_count = download_count + 1 WHERE id=? AND is_deleted=0`), id)
	return err
}
