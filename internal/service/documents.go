package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docmanager/internal/files"
	"docmanager/internal/models"
	"docmanager/internal/store"
	"docmanager/internal/util"
)

const (
	MaxPageLimit         = 100
	DefaultDocumentLimit = 10
	DefaultAdminLimit    = 20
	DefaultLogLimit      = 50
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type DocumentInput struct {
	Title          string `json:"title" validate:"required,max=255"`
	Description    string `json:"description"`
	CategoryID     *int64 `json:"category_id" validate:"omitempty,gt=0"`
	DocumentTypeID *int64 `json:"document_type_id" validate:"omitempty,gt=0"`
}

type ListParams struct {
	Search         string
	CategoryID     *int64
	DocumentTypeID *int64
	Formats        string
	TimeRange      string
	Page           int
	Limit          int
}

// DownloadRef tells the client where to fetch a document's bytes.
type DownloadRef struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// NormalizePage clamps page to >= 1 and limit to [1, MaxPageLimit], using
// def when limit is unset.
func NormalizePage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func parseFormats(csv string) []models.FileFormat {
	var out []models.FileFormat
	seen := map[models.FileFormat]bool{}
	for _, part := range strings.Split(csv, ",") {
		f, ok := models.ParseFileFormat(strings.ToLower(strings.TrimSpace(part)))
		if ok && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func (s *Service) listDocuments(ctx context.Context, f models.DocumentFilter, page, limit int) ([]models.Document, util.Pagination, error) {
	docs, total, err := s.st.ListDocuments(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, util.Pagination{}, err
	}
	return docs, util.NewPagination(total, page, limit), nil
}

// List is the public library listing. Deleted documents never appear.
func (s *Service) List(ctx context.Context, p ListParams) ([]models.Document, util.Pagination, error) {
	page, limit := NormalizePage(p.Page, p.Limit, DefaultDocumentLimit)
	f := models.DocumentFilter{
		Search:         p.Search,
		CategoryID:     p.CategoryID,
		DocumentTypeID: p.DocumentTypeID,
	}
	if strings.TrimSpace(p.Formats) != "" {
		f.Formats = parseFormats(p.Formats)
		if len(f.Formats) == 0 {
			return []models.Document{}, util.NewPagination(0, page, limit), nil
		}
	}
	if since, ok := models.TimeRange(p.TimeRange).Since(s.now().UTC()); ok {
		f.Since = &since
	}
	return s.listDocuments(ctx, f, page, limit)
}

func (s *Service) MyDocuments(ctx context.Context, userID int64, page, limit int) ([]models.Document, util.Pagination, error) {
	page, limit = NormalizePage(page, limit, DefaultDocumentLimit)
	return s.listDocuments(ctx, models.DocumentFilter{AuthorID: &userID}, page, limit)
}

// Get returns an active document and counts the view.
func (s *Service) Get(ctx context.Context, id int64) (models.Document, error) {
	d, err := s.st.GetActiveDocument(ctx, id)
	if err != nil {
		return models.Document{}, mapStoreErr(err)
	}
	if err := s.st.IncrementViewCount(ctx, id); err != nil {
		return models.Document{}, err
	}
	d.ViewCount++
	return d, nil
}

func fileURL(name string) string { return "/uploads/" + name }

// Download counts a download of an active document whose file is present.
func (s *Service) Download(ctx context.Context, id int64) (DownloadRef, error) {
	d, err := s.st.GetActiveDocument(ctx, id)
	if err != nil {
		return DownloadRef{}, mapStoreErr(err)
	}
	if !s.files.Exists(d.FilePath) {
		return DownloadRef{}, fmt.Errorf("%w: file is missing from storage", ErrNotFound)
	}
	if err := s.st.IncrementDownloadCount(ctx, id); err != nil {
		return DownloadRef{}, err
	}
	return DownloadRef{FilePath: d.FilePath, FileName: d.FileName, URL: fileURL(d.FilePath)}, nil
}

func (s *Service) validateDocumentInput(ctx context.Context, in *DocumentInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.CategoryID != nil {
		if _, err := s.st.GetCategory(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("category_id", "category does not exist")
			}
			return err
		}
	}
	if in.DocumentTypeID != nil {
		if _, err := s.st.GetDocumentType(ctx, *in.DocumentTypeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("document_type_id", "document type does not exist")
			}
			return err
		}
	}
	return nil
}

// storeDocumentFile validates an upload and writes it under a generated name.
func (s *Service) storeDocumentFile(up *Upload) (models.StoredFile, error) {
	if up == nil || up.Body == nil {
		return models.StoredFile{}, invalid("file", "file is required")
	}
	if up.Size > s.cfg.MaxFileSize {
		return models.StoredFile{}, ErrFileTooLarge
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	format, ok := models.ParseFileFormat(ext)
	if !ok {
		return models.StoredFile{}, invalid("file", "only PDF, DOCX and ZIP files are accepted")
	}
	name := fmt.Sprintf("%s_%d.%s", uuid.NewString(), s.now().Unix(), ext)
	n, err := s.files.Put(name, up.Body, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return models.StoredFile{}, ErrFileTooLarge
		}
		return models.StoredFile{}, err
	}
	return models.StoredFile{Path: name, Name: filepath.Base(up.Filename), Size: n, Format: format}, nil
}

func (s *Service) Upload(ctx context.Context, author models.User, in DocumentInput, up *Upload) (int64, error) {
	if err := s.validateDocumentInput(ctx, &in); err != nil {
		return 0, err
	}
	stored, err := s.storeDocumentFile(up)
	if err != nil {
		return 0, err
	}
	id, err := s.st.CreateDocument(ctx, author.ID, models.DocumentMeta{
		Title:          in.Title,
		Description:    in.Description,
		CategoryID:     in.CategoryID,
		DocumentTypeID: in.DocumentTypeID,
	}, stored)
	if err != nil {
		if rmErr := s.files.Remove(stored.Path); rmErr != nil {
			s.log.WithError(rmErr).WithField("file", stored.Path).Warn("remove orphaned upload")
		}
		return 0, err
	}
	return id, nil
}

func canModify(actor models.User, d models.Document) bool {
	return actor.IsAdmin() || d.AuthorID == actor.ID
}

// Update changes metadata and optionally replaces the file. Only the author
// or an admin may update.
func (s *Service) Update(ctx context.Context, actor models.User, id int64, in DocumentInput, up *Upload) error {
	d, err := s.st.GetActiveDocument(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if !canModify(actor, d) {
		return ErrForbidden
	}
	if err := s.validateDocumentInput(ctx, &in); err != nil {
		return err
	}
	meta := models.DocumentMeta{
		Title:          in.Title,
		Description:    in.Description,
		CategoryID:     in.CategoryID,
		DocumentTypeID: in.DocumentTypeID,
	}
	if up == nil {
		return mapStoreErr(s.st.UpdateDocument(ctx, id, meta, nil))
	}
	stored, err := s.storeDocumentFile(up)
	if err != nil {
		return err
	}
	if err := s.st.UpdateDocument(ctx, id, meta, &stored); err != nil {
		if rmErr := s.files.Remove(stored.Path); rmErr != nil {
			s.log.WithError(rmErr).WithField("file", stored.Path).Warn("remove orphaned upload")
		}
		return mapStoreErr(err)
	}
	if err := s.files.Remove(d.FilePath); err != nil {
		s.log.WithError(err).WithField("file", d.FilePath).Warn("remove replaced file")
	}
	return nil
}

func (s *Service) SoftDelete(ctx context.Context, actor models.User, id int64) error {
	d, err := s.st.GetActiveDocument(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if !canModify(actor, d) {
		return ErrForbidden
	}
	return mapStoreErr(s.st.SoftDeleteDocument(ctx, id))
}

// HardDelete permanently removes a document row and its file. The row and
// the audit entry are written together; the file goes afterwards and a
// missing file is ignored.
func (s *Service) HardDelete(ctx context.Context, admin models.User, id int64, reason string) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	d, err := s.st.HardDeleteDocument(ctx, admin.ID, id, optional(reason))
	if err != nil {
		return mapStoreErr(err)
	}
	if err := s.files.Remove(d.FilePath); err != nil {
		s.log.WithError(err).WithField("file", d.FilePath).Warn("remove deleted document file")
	}
	return nil
}
