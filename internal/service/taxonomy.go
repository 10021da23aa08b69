package service

import (
	"context"
	"errors"
	"strings"

	"docmanager/internal/models"
	"docmanager/internal/store"
)

type CategoryInput struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type DocumentTypeInput struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.st.ListCategories(ctx)
}

func (s *Service) DocumentTypes(ctx context.Context) ([]models.DocumentType, error) {
	return s.st.ListDocumentTypes(ctx)
}

func (s *Service) checkCategory(ctx context.Context, in *CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.ParentID == nil {
		return nil
	}
	if in.ID != 0 && *in.ParentID == in.ID {
		return invalid("parent_id", "a category cannot be its own parent")
	}
	parent, err := s.st.GetCategory(ctx, *in.ParentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("parent_id", "parent category does not exist")
		}
		return err
	}
	if in.ID == 0 {
		return nil
	}
	// Walk up from the new parent; reaching the category itself means a cycle.
	seen := map[int64]bool{parent.ID: true}
	for parent.ParentID != nil {
		next := *parent.ParentID
		if next == in.ID {
			return invalid("parent_id", "parent would create a category cycle")
		}
		if seen[next] {
			return nil
		}
		seen[next] = true
		if parent, err = s.st.GetCategory(ctx, next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Service) AddCategory(ctx context.Context, admin models.User, in CategoryInput) (models.Category, error) {
	if !admin.IsAdmin() {
		return models.Category{}, ErrForbidden
	}
	in.ID = 0
	if err := s.checkCategory(ctx, &in); err != nil {
		return models.Category{}, err
	}
	return s.st.CreateCategory(ctx, admin.ID, models.Category{
		Name:        in.Name,
		Description: optional(in.Description),
		ParentID:    in.ParentID,
	})
}

func (s *Service) UpdateCategory(ctx context.Context, admin models.User, in CategoryInput) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if in.ID <= 0 {
		return invalid("id", "id is required")
	}
	if err := s.checkCategory(ctx, &in); err != nil {
		return err
	}
	return mapStoreErr(s.st.UpdateCategory(ctx, admin.ID, models.Category{
		ID:          in.ID,
		Name:        in.Name,
		Description: optional(in.Description),
		ParentID:    in.ParentID,
	}))
}

// DeleteCategory fails with *store.ReferencedError while active documents
// still use the category.
func (s *Service) DeleteCategory(ctx context.Context, admin models.User, id int64) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if id <= 0 {
		return invalid("id", "id is required")
	}
	return mapStoreErr(s.st.DeleteCategory(ctx, admin.ID, id))
}

func (s *Service) AddDocumentType(ctx context.Context, admin models.User, in DocumentTypeInput) (models.DocumentType, error) {
	if !admin.IsAdmin() {
		return models.DocumentType{}, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return models.DocumentType{}, err
	}
	return s.st.CreateDocumentType(ctx, admin.ID, models.DocumentType{
		Name:        in.Name,
		Description: optional(in.Description),
	})
}

func (s *Service) UpdateDocumentType(ctx context.Context, admin models.User, in DocumentTypeInput) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if in.ID <= 0 {
		return invalid("id", "id is required")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return err
	}
	return mapStoreErr(s.st.UpdateDocumentType(ctx, admin.ID, models.DocumentType{
		ID:          in.ID,
		Name:        in.Name,
		Description: optional(in.Description),
	}))
}

func (s *Service) DeleteDocumentType(ctx context.Context, admin models.User, id int64) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if id <= 0 {
		return invalid("id", "id is required")
	}
	return mapStoreErr(s.st.DeleteDocumentType(ctx, admin.ID, id))
}
