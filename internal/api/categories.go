package api

import (
	"net/http"

	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/util"
)

type CategoryAction string

const (
	CategoryList       CategoryAction = "list-categories"
	CategoryListTypes  CategoryAction = "list-types"
	CategoryAdd        CategoryAction = "add-category"
	CategoryUpdate     CategoryAction = "update-category"
	CategoryDelete     CategoryAction = "delete-category"
	CategoryAddType    CategoryAction = "add-type"
	CategoryUpdateType CategoryAction = "update-type"
	CategoryDeleteType CategoryAction = "delete-type"
)

func (h *Handlers) categoryRoutes() routeTable[CategoryAction] {
	return routeTable[CategoryAction]{
		CategoryList:       {Public, get, h.ListCategories},
		CategoryListTypes:  {Public, get, h.ListDocumentTypes},
		CategoryAdd:        {AdminOnly, post, h.AddCategory},
		CategoryUpdate:     {AdminOnly, post, h.UpdateCategory},
		CategoryDelete:     {AdminOnly, delPost, h.DeleteCategory},
		CategoryAddType:    {AdminOnly, post, h.AddDocumentType},
		CategoryUpdateType: {AdminOnly, post, h.UpdateDocumentType},
		CategoryDeleteType: {AdminOnly, delPost, h.DeleteDocumentType},
	}
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request, _ models.User) error {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", cats)
	return nil
}

func (h *Handlers) ListDocumentTypes(w http.ResponseWriter, r *http.Request, _ models.User) error {
	types, err := h.svc.DocumentTypes(r.Context())
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", types)
	return nil
}

func (h *Handlers) AddCategory(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req service.CategoryInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	c, err := h.svc.AddCategory(r.Context(), caller, req)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusCreated, "category added", c)
	return nil
}

func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req service.CategoryInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateCategory(r.Context(), caller, req); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "category updated", nil)
	return nil
}

type idRequest struct {
	ID int64 `json:"id"`
}

func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.DeleteCategory(r.Context(), caller, req.ID); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "category deleted", nil)
	return nil
}

func (h *Handlers) AddDocumentType(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req service.DocumentTypeInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	t, err := h.svc.AddDocumentType(r.Context(), caller, req)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusCreated, "document type added", t)
	return nil
}

func (h *Handlers) UpdateDocumentType(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req service.DocumentTypeInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateDocumentType(r.Context(), caller, req); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "document type updated", nil)
	return nil
}

func (h *Handlers) DeleteDocumentType(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.DeleteDocumentType(r.Context(), caller, req.ID); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "document type deleted", nil)
	return nil
}
