package api

import (
	"io"
	"net/http"

	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/util"
)

type DocumentAction string

const (
	DocumentList        DocumentAction = "list"
	DocumentGet         DocumentAction = "get"
	DocumentDetail      DocumentAction = "detail"
	DocumentMine        DocumentAction = "my-documents"
	DocumentUpload      DocumentAction = "upload"
	DocumentUpdate      DocumentAction = "update"
	DocumentDelete      DocumentAction = "delete"
	DocumentDownloadRef DocumentAction = "download"
)

func (h *Handlers) documentRoutes() routeTable[DocumentAction] {
	return routeTable[DocumentAction]{
		DocumentList:        {Public, get, h.ListDocuments},
		DocumentGet:         {Public, get, h.GetDocument},
		DocumentDetail:      {Public, get, h.GetDocument},
		DocumentMine:        {Authenticated, get, h.MyDocuments},
		DocumentUpload:      {Authenticated, post, h.UploadDocument},
		DocumentUpdate:      {Authenticated, post, h.UpdateDocument},
		DocumentDelete:      {Authenticated, delPost, h.DeleteDocument},
		DocumentDownloadRef: {Public, get, h.DownloadDocument},
	}
}

func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request, _ models.User) error {
	q := r.URL.Query()
	docs, p, err := h.svc.List(r.Context(), service.ListParams{
		Search:         q.Get("search"),
		CategoryID:     queryFilterID(r, "category"),
		DocumentTypeID: queryFilterID(r, "doc_type"),
		Formats:        q.Get("format"),
		TimeRange:      q.Get("time_range"),
		Page:           queryInt(r, "page"),
		Limit:          queryInt(r, "limit"),
	})
	if err != nil {
		return err
	}
	util.WritePage(w, docs, p)
	return nil
}

type documentDetail struct {
	models.Document
	FullPathURL string `json:"full_path_url"`
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request, _ models.User) error {
	id, err := requiredID(r.URL.Query().Get("id"), "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", documentDetail{Document: d, FullPathURL: fileURL(d.FilePath)})
	return nil
}

func (h *Handlers) MyDocuments(w http.ResponseWriter, r *http.Request, caller models.User) error {
	docs, p, err := h.svc.MyDocuments(r.Context(), caller.ID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		return err
	}
	util.WritePage(w, docs, p)
	return nil
}

func documentInputFromForm(r *http.Request) (service.DocumentInput, error) {
	in := service.DocumentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	var err error
	if in.CategoryID, err = optionalID(r.FormValue("category_id")); err != nil {
		return in, badRequest("category_id must be a number")
	}
	if in.DocumentTypeID, err = optionalID(r.FormValue("document_type_id")); err != nil {
		return in, badRequest("document_type_id must be a number")
	}
	return in, nil
}

func (h *Handlers) UploadDocument(w http.ResponseWriter, r *http.Request, caller models.User) error {
	if err := parseMultipart(w, r, h.cfg.MaxFileSize); err != nil {
		return err
	}
	in, err := documentInputFromForm(r)
	if err != nil {
		return err
	}
	up, closer, err := formUpload(r, "file")
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	id, err := h.svc.Upload(r.Context(), caller, in, up)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusCreated, "document uploaded", map[string]int64{"id": id})
	return nil
}

func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var closer io.Closer
	var up *service.Upload
	if isFormRequest(r) {
		if err := parseMultipart(w, r, h.cfg.MaxFileSize); err != nil {
			return err
		}
		var err error
		if up, closer, err = formUpload(r, "file"); err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}
	}
	idValue := r.FormValue("id")
	if idValue == "" {
		idValue = r.URL.Query().Get("id")
	}
	id, err := requiredID(idValue, "id")
	if err != nil {
		return err
	}
	in, err := documentInputFromForm(r)
	if err != nil {
		return err
	}
	if err := h.svc.Update(r.Context(), caller, id, in, up); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "document updated", nil)
	return nil
}

func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request, caller models.User) error {
	id, err := requiredID(r.URL.Query().Get("id"), "id")
	if err != nil {
		return err
	}
	if err := h.svc.SoftDelete(r.Context(), caller, id); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "document deleted", nil)
	return nil
}

func (h *Handlers) DownloadDocument(w http.ResponseWriter, r *http.Request, _ models.User) error {
	id, err := requiredID(r.URL.Query().Get("id"), "id")
	if err != nil {
		return err
	}
	ref, err := h.svc.Download(r.Context(), id)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", ref)
	return nil
}
