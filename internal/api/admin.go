package api

import (
	"net/http"

	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/util"
)

type AdminAction string

const (
	AdminUsers          AdminAction = "users"
	AdminBlockUser      AdminAction = "block-user"
	AdminUnblockUser    AdminAction = "unblock-user"
	AdminStatistics     AdminAction = "statistics"
	AdminAllDocuments   AdminAction = "all-documents"
	AdminDeleteDocument AdminAction = "delete-document"
	AdminLogs           AdminAction = "logs"
)

func (h *Handlers) adminRoutes() routeTable[AdminAction] {
	return routeTable[AdminAction]{
		AdminUsers:          {AdminOnly, get, h.AdminListUsers},
		AdminBlockUser:      {AdminOnly, post, h.AdminBlockUser},
		AdminUnblockUser:    {AdminOnly, post, h.AdminUnblockUser},
		AdminStatistics:     {AdminOnly, get, h.AdminStatistics},
		AdminAllDocuments:   {AdminOnly, get, h.AdminAllDocuments},
		AdminDeleteDocument: {AdminOnly, delPost, h.AdminDeleteDocument},
		AdminLogs:           {AdminOnly, get, h.AdminLogs},
	}
}

func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request, _ models.User) error {
	q := r.URL.Query()
	users, p, err := h.svc.ListUsers(r.Context(), service.UserListParams{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		return err
	}
	util.WritePage(w, users, p)
	return nil
}

type blockRequest struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *Handlers) AdminBlockUser(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.BlockUser(r.Context(), caller, req.UserID, req.Reason); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "user blocked", nil)
	return nil
}

func (h *Handlers) AdminUnblockUser(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.UnblockUser(r.Context(), caller, req.UserID, req.Reason); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "user unblocked", nil)
	return nil
}

func (h *Handlers) AdminStatistics(w http.ResponseWriter, r *http.Request, _ models.User) error {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", stats)
	return nil
}

func (h *Handlers) AdminAllDocuments(w http.ResponseWriter, r *http.Request, _ models.User) error {
	docs, p, err := h.svc.AllDocuments(r.Context(), service.AdminDocumentParams{
		Search:     r.URL.Query().Get("search"),
		CategoryID: queryFilterID(r, "category"),
		AuthorID:   queryFilterID(r, "author"),
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
	})
	if err != nil {
		return err
	}
	util.WritePage(w, docs, p)
	return nil
}

func (h *Handlers) AdminDeleteDocument(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req struct {
		DocID  int64  `json:"doc_id"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.DocID <= 0 {
		return badRequest("doc_id is required")
	}
	if err := h.svc.HardDelete(r.Context(), caller, req.DocID, req.Reason); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "document permanently deleted", nil)
	return nil
}

func (h *Handlers) AdminLogs(w http.ResponseWriter, r *http.Request, _ models.User) error {
	logs, p, err := h.svc.Logs(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		return err
	}
	util.WritePage(w, logs, p)
	return nil
}
