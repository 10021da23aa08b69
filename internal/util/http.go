package util

import (
	"encoding/json"
	"net/http"
)

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination computes pages as ceil(total/limit).
func NewPagination(total int64, page, limit int) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// Envelope is the body shape of every API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteData(w http.ResponseWriter, status int, msg string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

func WritePage(w http.ResponseWriter, data any, p Pagination) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: &p})
}

func WriteError(w http.ResponseWriter, status int, msg, reqID string) {
	WriteJSON(w, status, Envelope{Success: false, Message: msg, RequestID: reqID})
}
