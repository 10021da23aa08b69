package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"docmanager/internal/middleware"
	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/store"
	"docmanager/internal/util"
)

// Access is the minimum caller level an action requires.
type Access int

const (
	Public Access = iota
	Authenticated
	AdminOnly
)

// handlerFunc serves one action. caller is the zero User for anonymous
// requests to public actions. A returned error is written by writeServiceError.
type handlerFunc func(w http.ResponseWriter, r *http.Request, caller models.User) error

type route struct {
	access  Access
	methods []string
	handle  handlerFunc
}

func (rt route) allows(method string) bool {
	for _, m := range rt.methods {
		if m == method {
			return true
		}
	}
	return false
}

// routeTable maps the closed set of actions of one resource to handlers.
type routeTable[A ~string] map[A]route

func (t routeTable[A]) lookup(action string) (route, bool) {
	rt, ok := t[A(action)]
	return rt, ok
}

type resource interface {
	lookup(action string) (route, bool)
}

var (
	get     = []string{http.MethodGet}
	post    = []string{http.MethodPost}
	delPost = []string{http.MethodPost, http.MethodDelete}
)

// requestError is a malformed request detected by the HTTP layer itself.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

func (h *Handlers) serveResource(name string, res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := middleware.NewStatusRecorder(w)
		rid := middleware.RequestID(r.Context())
		action := r.URL.Query().Get("action")
		rt, ok := res.lookup(action)
		label := action
		if !ok {
			label = "unknown"
		}
		defer func() { h.metrics.Observe(name, label, sr.Status(), time.Since(start)) }()

		if !ok {
			util.WriteError(sr, http.StatusBadRequest, "unknown action", rid)
			return
		}
		if !rt.allows(r.Method) {
			sr.Header().Set("Allow", strings.Join(rt.methods, ", "))
			util.WriteError(sr, http.StatusMethodNotAllowed, "method not allowed", rid)
			return
		}
		caller, authed := middleware.User(r.Context())
		switch rt.access {
		case Authenticated:
			if !authed {
				util.WriteError(sr, http.StatusUnauthorized, "unauthorized", rid)
				return
			}
		case AdminOnly:
			if !authed {
				util.WriteError(sr, http.StatusUnauthorized, "unauthorized", rid)
				return
			}
			if !caller.IsAdmin() {
				util.WriteError(sr, http.StatusForbidden, "admin role required", rid)
				return
			}
		}
		if err := rt.handle(sr, r, caller); err != nil {
			h.writeServiceError(sr, r, name, action, err)
		}
	}
}

// writeServiceError maps service and store errors to a status and envelope.
// Only unexpected failures are logged.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, resource, action string, err error) {
	rid := middleware.RequestID(r.Context())
	var (
		verr   *service.ValidationError
		ref    *store.ReferencedError
		reqErr *requestError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reqErr):
		util.WriteError(w, reqErr.status, reqErr.msg, rid)
	case errors.As(err, &verr):
		util.WriteJSON(w, http.StatusBadRequest, util.Envelope{
			Message:   verr.Message,
			Data:      map[string]any{"errors": verr.Fields},
			RequestID: rid,
		})
	case errors.As(err, &ref):
		util.WriteJSON(w, http.StatusConflict, util.Envelope{
			Message:   ref.Error(),
			Data:      map[string]any{"count": ref.Count},
			RequestID: rid,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		util.WriteError(w, http.StatusUnauthorized, err.Error(), rid)
	case errors.Is(err, service.ErrUnauthorized):
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", rid)
	case errors.Is(err, service.ErrForbidden):
		util.WriteError(w, http.StatusForbidden, "forbidden", rid)
	case errors.Is(err, service.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not found", rid)
	case errors.Is(err, service.ErrEmailTaken):
		util.WriteError(w, http.StatusConflict, err.Error(), rid)
	case errors.Is(err, service.ErrFileTooLarge), errors.As(err, &tooBig):
		util.WriteError(w, http.StatusRequestEntityTooLarge, service.ErrFileTooLarge.Error(), rid)
	default:
		h.log.WithError(err).WithField("request_id", rid).
			WithField("resource", resource).
			WithField("action", action).
			Error("request failed")
		util.WriteError(w, http.StatusInternalServerError, "internal error", rid)
	}
}
