package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"docmanager/internal/config"
	"docmanager/internal/files"
	"docmanager/internal/metrics"
	"docmanager/internal/middleware"
	"docmanager/internal/rate"
	"docmanager/internal/service"
	"docmanager/internal/util"
	"docmanager/internal/version"
)

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	files   *files.Local
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

const (
	maxJSONBodyBytes = 1 << 20
	multipartMemory  = 32 << 20
	// room for the multipart envelope around the file part
	multipartOverhead = 1 << 20
)

func NewRouter(cfg config.Config, svc *service.Service, fs *files.Local, m *metrics.Metrics, logger logrus.FieldLogger) http.Handler {
	h := &Handlers{
		cfg:     cfg,
		svc:     svc,
		files:   fs,
		limiter: rate.NewLimiter(),
		metrics: m,
		log:     logger,
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(logger, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]string{"status": "ok", "version": version.Current().Version})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready := map[string]any{"checked_at": time.Now().UTC().Format(time.RFC3339)}
		if err := h.svc.Store().Ping(r.Context()); err != nil {
			h.log.WithError(err).Warn("readiness check failed")
			ready["status"] = "degraded"
			ready["database"] = map[string]any{"ok": false}
			util.WriteJSON(w, 503, ready)
			return
		}
		ready["status"] = "ready"
		ready["database"] = map[string]any{"ok": true}
		util.WriteJSON(w, 200, ready)
	})
	r.Handle("/metrics", m.Handler())
	r.Get("/uploads/*", h.ServeUpload)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authn(svc))
		r.With(middleware.RateLimit(h.limiter, "auth", 30, time.Minute, cfg.TrustProxy)).
			HandleFunc("/auth", h.serveResource("auth", h.authRoutes()))
		r.HandleFunc("/documents", h.serveResource("documents", h.documentRoutes()))
		r.HandleFunc("/categories", h.serveResource("categories", h.categoryRoutes()))
		r.HandleFunc("/admin", h.serveResource("admin", h.adminRoutes()))
		r.HandleFunc("/user", h.serveResource("user", h.userRoutes()))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusNotFound, "not found", middleware.RequestID(r.Context()))
	})
	return r
}

// ServeUpload streams a stored file. The Content-Type comes from the file
// contents, not the stored extension.
func (h *Handlers) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if dir := path.Dir(name); dir != "." && dir != "avatars" {
		http.NotFound(w, r)
		return
	}
	f, err := h.files.Open(name)
	if err != nil {
		if !errors.Is(err, files.ErrNotFound) && !errors.Is(err, files.ErrInvalidName) {
			h.log.WithError(err).WithField("file", name).Error("open upload")
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		h.log.WithError(err).WithField("file", name).Error("detect upload type")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mt.String())
	http.ServeContent(w, r, path.Base(name), info.ModTime(), f)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid json")
	}
	return nil
}

func isFormRequest(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "multipart/form-data" || ct == "application/x-www-form-urlencoded"
}

// parseMultipart caps the body at limit plus envelope overhead before
// parsing the form. URL-encoded forms are accepted without file parts.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return service.ErrFileTooLarge
		}
		return badRequest("invalid multipart form")
	}
	return nil
}

// formUpload returns the named file part, or nil when it is absent.
func formUpload(r *http.Request, field string) (*service.Upload, io.Closer, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, badRequest("invalid file part")
	}
	return &service.Upload{Filename: hdr.Filename, Size: hdr.Size, Body: f}, f, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}

// optionalID parses an id that may be left empty. Zero counts as empty.
func optionalID(v string) (*int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}

func requiredID(v, field string) (int64, error) {
	id, err := optionalID(v)
	if err != nil || id == nil {
		return 0, badRequest(field + " is required")
	}
	return *id, nil
}

// queryFilterID ignores malformed filter ids the way an unset filter is ignored.
func queryFilterID(r *http.Request, key string) *int64 {
	id, err := optionalID(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return id
}

func fileURL(name string) string { return "/uploads/" + name }
