package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"docmanager/internal/auth"
	"docmanager/internal/config"
	"docmanager/internal/db"
	"docmanager/internal/files"
	"docmanager/internal/metrics"
	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/store"
	"docmanager/internal/util"
)

type nopSender struct{}

func (nopSender) SendPasswordReset(context.Context, string, string) error { return nil }

type testAPI struct {
	t       *testing.T
	handler http.Handler
	svc     *service.Service
	st      *store.Store
	files   *files.Local
}

type envelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Data       json.RawMessage  `json:"data"`
	Pagination *util.Pagination `json:"pagination"`
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	sqdb, err := db.OpenSQLite(filepath.Join(dir, "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrations(sqdb, db.SQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	st := store.New(sqdb, db.SQLite)
	fs, err := files.NewLocal(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("new local files: %v", err)
	}
	cfg := config.Config{
		JWTSecret:              "router_test_secret_value_that_is_long_enough",
		JWTTTL:                 time.Hour,
		MaxFileSize:            64 << 10,
		MaxAvatarSize:          8 << 10,
		PasswordResetTTL:       time.Hour,
		BootstrapAdminEmail:    "admin@example.com",
		BootstrapAdminPassword: "AdminPassw0rd",
	}
	logger, _ := logtest.NewNullLogger()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, auth.WithRevoker(auth.NewMemoryRevoker(time.Now)))
	svc := service.New(cfg, st, tokens, fs, nopSender{}, service.WithLogger(logger))
	if err := svc.EnsureBootstrapAdmin(context.Background()); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	return &testAPI{
		t:       t,
		handler: NewRouter(cfg, svc, fs, metrics.New(), logger),
		svc:     svc,
		st:      st,
		files:   fs,
	}
}

func (a *testAPI) do(method, target, token, contentType string, body io.Reader) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode envelope: %v (%s)", method, target, err, rr.Body.String())
		}
	}
	return rr, env
}

func (a *testAPI) doJSON(method, target, token string, payload any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		a.t.Fatalf("encode payload: %v", err)
	}
	return a.do(method, target, token, "application/json", bytes.NewReader(raw))
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	rr, env := a.doJSON("POST", "/api/auth?action=login", "", map[string]string{"email": email, "password": password})
	if rr.Code != http.StatusOK {
		a.t.Fatalf("login %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Token == "" {
		a.t.Fatalf("login %s: bad data %s", email, env.Data)
	}
	return res.Token
}

func (a *testAPI) registerAndLogin(email, name string) string {
	a.t.Helper()
	rr, _ := a.doJSON("POST", "/api/auth?action=register", "", map[string]string{
		"email": email, "password": "Passw0rd", "full_name": name,
	})
	if rr.Code != http.StatusCreated {
		a.t.Fatalf("register %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	return a.login(email, "Passw0rd")
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func pdfBytes(size int) []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), size-9)...)
}

func (a *testAPI) upload(token, title string, size int) int64 {
	a.t.Helper()
	body, ct := multipartBody(a.t, map[string]string{"title": title}, "file", title+".pdf", pdfBytes(size))
	rr, env := a.do("POST", "/api/documents?action=upload", token, ct, body)
	if rr.Code != http.StatusCreated {
		a.t.Fatalf("upload: status %d body %s", rr.Code, rr.Body.String())
	}
	var res struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.ID == 0 {
		a.t.Fatalf("upload: bad data %s", env.Data)
	}
	return res.ID
}

func TestDispatchRejectsUnknownActionAndMethod(t *testing.T) {
	a := newTestAPI(t)

	rr, env := a.do("GET", "/api/documents?action=explode", "", "", nil)
	if rr.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("unknown action: %d %s", rr.Code, rr.Body.String())
	}
	rr, _ = a.do("GET", "/api/documents?action=upload", "", "", nil)
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
		t.Fatalf("wrong method: %d allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
	rr, _ = a.do("GET", "/api/nothing", "", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown resource: %d", rr.Code)
	}
}

func TestAccessLevels(t *testing.T) {
	a := newTestAPI(t)
	student := a.registerAndLogin("s@x.com", "Student")

	cases := []struct {
		name   string
		target string
		token  string
		want   int
	}{
		{"public list", "/api/documents?action=list", "", http.StatusOK},
		{"public categories", "/api/categories?action=list-categories", "", http.StatusOK},
		{"anonymous mine", "/api/documents?action=my-documents", "", http.StatusUnauthorized},
		{"bad token", "/api/user?action=profile", "not-a-token", http.StatusUnauthorized},
		{"student profile", "/api/user?action=profile", student, http.StatusOK},
		{"student admin", "/api/admin?action=users", student, http.StatusForbidden},
		{"anonymous admin", "/api/admin?action=statistics", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rr, _ := a.do("GET", tc.target, tc.token, "", nil)
		if rr.Code != tc.want {
			t.Fatalf("%s: status %d want %d (%s)", tc.name, rr.Code, tc.want, rr.Body.String())
		}
	}
}

func TestLoginErrorsAreUniform(t *testing.T) {
	a := newTestAPI(t)
	a.registerAndLogin("a@x.com", "Alice")

	rrUnknown, envUnknown := a.doJSON("POST", "/api/auth?action=login", "", map[string]string{"email": "b@x.com", "password": "Passw0rd"})
	rrWrong, envWrong := a.doJSON("POST", "/api/auth?action=login", "", map[string]string{"email": "a@x.com", "password": "Wrong0000"})
	if rrUnknown.Code != http.StatusUnauthorized || rrWrong.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected statuses %d %d", rrUnknown.Code, rrWrong.Code)
	}
	if envUnknown.Message != envWrong.Message {
		t.Fatalf("messages differ: %q vs %q", envUnknown.Message, envWrong.Message)
	}

	rr, env := a.doJSON("POST", "/api/auth?action=register", "", map[string]string{"email": "c@x.com", "password": "abcdefgh", "full_name": "C"})
	if rr.Code != http.StatusBadRequest || !strings.Contains(string(env.Data), "password") {
		t.Fatalf("weak password: %d %s", rr.Code, rr.Body.String())
	}
	rr, _ = a.doJSON("POST", "/api/auth?action=register", "", map[string]string{"email": "a@x.com", "password": "Passw0rd", "full_name": "Dup"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate email: %d", rr.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin("a@x.com", "Alice")
	if rr, _ := a.do("GET", "/api/auth?action=verify", token, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("verify: %d", rr.Code)
	}
	if rr, _ := a.do("POST", "/api/auth?action=logout", token, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	if rr, _ := a.do("GET", "/api/auth?action=verify", token, "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout: %d", rr.Code)
	}
}

func TestNonOwnerCannotModifyDocument(t *testing.T) {
	a := newTestAPI(t)
	owner := a.registerAndLogin("owner@x.com", "Owner")
	other := a.registerAndLogin("other@x.com", "Other")
	id := a.upload(owner, "Owned", 1024)

	body, ct := multipartBody(t, map[string]string{"id": itoa(id), "title": "Hijacked"}, "", "", nil)
	if rr, _ := a.do("POST", "/api/documents?action=update", other, ct, body); rr.Code != http.StatusForbidden {
		t.Fatalf("update by other: %d %s", rr.Code, rr.Body.String())
	}
	if rr, _ := a.do("DELETE", "/api/documents?action=delete&id="+itoa(id), other, "", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("delete by other: %d", rr.Code)
	}
	d, err := a.st.GetActiveDocument(context.Background(), id)
	if err != nil || d.Title != "Owned" {
		t.Fatalf("document changed: %#v %v", d, err)
	}

	body, ct = multipartBody(t, map[string]string{"id": itoa(id), "title": "Renamed"}, "", "", nil)
	if rr, _ := a.do("POST", "/api/documents?action=update", owner, ct, body); rr.Code != http.StatusOK {
		t.Fatalf("update by owner: %d %s", rr.Code, rr.Body.String())
	}
	if rr, _ := a.do("DELETE", "/api/documents?action=delete&id="+itoa(id), owner, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("delete by owner: %d", rr.Code)
	}
	if rr, _ := a.do("GET", "/api/documents?action=get&id="+itoa(id), owner, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rr.Code)
	}
}

func TestUploadRejectsLargeAndForeignFiles(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin("a@x.com", "Alice")

	body, ct := multipartBody(t, map[string]string{"title": "Big"}, "file", "big.pdf", pdfBytes(70<<10))
	if rr, _ := a.do("POST", "/api/documents?action=upload", token, ct, body); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("too large: %d %s", rr.Code, rr.Body.String())
	}
	body, ct = multipartBody(t, map[string]string{"title": "Exe"}, "file", "run.exe", []byte("MZ"))
	if rr, _ := a.do("POST", "/api/documents?action=upload", token, ct, body); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad extension: %d", rr.Code)
	}
	body, ct = multipartBody(t, map[string]string{"title": "None"}, "", "", nil)
	if rr, _ := a.do("POST", "/api/documents?action=upload", token, ct, body); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing file: %d", rr.Code)
	}
}

func TestCategoryDeleteReportsBlockingCount(t *testing.T) {
	a := newTestAPI(t)
	admin := a.login("admin@example.com", "AdminPassw0rd")
	student := a.registerAndLogin("s@x.com", "Student")

	rr, env := a.doJSON("POST", "/api/categories?action=add-category", admin, map[string]any{"name": "Physics"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add category: %d %s", rr.Code, rr.Body.String())
	}
	var cat models.Category
	if err := json.Unmarshal(env.Data, &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	for i := 0; i < 2; i++ {
		body, ct := multipartBody(t, map[string]string{"title": "Lab", "category_id": itoa(cat.ID)}, "file", "lab.pdf", pdfBytes(100))
		if rr, _ := a.do("POST", "/api/documents?action=upload", student, ct, body); rr.Code != http.StatusCreated {
			t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr, env = a.doJSON("POST", "/api/categories?action=delete-category", admin, map[string]any{"id": cat.ID})
	if rr.Code != http.StatusConflict {
		t.Fatalf("delete referenced: %d %s", rr.Code, rr.Body.String())
	}
	var data struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Count != 2 {
		t.Fatalf("unexpected blocking count %s", env.Data)
	}

	rr, _ = a.doJSON("POST", "/api/categories?action=add-category", student, map[string]any{"name": "Nope"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("student add category: %d", rr.Code)
	}
}

func TestServeUploadSniffsContentType(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin("a@x.com", "Alice")
	id := a.upload(token, "Sniffed", 2048)

	rr, env := a.do("GET", "/api/documents?action=download&id="+itoa(id), "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download ref: %d %s", rr.Code, rr.Body.String())
	}
	var ref service.DownloadRef
	if err := json.Unmarshal(env.Data, &ref); err != nil || ref.FileName != "Sniffed.pdf" {
		t.Fatalf("unexpected ref %s", env.Data)
	}

	rr, _ = a.do("GET", ref.URL, "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("serve upload: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rr.Body.Len() != 2048 {
		t.Fatalf("unexpected body length %d", rr.Body.Len())
	}

	for _, target := range []string{"/uploads/../app.db", "/uploads/nested/dir/x.pdf", "/uploads/missing.pdf"} {
		if rr, _ := a.do("GET", target, "", "", nil); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rr.Code)
		}
	}

	d, err := a.st.GetDocument(context.Background(), id)
	if err != nil || d.DownloadCount != 1 {
		t.Fatalf("download count: %#v %v", d, err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)
	if rr, _ := a.do("GET", "/health/live", "", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("live: %d", rr.Code)
	}
	if rr, _ := a.do("GET", "/health/ready", "", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("ready: %d", rr.Code)
	}
	a.do("GET", "/api/documents?action=list", "", "", nil)
	rr, _ := a.do("GET", "/metrics", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	want := `docmanager_api_requests_total{action="list",resource="documents",status="200"} 1`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("metrics output missing %q", want)
	}
}

func TestEndToEndOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	admin := a.login("admin@example.com", "AdminPassw0rd")
	token := a.registerAndLogin("a@x.com", "Alice")

	id := a.upload(token, "Thesis Report", 10*1024)

	rr, env := a.do("GET", "/api/documents?action=my-documents", token, "", nil)
	if rr.Code != http.StatusOK || env.Pagination == nil || env.Pagination.Total != 1 {
		t.Fatalf("my-documents: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = a.do("GET", "/api/documents?action=list&search=thesis", "", "", nil)
	if rr.Code != http.StatusOK || env.Pagination.Total != 1 || env.Pagination.Pages != 1 {
		t.Fatalf("search: %d %s", rr.Code, rr.Body.String())
	}
	rr, env = a.do("GET", "/api/documents?action=list&search=zzz-no-match", "", "", nil)
	if rr.Code != http.StatusOK || env.Pagination.Total != 0 {
		t.Fatalf("search miss: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = a.do("GET", "/api/documents?action=get&id="+itoa(id), "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var detail struct {
		ViewCount   int64  `json:"view_count"`
		FilePath    string `json:"file_path"`
		FullPathURL string `json:"full_path_url"`
	}
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.ViewCount != 1 || detail.FullPathURL != "/uploads/"+detail.FilePath {
		t.Fatalf("unexpected detail %#v", detail)
	}

	rr, _ = a.doJSON("POST", "/api/admin?action=delete-document", admin, map[string]any{"doc_id": id, "reason": "cleanup"})
	if rr.Code != http.StatusOK {
		t.Fatalf("hard delete: %d %s", rr.Code, rr.Body.String())
	}
	rr, env = a.do("GET", "/api/admin?action=all-documents", admin, "", nil)
	if rr.Code != http.StatusOK || env.Pagination.Total != 0 {
		t.Fatalf("all-documents after delete: %d %s", rr.Code, rr.Body.String())
	}
	if a.files.Exists(detail.FilePath) {
		t.Fatalf("file still on disk")
	}
	rr, env = a.do("GET", "/api/admin?action=logs", admin, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logs: %d", rr.Code)
	}
	var logs []models.AdminLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "delete_document" || logs[0].TargetID != id {
		t.Fatalf("unexpected logs %#v", logs)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
