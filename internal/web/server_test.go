package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/docmerge/internal/config"
	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/storage"
)

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(_ context.Context, doc string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-stub\n" + doc), nil
}

func newTestServer(t *testing.T, env map[string]string, r core.Renderer) (*Server, *core.Service) {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if _, ok := env["RATE_LIMIT_ENABLED"]; !ok {
		env["RATE_LIMIT_ENABLED"] = "false"
	}
	cfg, err := config.LoadFrom(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	repo := storage.NewFileRepository(filepath.Join(t.TempDir(), "templates.json"))
	svc := core.NewService(repo, r, core.ServiceConfig{
		MaxUploadSize:        cfg.Upload.MaxFileSize,
		ExportDir:            t.TempDir(),
		ExportTimeout:        5 * time.Second,
		MaxConcurrentExports: 1,
		ExportWait:           100 * time.Millisecond,
	})
	return NewServer(cfg, svc, r), svc
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(b)
}

func upload(t *testing.T, s *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createTemplate(t *testing.T, s *Server, name string) core.Template {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/templates", jsonBody(t, map[string]string{"name": name}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template status = %d, body %s", rec.Code, rec.Body)
	}
	return decode[core.Template](t, rec)
}

func TestDashboard(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})
	createTemplate(t, s, "Welcome <letter>")

	rec := do(t, s, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Welcome &lt;letter&gt;") {
		t.Errorf("dashboard does not list escaped template name: %s", body)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing")
	}
}

func TestTemplateCRUD(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})
	tpl := createTemplate(t, s, "Invoice")

	if tpl.PaperSize != core.DefaultPaperSize {
		t.Errorf("PaperSize = %q, want %q", tpl.PaperSize, core.DefaultPaperSize)
	}

	rec := do(t, s, http.MethodPut, "/api/templates/"+tpl.ID,
		jsonBody(t, core.TemplateInput{Name: "Invoice v2", PaperSize: "letter"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[core.Template](t, rec); got.Name != "Invoice v2" || got.PaperSize != core.PaperLetter {
		t.Errorf("updated = %+v", got)
	}

	createTemplate(t, s, "Receipt")
	rec = do(t, s, http.MethodGet, "/api/templates?q=invc", nil)
	list := decode[[]core.Template](t, rec)
	if len(list) != 1 || list[0].ID != tpl.ID {
		t.Errorf("search results = %+v, want only the invoice", list)
	}

	rec = do(t, s, http.MethodDelete, "/api/templates/"+tpl.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/templates/"+tpl.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "TPL001" {
		t.Errorf("error code = %q, want TPL001", got.Code)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"empty name", `{"name":"  "}`, "TPL002"},
		{"bad paper size", `{"name":"x","paperSize":"tabloid"}`, "TPL003"},
		{"malformed json", `{"name":`, "REQ003"},
		{"unknown field", `{"title":"x"}`, "REQ003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/templates", strings.NewReader(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestUploadDataset(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})

	rec := upload(t, s, "/api/datasets", "sales.CSV", "date,amount\n2024-01-01,10\n2024-01-02,12\n")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		ID         string          `json:"id"`
		Statistics core.Statistics `json:"statistics"`
		Preview    []core.Row      `json:"preview"`
	}](t, rec)
	if got.Statistics.RowCount != 2 || got.Statistics.ColumnCount != 2 {
		t.Errorf("statistics = %+v", got.Statistics)
	}
	if got.Statistics.DataType != core.DataTimeSeries {
		t.Errorf("DataType = %q, want %q", got.Statistics.DataType, core.DataTimeSeries)
	}
	if len(got.Preview) != 2 {
		t.Errorf("len(preview) = %d, want 2", len(got.Preview))
	}

	rec = do(t, s, http.MethodGet, "/api/datasets/"+got.ID+"/preview?rows=1", nil)
	preview := decode[struct {
		Rows  []core.Row `json:"rows"`
		Total int        `json:"total"`
	}](t, rec)
	if len(preview.Rows) != 1 || preview.Total != 2 {
		t.Errorf("preview = %+v", preview)
	}

	rec = do(t, s, http.MethodDelete, "/api/datasets/"+got.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/datasets/"+got.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get removed status = %d, want 404", rec.Code)
	}
}

func TestUploadDatasetRejected(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})

	tests := []struct {
		name     string
		filename string
		content  string
		wantCode string
	}{
		{"wrong extension", "data.txt", "a,b\n1,2\n", "FILE002"},
		{"empty file", "data.csv", "", "FILE005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, "/api/datasets", tt.filename, tt.content)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}

	rec := do(t, s, http.MethodPost, "/api/datasets", strings.NewReader("not multipart"))
	if got := decode[ErrorResponse](t, rec); got.Code != "FILE004" {
		t.Errorf("no file code = %q, want FILE004", got.Code)
	}
}

func TestExportFlow(t *testing.T) {
	s, svc := newTestServer(t, nil, &stubRenderer{})
	tpl := createTemplate(t, s, "Letter")

	rec := do(t, s, http.MethodPut, "/api/templates/"+tpl.ID+"/content", jsonBody(t, map[string]any{
		"content": json.RawMessage(core.EmptyEditorState),
		"html":    "<p>Dear {{Name}},</p>",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("save content status = %d, body %s", rec.Code, rec.Body)
	}

	rec = upload(t, s, "/api/templates/"+tpl.ID+"/variables/import", "people.csv", "name,city\nAnn,Oslo\nBob,Rome\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodPost, "/api/templates/"+tpl.ID+"/preview", nil)
	if got := decode[map[string]string](t, rec); !strings.Contains(got["preview"], "Dear Ann,") {
		t.Errorf("preview = %q, want first row substituted", got["preview"])
	}

	rec = do(t, s, http.MethodPost, "/api/templates/"+tpl.ID+"/export", jsonBody(t, core.ExportOptions{Mode: core.ExportZip}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("export status = %d, body %s", rec.Code, rec.Body)
	}
	exportID := decode[map[string]string](t, rec)["exportId"]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := svc.WaitExport(ctx, exportID); err != nil {
		t.Fatalf("WaitExport() error = %v", err)
	}

	rec = do(t, s, http.MethodGet, "/api/exports/"+exportID, nil)
	job := decode[core.ExportJob](t, rec)
	if job.Progress.Phase != core.PhaseComplete || job.Result == nil || job.Result.Count != 2 {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Result.Files) != 1 || job.Result.Files[0] != core.ArchiveName {
		t.Errorf("files = %v, want [%s]", job.Result.Files, core.ArchiveName)
	}

	rec = do(t, s, http.MethodGet, "/api/exports/"+exportID+"/files/"+core.ArchiveName, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("download status = %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, s, http.MethodGet, "/api/exports/"+exportID+"/files/other.pdf", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown file status = %d, want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/exports/"+exportID+"/progress", nil)
	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("progress content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: progress") || !strings.Contains(body, "event: complete") {
		t.Errorf("progress stream = %q", body)
	}

	rec = do(t, s, http.MethodGet, "/api/templates/"+tpl.ID, nil)
	if got := decode[core.Template](t, rec); got.DocumentsGenerated != 2 || got.LastUsed == nil {
		t.Errorf("counters after export = %d, %v", got.DocumentsGenerated, got.LastUsed)
	}
}

func TestExportUnknown(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})

	rec := do(t, s, http.MethodGet, "/api/exports/nope", nil)
	if got := decode[ErrorResponse](t, rec); rec.Code != http.StatusNotFound || got.Code != "EXP002" {
		t.Errorf("status = %d code = %q, want 404 EXP002", rec.Code, got.Code)
	}

	tpl := createTemplate(t, s, "X")
	rec = do(t, s, http.MethodPost, "/api/templates/"+tpl.ID+"/export", jsonBody(t, map[string]string{"mode": "tar"}))
	if got := decode[ErrorResponse](t, rec); rec.Code != http.StatusBadRequest || got.Code != "EXP003" {
		t.Errorf("status = %d code = %q, want 400 EXP003", rec.Code, got.Code)
	}
}

func TestExportPDF(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, _ := newTestServer(t, nil, &stubRenderer{})
		rec := do(t, s, http.MethodPost, "/api/export-pdf", jsonBody(t, map[string]string{"html": "<p>hi</p>"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Content-Type = %q, want application/pdf", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("render failure", func(t *testing.T) {
		s, _ := newTestServer(t, nil, &stubRenderer{err: errors.New("browser crashed")})
		rec := do(t, s, http.MethodPost, "/api/export-pdf", jsonBody(t, map[string]string{"html": "<p>hi</p>"}))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		got := decode[map[string]string](t, rec)
		if got["error"] != "PDF generation failed" || got["details"] != "browser crashed" {
			t.Errorf("body = %v", got)
		}
	})

	t.Run("extra fields ignored", func(t *testing.T) {
		s, _ := newTestServer(t, nil, &stubRenderer{})
		body := jsonBody(t, map[string]string{"html": "<p>hi</p>", "filename": "document_1.pdf"})
		rec := do(t, s, http.MethodPost, "/api/export-pdf", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "<p>hi</p>") {
			t.Errorf("body = %q, want rendered html", rec.Body.String())
		}
	})

	failures := []struct {
		name        string
		body        string
		wantDetails string
	}{
		{"missing html", `{"html":" "}`, "html is required"},
		{"no html field", `{"filename":"a.pdf"}`, "html is required"},
		{"malformed json", `not json`, "invalid character"},
		{"empty body", ``, "EOF"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil, &stubRenderer{})
			rec := do(t, s, http.MethodPost, "/api/export-pdf", strings.NewReader(tt.body))
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			got := decode[map[string]string](t, rec)
			if got["error"] != "PDF generation failed" {
				t.Errorf("error = %q, want PDF generation failed", got["error"])
			}
			if !strings.Contains(got["details"], tt.wantDetails) {
				t.Errorf("details = %q, want it to contain %q", got["details"], tt.wantDetails)
			}
			if _, ok := got["code"]; ok {
				t.Errorf("body carries a user-error code: %v", got)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "alpha,beta",
	}, &stubRenderer{})

	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", []string{"X-API-Key", "gamma"}, http.StatusForbidden},
		{"header", []string{"X-API-Key", "beta"}, http.StatusOK},
		{"bearer", []string{"Authorization", "Bearer alpha"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/templates", nil, tt.headers...)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without a key", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "2",
	}, &stubRenderer{})

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", got.Code)
	}
}

func TestRespondErrorHTMX(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRenderer{})

	rec := do(t, s, http.MethodGet, "/api/templates/missing", nil, "HX-Request", "true")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "alert-error") || !strings.Contains(body, "TPL001") {
		t.Errorf("body = %q", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", core.ErrTemplateNotFound), http.StatusNotFound},
		{core.ErrDatasetMissing, http.StatusNotFound},
		{core.ErrDuplicateVariable, http.StatusConflict},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrTooManyExports, http.StatusServiceUnavailable},
		{core.ErrNotCSV, http.StatusBadRequest},
		{core.ErrRenderTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
