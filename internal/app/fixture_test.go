package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"taskdoc/internal/blob"
	"taskdoc/internal/config"
	"taskdoc/internal/document"
	"taskdoc/internal/logging"
	"taskdoc/internal/store"
)

var testNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

// fakeStore wraps a real store so individual calls can be made to fail.
type fakeStore struct {
	store.Store
	pingFn func(context.Context) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return f.Store.Ping(ctx)
}

type testEnv struct {
	service *Service
	server  *HTTPServer
	store   *fakeStore
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	files, err := store.NewFileStore(filepath.Join(dir, "data"), filepath.Join(dir, "templates"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	blobs, err := blob.NewFSStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	fs := &fakeStore{Store: files}
	cfg := config.Config{
		HistoryDir:     filepath.Join(dir, "history"),
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
		MailTo:         []string{"lead@example.com"},
	}
	svc := New(cfg, Deps{Store: fs, Blobs: blobs, Log: logging.Nop()})
	svc.now = func() time.Time { return testNow }
	return &testEnv{service: svc, server: NewHTTPServer(svc, "*"), store: fs, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(t *testing.T, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, method, target, body, "application/json")
}

func (e *testEnv) upload(t *testing.T, target, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return e.do(t, http.MethodPost, target, &buf, mw.FormDataContentType())
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

// sprintDocument is a block "Sprint" holding task "Fix bug" with priority 1.
func sprintDocument() *document.Document {
	ids := document.NewAllocator()
	doc := document.NewWithBlock(ids)
	doc.Blocks[0].Title = "Sprint"
	task := doc.Blocks[0].InsertTask(ids, "")
	task.Title = "Fix bug"
	task.Priority = "1"
	task.Owner = "Avery"
	task.InsertItem(ids, 0).Text = "reproduce on staging"
	return doc
}
