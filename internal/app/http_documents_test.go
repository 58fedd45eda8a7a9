package app

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdoc/internal/document"
)

func TestEditorPageStartsWithOneEmptyBlock(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `data-block-id="block_1"`)
}

func TestSaveAndLoadData(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/load_data", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	empty, err := document.Unmarshal(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, empty.Blocks)

	rr = env.doJSON(t, http.MethodPost, "/save_data", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "success", decodeJSON(t, rr)["status"])

	rr = env.do(t, http.MethodGet, "/load_data", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)
	loaded, err := document.Unmarshal(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sprintDocument(), loaded)

	cached := env.get(t, "/load_data", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, cached.Code)

	page := env.do(t, http.MethodGet, "/", nil, "")
	assert.Contains(t, page.Body.String(), "Fix bug")
}

func TestSaveDataRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/save_data", strings.NewReader("{not json"), "application/json")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["message"])
}

func TestSaveRecordsHistoryAndIndexesSearch(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/save_data", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	save := decodeJSON(t, rr)["save"].(map[string]any)
	commit := save["commit"].(map[string]any)
	assert.Equal(t, "Save tasks (blocks 0→1, tasks 0→1, items 0→1)", commit["message"])

	// Saving the same content again does not add a commit.
	rr = env.doJSON(t, http.MethodPost, "/save_data", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, decodeJSON(t, rr)["save"], "commit")

	rr = env.do(t, http.MethodGet, "/api/history", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	commits := decodeJSON(t, rr)["commits"].([]any)
	require.Len(t, commits, 1)
	hash := commits[0].(map[string]any)["hash"].(string)

	rr = env.do(t, http.MethodGet, "/api/history/"+hash, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	version := decodeJSON(t, rr)["document"].(map[string]any)
	assert.Equal(t, "Sprint", version["blocks"].([]any)[0].(map[string]any)["title"])

	rr = env.do(t, http.MethodGet, "/api/history/0000000", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/search?q=fix", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	results := decodeJSON(t, rr)
	assert.EqualValues(t, 1, results["total"])
	hit := results["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "task_1", hit["id"])
	assert.Equal(t, "Sprint", hit["blockTitle"])
}

func TestUploadImageAndServe(t *testing.T) {
	env := newTestEnv(t)
	content := []byte("\x89PNG fake image bytes")

	rr := env.upload(t, "/upload_image", "image", "diagram.png", content)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "/static/uploads/images/20240305_093000_diagram.png", body["url"])

	served := env.do(t, http.MethodGet, body["url"].(string), nil, "")
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/png", served.Header().Get("Content-Type"))
	assert.Equal(t, content, served.Body.Bytes())

	missing := env.do(t, http.MethodGet, "/static/uploads/images/nope.png", nil, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUploadImageRequiresFile(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "/upload_image", "other", "diagram.png", []byte("x"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "error", decodeJSON(t, rr)["status"])
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "/upload_attachment", "attachment", "big.bin", bytes.Repeat([]byte("x"), 2<<20))

	assert.GreaterOrEqual(t, rr.Code, 400)
	assert.Equal(t, "error", decodeJSON(t, rr)["status"])
}

func TestAttachmentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "/upload_attachment", "attachment", "會議紀錄.txt", []byte("minutes"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	attachment := decodeJSON(t, rr)["attachment"].(map[string]any)
	assert.Equal(t, "attachment_1", attachment["id"])
	assert.Equal(t, "會議紀錄.txt", attachment["original_name"])
	assert.EqualValues(t, 7, attachment["size"])
	assert.Equal(t, "7 B", attachment["sizeLabel"])
	assert.Equal(t, "2024-03-05T09:30:00Z", attachment["upload_time"])

	rr = env.upload(t, "/upload_attachment", "attachment", "plan.txt", []byte("plan"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment_2", decodeJSON(t, rr)["attachment"].(map[string]any)["id"])

	download := env.do(t, http.MethodGet, "/attachments/attachment_1", nil, "")
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, "minutes", download.Body.String())
	assert.Contains(t, download.Header().Get("Content-Disposition"), "attachment;")

	list := env.do(t, http.MethodGet, "/api/attachments", nil, "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decodeJSON(t, list)["attachments"], 2)

	rr = env.do(t, http.MethodDelete, "/delete_attachment/attachment_1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "success", decodeJSON(t, rr)["status"])

	gone := env.do(t, http.MethodGet, "/attachments/attachment_1", nil, "")
	assert.Equal(t, http.StatusNotFound, gone.Code)

	rr = env.do(t, http.MethodDelete, "/delete_attachment/attachment_1", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "error", decodeJSON(t, rr)["status"])
}

func TestAttachmentIDsContinueFromSavedDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := sprintDocument()
	doc.Attachments = []document.Attachment{{ID: "attachment_7", OriginalName: "old.pdf", Size: 10}}
	require.Equal(t, http.StatusOK, env.doJSON(t, http.MethodPost, "/save_data", doc).Code)

	rr := env.upload(t, "/upload_attachment", "attachment", "new.pdf", []byte("pdf"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment_8", decodeJSON(t, rr)["attachment"].(map[string]any)["id"])
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/save_template", map[string]any{"filename": "weekly", "document": sprintDocument()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	template := decodeJSON(t, rr)["template"].(map[string]any)
	assert.Equal(t, "weekly.json", template["filename"])

	rr = env.do(t, http.MethodGet, "/get_templates", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	templates := decodeJSON(t, rr)["templates"].([]any)
	require.Len(t, templates, 1)
	assert.Equal(t, "weekly.json", templates[0].(map[string]any)["filename"])

	rr = env.doJSON(t, http.MethodPost, "/load_template", map[string]any{"filename": "weekly.json"})
	require.Equal(t, http.StatusOK, rr.Code)
	loaded, err := document.Unmarshal(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sprintDocument(), loaded)

	data, err := document.Marshal(sprintDocument())
	require.NoError(t, err)
	rr = env.upload(t, "/load_template", "template_file", "from-disk.json", data)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	uploaded, err := document.Unmarshal(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Sprint", uploaded.Blocks[0].Title)

	rr = env.upload(t, "/load_template", "template_file", "broken.json", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.doJSON(t, http.MethodPost, "/load_template", map[string]any{"filename": "../secrets.json"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.doJSON(t, http.MethodPost, "/load_template", map[string]any{"filename": "missing.json"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/templates/weekly.json", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodGet, "/get_templates", nil, "")
	assert.Empty(t, decodeJSON(t, rr)["templates"])
}

func TestExportHTMLAndMSG(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/export_html", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "attachment; filename=tasks.html", rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "[Sprint]")
	assert.Contains(t, rr.Body.String(), "Fix bug")

	rr = env.doJSON(t, http.MethodPost, "/export_msg", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment; filename=tasks.msg", rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "Subject: Task Report")
	assert.Contains(t, rr.Body.String(), "multipart/alternative")
}

func TestSendReportWithoutSMTP(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/send_report", map[string]any{"to": []string{"lead@example.com"}})

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "EMAIL_NOT_CONFIGURED", body["code"])
}

func TestPreviewPopulateCollect(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/preview", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "[Sprint]")
	assert.Contains(t, rr.Body.String(), "[Priority:1]")

	rr = env.doJSON(t, http.MethodPost, "/populate", sprintDocument())
	require.Equal(t, http.StatusOK, rr.Code)
	markup := rr.Body.String()
	assert.Contains(t, markup, `data-task-id="task_1"`)

	rr = env.do(t, http.MethodPost, "/collect", strings.NewReader(markup), "text/html")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	collected, err := document.Unmarshal(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sprintDocument(), collected)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/nothing-here", nil, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON(t, rr)["code"])
}
