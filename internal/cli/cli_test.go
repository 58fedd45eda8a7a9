package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdoc/internal/app"
	"taskdoc/internal/config"
	"taskdoc/internal/document"
	"taskdoc/internal/gitrepo"
	"taskdoc/internal/logging"
)

func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func sprintDocument() *document.Document {
	ids := document.NewAllocator()
	doc := document.NewWithBlock(ids)
	doc.Blocks[0].Title = "Sprint"
	task := doc.Blocks[0].InsertTask(ids, "")
	task.Title = "Fix bug"
	task.Priority = "1"
	task.InsertItem(ids, 0).Text = "reproduce on staging"
	return doc
}

func writeDocument(t *testing.T, doc *document.Document) string {
	t.Helper()
	data, err := document.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "task_data.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRenderFromStdin(t *testing.T) {
	data, err := document.Marshal(sprintDocument())
	require.NoError(t, err)

	stdout, _, err := runCLI(t, bytes.NewReader(data), "render")
	require.NoError(t, err)
	assert.Contains(t, stdout, `<div class="block-header-preview">[Sprint]</div>`)
	assert.Contains(t, stdout, "[Priority:1]")
	assert.Contains(t, stdout, "reproduce on staging")
}

func TestRenderRejectsMalformedJSON(t *testing.T) {
	_, _, err := runCLI(t, strings.NewReader("{"), "render", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read document")
}

func TestPopulateCollectRoundTrip(t *testing.T) {
	path := writeDocument(t, sprintDocument())

	markup, _, err := runCLI(t, nil, "populate", path)
	require.NoError(t, err)
	assert.Contains(t, markup, `data-task-id="task_1"`)

	collected, _, err := runCLI(t, strings.NewReader(markup), "collect")
	require.NoError(t, err)

	got, err := document.Unmarshal([]byte(collected))
	require.NoError(t, err)
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := document.Unmarshal(original)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPopulatePage(t *testing.T) {
	path := writeDocument(t, sprintDocument())

	out, _, err := runCLI(t, nil, "populate", "--page", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, `data-block-id="block_1"`)
}

func TestValidate(t *testing.T) {
	path := writeDocument(t, sprintDocument())

	out, _, err := runCLI(t, nil, "validate", path)
	require.NoError(t, err)
	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.Stats.Tasks)
	assert.Equal(t, 2, report.NextID["task"])
	assert.Equal(t, 2, report.NextID["item"])
}

func TestValidateReportsDuplicateIDs(t *testing.T) {
	input := `{"blocks":[{"id":"block_1","title":"A","tasks":[{"id":"task_1","title":"x"},{"id":"task_1","title":"y"}]}]}`

	out, _, err := runCLI(t, strings.NewReader(input), "validate")
	require.Error(t, err)
	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Contains(t, report.Error, `duplicate id "task_1"`)
}

func TestExportHTMLToFile(t *testing.T) {
	path := writeDocument(t, sprintDocument())
	target := filepath.Join(t.TempDir(), "week.html")

	stdout, stderr, err := runCLI(t, nil, "export", "--format", "html", "--title", "Week 12", "-o", target, path)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>Week 12</title>")
	assert.Contains(t, string(data), "Fix bug")
}

func TestExportMSGToStdout(t *testing.T) {
	t.Setenv("TASKDOC_MAIL_TO", "lead@example.com")
	path := writeDocument(t, sprintDocument())

	stdout, _, err := runCLI(t, nil, "export", "-f", "msg", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "To: lead@example.com")
	assert.Contains(t, stdout, "Subject: Task Report")
}

func TestExportUnknownFormat(t *testing.T) {
	_, _, err := runCLI(t, nil, "export", "--format", "rtf", "missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestHistory(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("TASKDOC_DATA_DIR", dataDir)

	out, _, err := runCLI(t, nil, "history")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	_, _, history := config.DataPaths(dataDir)
	repo := gitrepo.New(history)
	commit, changed, err := repo.CommitDocument(app.HistoryName, sprintDocument(), "Avery", "Save tasks")
	require.NoError(t, err)
	require.True(t, changed)

	out, _, err = runCLI(t, nil, "history", "--limit", "5")
	require.NoError(t, err)
	var commits []gitrepo.Commit
	require.NoError(t, json.Unmarshal([]byte(out), &commits))
	require.Len(t, commits, 1)
	assert.Equal(t, commit.Hash, commits[0].Hash)
	assert.Equal(t, "Avery", commits[0].Author)

	out, _, err = runCLI(t, nil, "history", "--show", commit.Hash)
	require.NoError(t, err)
	doc, err := document.Unmarshal([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "Sprint", doc.Blocks[0].Title)
}

func TestBuildServiceWithFileStore(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("TASKDOC_DATA_DIR", dataDir)
	cfg := config.Load()

	service, err := buildService(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	checks, ok := service.Ready(context.Background())
	assert.True(t, ok, "%v", checks)
	assert.DirExists(t, cfg.UploadDir)
	assert.DirExists(t, cfg.HistoryDir)
}

func TestBuildServiceWithSQLite(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("TASKDOC_DATA_DIR", dataDir)
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dataDir, "taskdoc.db"))
	cfg := config.Load()

	service, err := buildService(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	result, err := service.SaveDocument(context.Background(), sprintDocument(), "Avery")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Tasks)

	doc, err := service.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fix bug", doc.Blocks[0].Tasks[0].Title)
}

func TestBuildServiceBadDatabaseURL(t *testing.T) {
	t.Setenv("TASKDOC_DATA_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "mysql://nope")

	_, err := buildService(context.Background(), config.Load(), logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}
