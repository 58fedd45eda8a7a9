package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdoc/internal/document"
)

func sampleDocument() *document.Document {
	ids := document.NewAllocator()
	doc := document.NewWithBlock(ids)
	doc.Blocks[0].Title = "Sprint"
	task := doc.Blocks[0].InsertTask(ids, "")
	task.Title = "Fix bug"
	task.Priority = "1"
	task.InsertItem(ids, 0).Text = "reproduce"
	return doc
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Connect(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "taskdoc.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openFiles(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, filepath.Join(dir, "templates"))
	require.NoError(t, err)
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": openSQLite(t),
		"file":   openFiles(t),
	}
}

func TestDocumentPersistence(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.LoadDocument(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.DocumentInfo(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			doc := sampleDocument()
			info, err := s.SaveDocument(ctx, doc)
			require.NoError(t, err)
			data, err := document.Marshal(doc)
			require.NoError(t, err)
			assert.Equal(t, Checksum(data), info.Checksum)
			assert.False(t, info.UpdatedAt.IsZero())

			loaded, err := s.LoadDocument(ctx)
			require.NoError(t, err)
			assert.Equal(t, doc, loaded)

			doc.Blocks[0].Title = "Retro"
			second, err := s.SaveDocument(ctx, doc)
			require.NoError(t, err)
			assert.NotEqual(t, info.Checksum, second.Checksum)

			loaded, err = s.LoadDocument(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Retro", loaded.Blocks[0].Title)
			require.NoError(t, s.Ping(ctx))
		})
	}
}

func TestSQLDocumentRevisions(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	first, err := s.SaveDocument(ctx, sampleDocument())
	require.NoError(t, err)
	second, err := s.SaveDocument(ctx, sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Revision)
	assert.Equal(t, int64(2), second.Revision)
	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestTemplates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			list, err := s.ListTemplates(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			info, err := s.SaveTemplate(ctx, "weekly", sampleDocument())
			require.NoError(t, err)
			assert.Equal(t, "weekly.json", info.Filename)
			assert.Positive(t, info.Size)

			list, err = s.ListTemplates(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "weekly.json", list[0].Filename)

			loaded, err := s.LoadTemplate(ctx, "weekly.json")
			require.NoError(t, err)
			assert.Equal(t, "Sprint", loaded.Blocks[0].Title)

			_, err = s.LoadTemplate(ctx, "missing.json")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.LoadTemplate(ctx, "../task_data.json")
			assert.ErrorIs(t, err, ErrInvalidName)

			require.NoError(t, s.DeleteTemplate(ctx, "weekly.json"))
			assert.ErrorIs(t, s.DeleteTemplate(ctx, "weekly.json"), ErrNotFound)
		})
	}
}

func TestAttachments(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			uploaded := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

			a := Attachment{
				ID:           "attachment_1",
				Key:          "attachments/20240305_093000_notes.txt",
				OriginalName: "notes.txt",
				Size:         12,
				Checksum:     Checksum([]byte("hello world!")),
				UploadedAt:   uploaded,
			}
			require.NoError(t, s.SaveAttachment(ctx, a))
			require.NoError(t, s.SaveAttachment(ctx, Attachment{ID: "attachment_2", Key: "k2", OriginalName: "b.pdf", UploadedAt: uploaded.Add(time.Minute)}))

			got, err := s.GetAttachment(ctx, "attachment_1")
			require.NoError(t, err)
			assert.Equal(t, "application/octet-stream", got.ContentType)
			assert.Equal(t, a.Key, got.Key)
			assert.True(t, uploaded.Equal(got.UploadedAt))

			list, err := s.ListAttachments(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "attachment_1", list[0].ID)

			require.NoError(t, s.DeleteAttachment(ctx, "attachment_1"))
			_, err = s.GetAttachment(ctx, "attachment_1")
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.ErrorIs(t, s.DeleteAttachment(ctx, "attachment_1"), ErrNotFound)
		})
	}
}

func TestCleanTemplateName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "weekly", want: "weekly.json"},
		{in: " weekly.JSON ", want: "weekly.JSON"},
		{in: "", wantErr: true},
		{in: "../etc/passwd", wantErr: true},
		{in: ".hidden.json", wantErr: true},
		{in: "notes.txt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanTemplateName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidName, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseDatabaseURL(t *testing.T) {
	d, dsn, err := ParseDatabaseURL("postgres://u:p@localhost/taskdoc")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)
	assert.Equal(t, "postgres://u:p@localhost/taskdoc", dsn)

	d, dsn, err = ParseDatabaseURL("sqlite:///var/lib/taskdoc.db")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)
	assert.Equal(t, "/var/lib/taskdoc.db", dsn)

	_, _, err = ParseDatabaseURL("mysql://localhost")
	assert.Error(t, err)
	_, _, err = ParseDatabaseURL("sqlite://")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x=? AND y=?`
	assert.Equal(t, `SELECT a FROM t WHERE x=$1 AND y=$2`, DialectPostgres.rebind(q))
	assert.Equal(t, q, DialectSQLite.rebind(q))
}
