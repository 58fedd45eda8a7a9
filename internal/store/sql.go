package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	dbfiles "taskdoc/db"
	"taskdoc/internal/document"
)

// Dialect selects the SQL flavor and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) driver() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTime is fixed width so text columns sort chronologically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// timeArg binds a timestamp. SQLite columns hold RFC 3339 text.
func (d Dialect) timeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTime)
	}
	return t
}

// ParseDatabaseURL maps DATABASE_URL to a dialect and driver DSN:
// postgres:// and postgresql:// use pgx, sqlite://path and file: use SQLite.
func ParseDatabaseURL(raw string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		dsn := strings.TrimPrefix(raw, "sqlite://")
		if dsn == "" {
			return "", "", fmt.Errorf("database url %q: missing sqlite path", raw)
		}
		return DialectSQLite, dsn, nil
	case strings.HasPrefix(raw, "file:"):
		return DialectSQLite, raw, nil
	}
	return "", "", fmt.Errorf("database url %q: unsupported scheme", raw)
}

func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if d == DialectSQLite {
		// One connection: SQLite serializes writers and :memory: databases
		// are per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if d == DialectSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	return db, nil
}

// Connect opens the database named by databaseURL and applies migrations.
// A nil migrations FS uses the embedded migrations for the dialect.
func Connect(ctx context.Context, databaseURL string, migrations fs.FS) (*SQLStore, error) {
	d, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if migrations == nil {
		migrations, err = fs.Sub(dbfiles.Migrations, "migrations/"+string(d))
		if err != nil {
			return nil, fmt.Errorf("embedded migrations: %w", err)
		}
	}
	conn, err := Open(ctx, d, dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, conn, d, migrations); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewSQLStore(conn, d), nil
}

const currentDocumentID = "current"

// SQLStore keeps the document, templates and attachment records in
// postgres or SQLite.
type SQLStore struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, d: d, now: time.Now}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) LoadDocument(ctx context.Context) (*document.Document, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT content FROM documents WHERE id=?`), currentDocumentID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return document.Unmarshal(content)
}

func (s *SQLStore) SaveDocument(ctx context.Context, doc *document.Document) (DocumentInfo, error) {
	data, err := document.Marshal(doc)
	if err != nil {
		return DocumentInfo{}, err
	}
	_, err = s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO documents (id, content, checksum, updated_at, revision)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at,
			revision = documents.revision + 1
	`), currentDocumentID, string(data), Checksum(data), s.d.timeArg(s.now()))
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("save document: %w", err)
	}
	return s.DocumentInfo(ctx)
}

func (s *SQLStore) DocumentInfo(ctx context.Context) (DocumentInfo, error) {
	var info DocumentInfo
	var updated timestamp
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT revision, checksum, updated_at FROM documents WHERE id=?`), currentDocumentID).
		Scan(&info.Revision, &info.Checksum, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentInfo{}, ErrNotFound
	}
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("document info: %w", err)
	}
	info.UpdatedAt = updated.Time
	return info, nil
}

func (s *SQLStore) ListTemplates(ctx context.Context) ([]TemplateInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, size, created_at FROM templates ORDER BY created_at DESC, filename`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := []TemplateInfo{}
	for rows.Next() {
		var info TemplateInfo
		var created timestamp
		if err := rows.Scan(&info.Filename, &info.Size, &created); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		info.Created = created.Time
		templates = append(templates, info)
	}
	return templates, rows.Err()
}

func (s *SQLStore) LoadTemplate(ctx context.Context, filename string) (*document.Document, error) {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, s.d.rebind(`SELECT content FROM templates WHERE filename=?`), name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return document.Unmarshal(content)
}

func (s *SQLStore) SaveTemplate(ctx context.Context, filename string, doc *document.Document) (TemplateInfo, error) {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return TemplateInfo{}, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return TemplateInfo{}, err
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO templates (filename, content, size, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (filename) DO UPDATE SET
			content = excluded.content,
			size = excluded.size
	`), name, string(data), len(data), s.d.timeArg(now))
	if err != nil {
		return TemplateInfo{}, fmt.Errorf("save template: %w", err)
	}

	info := TemplateInfo{Filename: name, Size: int64(len(data))}
	var created timestamp
	if err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT created_at FROM templates WHERE filename=?`), name).Scan(&created); err != nil {
		return TemplateInfo{}, fmt.Errorf("read template: %w", err)
	}
	info.Created = created.Time
	return info, nil
}

func (s *SQLStore) DeleteTemplate(ctx context.Context, filename string) error {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return err
	}
	return s.deleteOne(ctx, `DELETE FROM templates WHERE filename=?`, name, "delete template")
}

func (s *SQLStore) SaveAttachment(ctx context.Context, a Attachment) error {
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO attachments (id, blob_key, original_name, content_type, size, checksum, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			blob_key = excluded.blob_key,
			original_name = excluded.original_name,
			content_type = excluded.content_type,
			size = excluded.size,
			checksum = excluded.checksum,
			uploaded_at = excluded.uploaded_at
	`), a.ID, a.Key, a.OriginalName, a.ContentType, a.Size, a.Checksum, s.d.timeArg(a.UploadedAt))
	if err != nil {
		return fmt.Errorf("save attachment: %w", err)
	}
	return nil
}

const attachmentColumns = `id, blob_key, original_name, content_type, size, checksum, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (Attachment, error) {
	var a Attachment
	var uploaded timestamp
	if err := row.Scan(&a.ID, &a.Key, &a.OriginalName, &a.ContentType, &a.Size, &a.Checksum, &uploaded); err != nil {
		return Attachment{}, err
	}
	a.UploadedAt = uploaded.Time
	return a, nil
}

func (s *SQLStore) GetAttachment(ctx context.Context, id string) (Attachment, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+attachmentColumns+` FROM attachments WHERE id=?`), id)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, ErrNotFound
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ListAttachments(ctx context.Context) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	attachments := []Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (s *SQLStore) DeleteAttachment(ctx context.Context, id string) error {
	return s.deleteOne(ctx, `DELETE FROM attachments WHERE id=?`, id, "delete attachment")
}

func (s *SQLStore) deleteOne(ctx context.Context, query, key, op string) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(query), key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// timestamp scans TIMESTAMPTZ values from postgres and RFC 3339 text from SQLite.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time = time.Time{}
		return nil
	case time.Time:
		ts.Time = v
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	}
	return fmt.Errorf("scan timestamp: unsupported type %T", src)
}

func (ts *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognized value %q", s)
}
