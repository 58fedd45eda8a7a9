package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taskdoc/internal/blob"
	"taskdoc/internal/document"
	"taskdoc/internal/email"
	"taskdoc/internal/export"
	"taskdoc/internal/search"
	"taskdoc/internal/session"
	"taskdoc/internal/store"
)

// maxMemory is how much of a multipart form is buffered before spilling to disk.
const maxMemory = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	maxUpload  int64
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	maxUpload := service.config.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, maxUpload: maxUpload, log: service.log}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		results, ok := s.service.Ready(ctx)
		status := "ready"
		statusCode := http.StatusOK
		if !ok {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
		checks := map[string]any{}
		for name, err := range results {
			if err != nil {
				checks[name] = map[string]any{"status": "error", "error": err.Error()}
				continue
			}
			checks[name] = map[string]any{"status": "ok"}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		doc := s.service.EditorDocument(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.service.EditorPage(w, doc); err != nil {
			s.log.Error().Err(err).Msg("render editor page")
			http.Error(w, "editor unavailable", http.StatusInternalServerError)
		}
		return
	}

	if strings.HasPrefix(r.URL.Path, blob.URLPrefix) && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		s.handleUpload(w, r, strings.TrimPrefix(r.URL.Path, blob.URLPrefix))
		return
	}

	parts := splitPath(r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/save_data":
		var doc document.Document
		if err := decodeBody(r, &doc); err != nil {
			s.fail(w, r, invalid("INVALID_BODY", err))
			return
		}
		result, err := s.service.SaveDocument(r.Context(), &doc, author(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "save": result})
		return

	case r.Method == http.MethodGet && r.URL.Path == "/load_data":
		data, checksum, err := s.service.DocumentJSON(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		etag := `"` + checksum + `"`
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/upload_image":
		up, closeFn, err := s.formFile(w, r, "image")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer closeFn()
		url, err := s.service.UploadImage(r.Context(), up)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "url": url})
		return

	case r.Method == http.MethodPost && r.URL.Path == "/upload_attachment":
		up, closeFn, err := s.formFile(w, r, "attachment")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer closeFn()
		attachment, err := s.service.UploadAttachment(r.Context(), up)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "attachment": attachment})
		return

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "delete_attachment":
		if err := s.service.DeleteAttachment(r.Context(), parts[1]); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		return

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "attachments":
		s.handleAttachmentDownload(w, r, parts[1])
		return

	case r.Method == http.MethodPost && r.URL.Path == "/export_html":
		s.handleExport(w, r, export.FormatHTML)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/export_msg":
		s.handleExport(w, r, export.FormatMSG)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/export_pdf":
		s.handleExport(w, r, export.FormatPDF)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/export_docx":
		s.handleExport(w, r, export.FormatDOCX)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/send_report":
		var body struct {
			To       []string           `json:"to"`
			Subject  string             `json:"subject"`
			Document *document.Document `json:"document"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalid("INVALID_BODY", err))
			return
		}
		doc := body.Document
		if doc == nil {
			stored, err := s.service.Document(r.Context())
			if err != nil {
				s.fail(w, r, err)
				return
			}
			doc = stored
		}
		if err := s.service.SendReport(r.Context(), doc, body.To, body.Subject); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		return

	case r.Method == http.MethodGet && r.URL.Path == "/get_templates":
		templates, err := s.service.ListTemplates(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
		return

	case r.Method == http.MethodPost && r.URL.Path == "/load_template":
		s.handleLoadTemplate(w, r)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/save_template":
		var body struct {
			Filename string             `json:"filename"`
			Document *document.Document `json:"document"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, invalid("INVALID_BODY", err))
			return
		}
		template, err := s.service.SaveTemplate(r.Context(), body.Filename, body.Document)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "template": template})
		return

	case r.Method == http.MethodPost && r.URL.Path == "/preview":
		var doc document.Document
		if err := decodeBody(r, &doc); err != nil {
			s.fail(w, r, invalid("INVALID_BODY", err))
			return
		}
		doc.Normalize()
		writeHTML(w, http.StatusOK, s.service.PreviewHTML(&doc))
		return

	case r.Method == http.MethodPost && r.URL.Path == "/collect":
		defer r.Body.Close()
		doc, err := s.service.Collect(http.MaxBytesReader(w, r.Body, s.maxUpload))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/populate":
		var doc document.Document
		if err := decodeBody(r, &doc); err != nil {
			s.fail(w, r, invalid("INVALID_BODY", err))
			return
		}
		doc.Normalize()
		markup, err := s.service.EditorSurface(&doc)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeHTML(w, http.StatusOK, markup)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" {
		s.handleAPI(w, r, parts[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleAPI(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "history":
		commits, err := s.service.History(queryInt(r, "limit", 50))
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "history":
		doc, commit, err := s.service.Version(parts[1])
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commit": commit, "document": doc})
		return

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "search":
		query := r.URL.Query()
		response := s.service.Search(search.Query{
			Text:       query.Get("q"),
			FilterType: search.ResultType(query.Get("type")),
			Owner:      query.Get("owner"),
			Status:     query.Get("status"),
			Limit:      queryInt(r, "limit", 20),
			Offset:     queryInt(r, "offset", 0),
		})
		writeJSON(w, http.StatusOK, response)
		return

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "attachments":
		attachments, err := s.service.ListAttachments(r.Context())
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
		return

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "templates":
		if err := s.service.DeleteTemplate(r.Context(), parts[1]); err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case len(parts) >= 1 && parts[0] == "sessions":
		s.handleSessions(w, r, parts[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var input CreateSessionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.CreateSession(r.Context(), input)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
		return
	}

	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	} else if len(parts) > 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		sess, err := s.service.GetSession(r.Context(), id)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)

	case r.Method == http.MethodDelete && action == "":
		if err := s.service.DeleteSession(r.Context(), id); err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && action == "ops":
		var op session.Op
		if err := decodeBody(r, &op); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, result, err := s.service.ApplyOp(r.Context(), id, op)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result, "session": sess})

	case r.Method == http.MethodPost && action == "collect":
		defer r.Body.Close()
		sess, err := s.service.CollectSession(r.Context(), id, http.MaxBytesReader(w, r.Body, s.maxUpload))
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)

	case r.Method == http.MethodPost && action == "save":
		sess, result, err := s.service.SaveSession(r.Context(), id, author(r))
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"save": result, "session": sess})

	case r.Method == http.MethodGet && action == "preview":
		sess, err := s.service.GetSession(r.Context(), id)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeHTML(w, http.StatusOK, s.service.PreviewHTML(sess.Document))

	case r.Method == http.MethodGet && action == "editor":
		sess, err := s.service.GetSession(r.Context(), id)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		markup, err := s.service.EditorSurface(sess.Document)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		writeHTML(w, http.StatusOK, markup)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, format export.Format) {
	var doc document.Document
	if err := decodeBody(r, &doc); err != nil {
		s.fail(w, r, invalid("INVALID_BODY", err))
		return
	}
	result, err := s.service.Export(r.Context(), &doc, format, r.URL.Query().Get("title"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", contentDisposition(result.Filename))
	w.Header().Set("Content-Type", result.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleLoadTemplate accepts either a stored template name as JSON or an
// uploaded template file. Either way the response is the bare document.
func (s *HTTPServer) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		up, closeFn, err := s.formFile(w, r, "template_file")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer closeFn()
		doc, err := s.service.ReadTemplate(up.Body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	var body struct {
		Filename string `json:"filename"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, invalid("INVALID_BODY", err))
		return
	}
	doc, err := s.service.LoadTemplate(r.Context(), body.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleAttachmentDownload(w http.ResponseWriter, r *http.Request, id string) {
	body, rec, err := s.service.OpenAttachment(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(rec.OriginalName))
	if rec.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn().Err(err).Str("attachment_id", id).Msg("attachment download interrupted")
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, key string) {
	body, obj, err := s.service.OpenUpload(r.Context(), key)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if obj.Checksum != "" {
		w.Header().Set("ETag", `"`+obj.Checksum+`"`)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn().Err(err).Str("key", obj.Key).Msg("upload download interrupted")
	}
}

// formFile reads one file field from a multipart request body limited to
// the configured upload size.
func (s *HTTPServer) formFile(w http.ResponseWriter, r *http.Request, field string) (Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, nil, domainError(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), nil)
		}
		return Upload{}, nil, invalidUpload("expected multipart form data")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return Upload{}, nil, invalidUpload(fmt.Sprintf("missing %q file", field))
	}
	closeFn := func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	return Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, closeFn, nil
}

// fail answers the browser endpoints, which report errors as
// {"status":"error","message":...}.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"status": "error", "code": code, "message": message})
}

func (s *HTTPServer) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

// RequestID returns the request ID the middleware stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Taskdoc-Author, If-None-Match")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "ETag, Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeHTML(w http.ResponseWriter, status int, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, markup)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// author names the committer of a save; browsers that send nothing are
// recorded under the default history author.
func author(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Taskdoc-Author"))
}

// contentDisposition marks a download, encoding non-ASCII names per RFC 2231.
func contentDisposition(filename string) string {
	value := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if value == "" {
		return `attachment; filename="download"`
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found or expired", nil
	case errors.Is(err, session.ErrTargetNotFound):
		return http.StatusNotFound, "TARGET_NOT_FOUND", err.Error(), nil
	case errors.Is(err, session.ErrUnknownOp), errors.Is(err, session.ErrInvalidOp):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, blob.ErrInvalidKey):
		return http.StatusBadRequest, "INVALID_NAME", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, email.ErrNotConfigured):
		return http.StatusServiceUnavailable, "EMAIL_NOT_CONFIGURED", "Email is not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
