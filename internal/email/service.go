// Package email builds MIME messages for task reports and sends them via SMTP.
package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// ErrNotConfigured is returned when sending without SMTP settings.
var ErrNotConfigured = errors.New("email not configured")

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// Message is an HTML message with a plain-text fallback part.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Date    time.Time
}

// fallbackText is the plain part shown by clients that cannot render HTML.
const fallbackText = "Please view this email in an HTML-capable email client."

// BuildHTMLMessage encodes msg as multipart/alternative. Non-ASCII subjects
// are Q-encoded and both parts are base64 so UTF-8 content survives any relay.
func BuildHTMLMessage(msg Message) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("build message: no recipients")
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var buf bytes.Buffer
	body := multipart.NewWriter(&buf)

	var header bytes.Buffer
	fmt.Fprintf(&header, "From: %s\r\n", msg.From)
	fmt.Fprintf(&header, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&header, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&header, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&header, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&header, "Content-Type: multipart/alternative; boundary=%q\r\n", body.Boundary())
	fmt.Fprintf(&header, "\r\n")

	if err := writePart(body, "text/plain; charset=utf-8", fallbackText); err != nil {
		return nil, err
	}
	if err := writePart(body, "text/html; charset=utf-8", msg.HTML); err != nil {
		return nil, err
	}
	if err := body.Close(); err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	return append(header.Bytes(), buf.Bytes()...), nil
}

func writePart(w *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("build message part: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(part, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = fmt.Fprintf(part, "%s\r\n", encoded)
	return err
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = (&mail.Address{Name: s.config.FromName, Address: s.config.From}).String()
	}

	msg, err := BuildHTMLMessage(Message{From: from, To: to, Subject: subject, HTML: htmlBody})
	if err != nil {
		return err
	}
	if err := s.send(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

