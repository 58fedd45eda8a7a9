package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

// parseMessage returns the decoded parts of a multipart/alternative message
// keyed by media type.
func parseMessage(t *testing.T, raw []byte) (*mail.Message, map[string]string) {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("media type = %q, want multipart/alternative", mediaType)
	}
	parts := map[string]string{}
	reader := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		data, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, part))
		if err != nil {
			t.Fatalf("decode %s: %v", partType, err)
		}
		parts[partType] = string(data)
	}
	return msg, parts
}

func TestBuildHTMLMessage(t *testing.T) {
	body := "<p>週報 " + strings.Repeat("long line ", 40) + "</p>"
	raw, err := BuildHTMLMessage(Message{
		From:    "system@company.com",
		To:      []string{"recipient@company.com", "second@company.com"},
		Subject: "Task Report 任務",
		HTML:    body,
		Date:    time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("BuildHTMLMessage: %v", err)
	}

	msg, parts := parseMessage(t, raw)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if subject != "Task Report 任務" {
		t.Errorf("subject = %q", subject)
	}
	if got := msg.Header.Get("To"); got != "recipient@company.com, second@company.com" {
		t.Errorf("To = %q", got)
	}
	if got := msg.Header.Get("Date"); got != "Tue, 05 Mar 2024 09:00:00 +0000" {
		t.Errorf("Date = %q", got)
	}
	if parts["text/html"] != body {
		t.Errorf("html part = %q, want %q", parts["text/html"], body)
	}
	if parts["text/plain"] != fallbackText {
		t.Errorf("plain part = %q", parts["text/plain"])
	}
	for _, line := range strings.Split(string(raw), "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line exceeds SMTP limit: %d bytes", len(line))
		}
	}
}

func TestBuildHTMLMessageRequiresRecipients(t *testing.T) {
	if _, err := BuildHTMLMessage(Message{From: "a@b.c", Subject: "x"}); err == nil {
		t.Fatal("expected error for message without recipients")
	}
}

func TestSendHTMLEmail(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "reports@example.com", FromName: "Task Reports"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := svc.SendHTMLEmail([]string{"lead@example.com"}, "Task Report", "<p>ok</p>"); err != nil {
		t.Fatalf("SendHTMLEmail: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "reports@example.com" {
		t.Errorf("envelope from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "lead@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	msg, parts := parseMessage(t, gotMsg)
	if got := msg.Header.Get("From"); got != `"Task Reports" <reports@example.com>` {
		t.Errorf("From header = %q", got)
	}
	if parts["text/html"] != "<p>ok</p>" {
		t.Errorf("html part = %q", parts["text/html"])
	}
}

func TestSendHTMLEmailErrors(t *testing.T) {
	if err := NewService(Config{}).SendHTMLEmail([]string{"a@example.com"}, "s", "b"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured send error = %v, want ErrNotConfigured", err)
	}

	svc := NewService(Config{Host: "smtp.example.com", Port: "25", From: "r@example.com"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	if err := svc.SendHTMLEmail([]string{"not an address"}, "s", "b"); err == nil {
		t.Error("expected invalid recipient error")
	}
	err := svc.SendHTMLEmail([]string{"a@example.com"}, "s", "b")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("send error = %v", err)
	}
}
