package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/phishing-detector/internal/report"
)

func TestParseLineFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		sender  string
		subject string
		body    string
	}{
		{"full", "a@b.example\r\nHello\r\nline one\r\nline two", "a@b.example", "Hello", "line one\nline two"},
		{"no body", "a@b.example\nHello", "a@b.example", "Hello", ""},
		{"empty", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := parseLineFormat(tt.content)
			if email.Sender != tt.sender || email.Subject != tt.subject || email.Body != tt.body {
				t.Errorf("got %+v", email)
			}
		})
	}
}

func TestLoadEmailEML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg.eml")
	raw := "From: PayPal <service@paypa1.example>\r\n" +
		"Subject: Account locked\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Verify your account now.\r\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	email, err := loadEmail(path)
	if err != nil {
		t.Fatalf("loadEmail failed: %v", err)
	}
	if email.Subject != "Account locked" {
		t.Errorf("subject = %q", email.Subject)
	}
	if email.Sender == "" || email.Body == "" {
		t.Errorf("expected sender and body, got %+v", email)
	}
}

func TestEmailFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.eml", "notes.md", "c.TXT"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\ny\nz"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := emailFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.eml", "b.txt", "c.TXT"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Errorf("files[%d] = %s, want %s", i, files[i], name)
		}
	}

	if _, err := emailFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestOutputFormat(t *testing.T) {
	for path, want := range map[string]report.Format{
		"r.html": report.FormatHTML,
		"r.TXT":  report.FormatText,
		"r.json": report.FormatJSON,
		"r":      report.FormatJSON,
	} {
		if got := outputFormat(path); got != want {
			t.Errorf("outputFormat(%q) = %v, want %v", path, got, want)
		}
	}
}
