package utils

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{"no limit", "hello world", 0, "hello world"},
		{"within limit", "hello", 10, "hello"},
		{"ascii cut", "hello world", 5, "hello" + truncationMarker},
		{"multibyte cut", "héllo wörld", 7, "héllo w" + truncationMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tp.TruncateText(tt.text, tt.max); got != tt.expected {
				t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.expected)
			}
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	if got := tp.SanitizeUTF8("valid ü"); got != "valid ü" {
		t.Errorf("valid text changed: %q", got)
	}
	if got := tp.SanitizeUTF8("bad\xff\xfebytes"); got != "badbytes" {
		t.Errorf("expected invalid bytes dropped, got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	decomposed := "é"
	if got := tp.Normalize(decomposed); got != "é" {
		t.Errorf("expected NFC composition, got %q", got)
	}
}

func TestPromptBodyHTML(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	body := `<html><body><p>Your account is locked.</p><a href="http://evil.example/login">Sign in</a></body></html>`
	got := tp.PromptBody(body, 0)

	if strings.Contains(got, "<p>") || strings.Contains(got, "<html>") {
		t.Errorf("expected markup removed, got %q", got)
	}
	if !strings.Contains(got, "Your account is locked.") {
		t.Errorf("expected text preserved, got %q", got)
	}
	if !strings.Contains(got, "http://evil.example/login") {
		t.Errorf("expected link target preserved, got %q", got)
	}
}

func TestPromptBodyPlain(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	got := tp.PromptBody("  plain text body  ", 5)
	if got != "plain"+truncationMarker {
		t.Errorf("unexpected prompt body %q", got)
	}
}
