package filter

import (
	"strings"
	"testing"
)

func TestParseMessagePlain(t *testing.T) {
	email, err := ParseMessage(strings.NewReader(phishingMessage), "bounce@relay.example")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if email.Sender != "security@amaz0n-alerts.com" {
		t.Errorf("sender = %q", email.Sender)
	}
	if email.Subject != "URGENT: Verify Your Account Now!" {
		t.Errorf("subject = %q", email.Subject)
	}
	if !strings.Contains(email.Body, "http://bit.ly/secure-verify") {
		t.Errorf("body lost its URL: %q", email.Body)
	}
	if email.Headers["To"] != "victim@example.com" {
		t.Errorf("headers = %v", email.Headers)
	}
}

func TestParseMessageEnvelopeSenderFallback(t *testing.T) {
	raw := "Subject: no from\r\n\r\nbody\r\n"
	email, err := ParseMessage(strings.NewReader(raw), "envelope@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if email.Sender != "envelope@example.com" {
		t.Errorf("sender = %q", email.Sender)
	}
}

func TestParseMessageMultipart(t *testing.T) {
	raw := "From: billing@invoices.example\r\n" +
		"Subject: Invoice\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>See <a href=\"http://192.168.1.10/pay\">invoice</a></p>\r\n" +
		"--XYZ\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"invoice.exe\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"TVqQAAMAAAAEAAAA\r\n" +
		"--XYZ--\r\n"

	email, err := ParseMessage(strings.NewReader(raw), "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(email.Body, `href="http://192.168.1.10/pay"`) {
		t.Errorf("expected the HTML part as body, got %q", email.Body)
	}
	if got := email.Headers[AttachmentsHeader]; got != `filename="invoice.exe"` {
		t.Errorf("attachments header = %q", got)
	}
	if !strings.Contains(email.Headers["Content-Type"], "multipart/mixed") {
		t.Errorf("content type = %q", email.Headers["Content-Type"])
	}
}

func TestRewriteMessage(t *testing.T) {
	out := string(rewriteMessage([]byte(phishingMessage), []string{"X-Phishing-Score: 79"}, "[PHISHING] "))

	if !strings.HasPrefix(out, "X-Phishing-Score: 79\r\nFrom: security@amaz0n-alerts.com\r\n") {
		t.Errorf("added header not prepended:\n%s", out)
	}
	if !strings.Contains(out, "\r\nSubject: [PHISHING] URGENT: Verify Your Account Now!\r\n") {
		t.Errorf("subject not prefixed:\n%s", out)
	}
	if strings.Count(out, "Subject:") != 1 {
		t.Errorf("expected exactly one Subject field:\n%s", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n"+phishingBody) {
		t.Errorf("body not preserved:\n%s", out)
	}
}

func TestRewriteMessageSubjectVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "folded subject",
			raw:  "Subject: part one\r\n part two\r\nFrom: a@b.c\r\n\r\nbody",
			want: "Subject: [P] part one part two\r\nFrom: a@b.c\r\n\r\nbody",
		},
		{
			name: "already prefixed",
			raw:  "Subject: [P] hello\r\n\r\nbody",
			want: "Subject: [P] hello\r\n\r\nbody",
		},
		{
			name: "encoded word",
			raw:  "Subject: =?utf-8?q?hello?=\n\nbody",
			want: "Subject: [P] hello\n\nbody",
		},
		{
			name: "bare LF",
			raw:  "From: a@b.c\nSubject: hi\n\nbody",
			want: "From: a@b.c\nSubject: [P] hi\n\nbody",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(rewriteMessage([]byte(tt.raw), nil, "[P] ")); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeHeaderValue(t *testing.T) {
	if got := sanitizeHeaderValue("line one\r\nX-Injected: yes\tand more"); got != "line one X-Injected: yes and more" {
		t.Errorf("got %q", got)
	}
}
