package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

func defaultPostfixOptions() PostfixOptions {
	return PostfixOptions{
		ScoreHeader:    "X-Phishing-Score",
		LevelHeader:    "X-Phishing-Risk",
		ThreatsHeader:  "X-Phishing-Threats",
		SubjectPrefix:  "[PHISHING] ",
		PostfixEnabled: true,
	}
}

func TestFilterMessageStampsHeaders(t *testing.T) {
	opts := defaultPostfixOptions()
	opts.ModifySubject = true
	f := NewPostfixFilter(newTestEngine(100), zap.NewNop(), opts)

	out, result, err := f.filterMessage(context.Background(), "bounce@relay.example", []byte(phishingMessage))
	if err != nil {
		t.Fatalf("filterMessage failed: %v", err)
	}
	if !result.RiskLevel.AtLeast(core.RiskHigh) {
		t.Fatalf("expected at least HIGH, got %s (%d)", result.RiskLevel, result.Score)
	}

	msg := string(out)
	for _, want := range []string{
		"X-Phishing-Score: ",
		"X-Phishing-Risk: " + string(result.RiskLevel),
		"X-Phishing-Threats: Possible Amazon spoofing detected",
		"Subject: [PHISHING] URGENT: Verify Your Account Now!",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("rewritten message missing %q:\n%s", want, msg)
		}
	}
}

func TestFilterMessageBenignKeepsSubject(t *testing.T) {
	opts := defaultPostfixOptions()
	opts.ModifySubject = true
	f := NewPostfixFilter(newTestEngine(0), zap.NewNop(), opts)

	out, result, err := f.filterMessage(context.Background(), "", []byte(benignMessage))
	if err != nil {
		t.Fatal(err)
	}
	if result.RiskLevel != core.RiskLow {
		t.Fatalf("expected LOW, got %s (%d)", result.RiskLevel, result.Score)
	}
	if !strings.Contains(string(out), "\r\nSubject: Monthly update\r\n") {
		t.Errorf("subject should be untouched:\n%s", out)
	}
	if strings.Contains(string(out), "X-Phishing-Threats") {
		t.Errorf("no threats header expected:\n%s", out)
	}
}

func TestFilterMessageRejects(t *testing.T) {
	opts := defaultPostfixOptions()
	opts.BlockPhishing = true
	opts.BlockLevel = core.RiskHigh
	f := NewPostfixFilter(newTestEngine(100), zap.NewNop(), opts)

	_, _, err := f.filterMessage(context.Background(), "", []byte(phishingMessage))

	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("expected an SMTP rejection, got %v", err)
	}
	if smtpErr.Code != 550 {
		t.Errorf("code = %d, want 550", smtpErr.Code)
	}
}

func TestSessionDataDelivers(t *testing.T) {
	f := NewPostfixFilter(newTestEngine(0), zap.NewNop(), defaultPostfixOptions())

	var delivered []byte
	var rcpts []string
	f.deliver = func(sender string, recipients []string, data []byte) error {
		delivered = data
		rcpts = recipients
		return nil
	}

	session, _ := (&smtpBackend{filter: f}).NewSession(nil)
	_ = session.Mail("newsletter@company.com", nil)
	_ = session.Rcpt("reader@example.com", nil)

	if err := session.Data(bytes.NewReader([]byte(benignMessage))); err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if !bytes.HasPrefix(delivered, []byte("X-Phishing-Score: ")) {
		t.Errorf("delivered message not stamped:\n%s", delivered)
	}
	if len(rcpts) != 1 || rcpts[0] != "reader@example.com" {
		t.Errorf("recipients = %v", rcpts)
	}

	session.Reset()
	if s := session.(*smtpSession); s.sender != "" || len(s.recipients) != 0 {
		t.Error("Reset should clear the envelope")
	}
}

func TestSessionDataDeliveryFailure(t *testing.T) {
	f := NewPostfixFilter(newTestEngine(0), zap.NewNop(), defaultPostfixOptions())
	f.deliver = func(string, []string, []byte) error { return errors.New("connection refused") }

	session, _ := (&smtpBackend{filter: f}).NewSession(nil)
	if err := session.Data(strings.NewReader(benignMessage)); err == nil {
		t.Error("expected delivery failure to surface")
	}
}

func TestPostfixProcessEmailValidates(t *testing.T) {
	f := NewPostfixFilter(newTestEngine(0), zap.NewNop(), defaultPostfixOptions())
	if _, err := f.ProcessEmail(context.Background(), &core.Email{Body: "x"}); !errors.Is(err, ErrMissingSender) {
		t.Errorf("expected ErrMissingSender, got %v", err)
	}
}
