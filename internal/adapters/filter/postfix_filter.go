package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// PostfixOptions configures the content filter
type PostfixOptions struct {
	ListenAddr     string
	BlockPhishing  bool
	BlockLevel     core.RiskLevel
	ScoreHeader    string
	LevelHeader    string
	ThreatsHeader  string
	SubjectPrefix  string
	ModifySubject  bool
	PostfixAddr    string
	PostfixPort    int
	PostfixEnabled bool
	// AnalysisTimeout bounds one message's analysis
	AnalysisTimeout time.Duration
}

// PostfixFilter implements a Postfix after-queue content filter: it receives
// mail over SMTP, stamps the verdict into headers and re-injects the message
type PostfixFilter struct {
	engine *core.DetectionEngine
	logger *zap.Logger
	opts   PostfixOptions
	server *smtp.Server
	// deliver re-injects a message; replaced in tests
	deliver func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(engine *core.DetectionEngine, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	if opts.BlockLevel.Rank() < 0 {
		opts.BlockLevel = core.RiskCritical
	}
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = "[PHISHING] "
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = time.Minute
	}

	f := &PostfixFilter{
		engine: engine,
		logger: logger,
		opts:   opts,
	}
	f.deliver = f.sendToPostfix
	return f
}

// Start starts the SMTP listener
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting", zap.String("address", f.opts.ListenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyzes an email without touching the mail flow
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return f.engine.Analyze(ctx, email)
}

// filterMessage analyzes one raw message and returns the rewritten message.
// A non-nil *smtp.SMTPError means the message must be rejected.
func (f *PostfixFilter) filterMessage(ctx context.Context, envelopeSender string, raw []byte) ([]byte, *core.DetectionResult, error) {
	email, err := ParseMessage(bytes.NewReader(raw), envelopeSender)
	if err != nil {
		return nil, nil, err
	}

	result, err := f.engine.Analyze(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	if f.opts.BlockPhishing && result.RiskLevel.AtLeast(f.opts.BlockLevel) {
		return nil, result, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %d, risk: %s)", result.Score, result.RiskLevel),
		}
	}

	added := []string{
		f.opts.ScoreHeader + ": " + strconv.Itoa(result.Score),
		f.opts.LevelHeader + ": " + string(result.RiskLevel),
	}
	if len(result.Threats) > 0 {
		added = append(added, f.opts.ThreatsHeader+": "+sanitizeHeaderValue(strings.Join(result.Threats, "; ")))
	}

	prefix := ""
	if f.opts.ModifySubject && result.RiskLevel.AtLeast(core.RiskHigh) {
		prefix = f.opts.SubjectPrefix
	}

	return rewriteMessage(raw, added, prefix), result, nil
}

// sendToPostfix re-injects the processed message on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.opts.PostfixAddr, strconv.Itoa(f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message and re-injects or rejects it
func (s *smtpSession) Data(r io.Reader) error {
	logger := s.filter.logger.With(zap.String("envelope_sender", s.sender))

	raw, err := io.ReadAll(r)
	if err != nil {
		logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.filter.opts.AnalysisTimeout)
	defer cancel()

	out, result, err := s.filter.filterMessage(ctx, s.sender, raw)
	var smtpErr *smtp.SMTPError
	switch {
	case errors.As(err, &smtpErr):
		logger.Info("Rejecting phishing email",
			zap.Int("score", result.Score),
			zap.String("risk_level", string(result.RiskLevel)))
		return smtpErr
	case err != nil:
		// Pass the message through untouched rather than lose mail
		logger.Error("Failed to analyze email, passing it through", zap.Error(err))
		out = raw
	}

	if !s.filter.opts.PostfixEnabled {
		logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}
	if err := s.filter.deliver(s.sender, s.recipients, out); err != nil {
		logger.Error("Failed to send email back to Postfix", zap.Error(err))
		return err
	}

	if result != nil {
		logger.Info("Processed email",
			zap.Int("score", result.Score),
			zap.String("risk_level", string(result.RiskLevel)),
			zap.Int("threats", len(result.Threats)))
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
