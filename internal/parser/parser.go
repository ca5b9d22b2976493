package parser

import (
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/rules"
	"go.uber.org/zap"
)

var (
	urlPattern      = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	hrefPattern     = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)
	filenamePattern = regexp.MustCompile(`filename="([^"]+)"`)
	namePattern     = regexp.MustCompile(`name="([^"]+)"`)
	bodyFilePattern = regexp.MustCompile(`[a-zA-Z0-9_-]+\.[a-zA-Z]{2,4}`)
	extImagePattern = regexp.MustCompile(`(?i)<img[^>]+src=["']https?://[^"']+["']`)
)

const maxBodyAttachments = 5

// dateFormats are tried in order when net/mail cannot parse a Date header
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// Parser turns a raw email into an EmailRecord
type Parser struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// New creates a new Parser
func New(r *rules.Rules, logger *zap.Logger) *Parser {
	return &Parser{
		rules:  r,
		logger: logger,
	}
}

// Parse normalizes an email. Missing fields yield conservative defaults and
// never an error.
func (p *Parser) Parse(email *core.Email) *core.EmailRecord {
	headers := email.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	record := &core.EmailRecord{
		SenderRaw: email.Sender,
		Subject:   email.Subject,
		Body:      email.Body,
		Headers:   headers,
		URLs:      extractURLs(email.Body),
	}

	parseSender(record, email.Sender)

	if len(headers) > 0 {
		record.Auth = parseAuth(headers)
	}

	record.UrgencyDetected = p.countUrgency(email.Subject+" "+email.Body) >= 2
	record.Attachments = extractAttachments(email.Body, headers)
	record.SentAtOddHour = sentAtOddHour(headers)
	record.ReplyToMismatch = replyToMismatch(headers, email.Sender)
	record.ExternalImagesCount = len(extImagePattern.FindAllString(email.Body, -1))

	p.logger.Debug("Parsed email",
		zap.String("sender_domain", record.SenderDomain),
		zap.Int("urls", len(record.URLs)),
		zap.Int("attachments", len(record.Attachments)),
		zap.Bool("urgency", record.UrgencyDetected))

	return record
}

func parseSender(record *core.EmailRecord, sender string) {
	if strings.Contains(sender, "<") && strings.Contains(sender, ">") {
		open := strings.Index(sender, "<")
		rest := sender[open+1:]
		if end := strings.Index(rest, ">"); end >= 0 {
			rest = rest[:end]
		}
		record.SenderDisplay = strings.TrimSpace(sender[:open])
		record.SenderEmail = strings.TrimSpace(rest)
		record.SenderSpoofed = strings.Contains(record.SenderDisplay, "@")
	} else {
		record.SenderEmail = strings.TrimSpace(sender)
	}

	if at := strings.LastIndex(record.SenderEmail, "@"); at >= 0 {
		record.SenderDomain = record.SenderEmail[at+1:]
	}
}

func parseAuth(headers map[string]string) *core.AuthResults {
	results := strings.ToLower(header(headers, "Authentication-Results"))
	return &core.AuthResults{
		SPFPass:       strings.Contains(results, "spf=pass"),
		DKIMPass:      strings.Contains(results, "dkim=pass"),
		DMARCPass:     strings.Contains(results, "dmarc=pass"),
		ReturnPath:    header(headers, "Return-Path"),
		ReceivedSPF:   header(headers, "Received-SPF"),
		DKIMSignature: header(headers, "DKIM-Signature"),
		MessageID:     header(headers, "Message-ID"),
	}
}

// header looks a header up by name, ignoring case
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func extractURLs(body string) []string {
	seen := make(map[string]struct{})
	for _, u := range urlPattern.FindAllString(body, -1) {
		seen[u] = struct{}{}
	}
	for _, m := range hrefPattern.FindAllStringSubmatch(body, -1) {
		if strings.HasPrefix(m[1], "http") {
			seen[m[1]] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (p *Parser) countUrgency(text string) int {
	lowered := strings.ToLower(text)
	count := 0
	for _, re := range p.rules.UrgencyRegexps() {
		if re.MatchString(lowered) {
			count++
		}
	}
	return count
}

func extractAttachments(body string, headers map[string]string) []string {
	seen := make(map[string]struct{})

	if strings.Contains(header(headers, "Content-Type"), "multipart") {
		keys := make([]string, 0, len(headers))
		for k := range headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, re := range []*regexp.Regexp{filenamePattern, namePattern} {
				for _, m := range re.FindAllStringSubmatch(headers[k], -1) {
					seen[m[1]] = struct{}{}
				}
			}
		}
	}

	if strings.Contains(strings.ToLower(body), "attachment") {
		for _, f := range bodyFilePattern.FindAllString(body, maxBodyAttachments) {
			seen[f] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

func sentAtOddHour(headers map[string]string) bool {
	date := header(headers, "Date")
	if date == "" {
		return false
	}
	sent, ok := parseDate(date)
	if !ok {
		return false
	}
	// hour in the sender's own zone
	return sent.Hour() < 6
}

func parseDate(s string) (time.Time, bool) {
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}

	clean := strings.TrimSpace(s)
	if paren := strings.LastIndex(clean, "("); paren > 0 {
		clean = strings.TrimSpace(clean[:paren])
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, clean); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func replyToMismatch(headers map[string]string, sender string) bool {
	replyTo := strings.ToLower(header(headers, "Reply-To"))
	if replyTo == "" || !strings.Contains(replyTo, "@") || !strings.Contains(sender, "@") {
		return false
	}
	return domainOf(sender) != domainOf(replyTo)
}

func domainOf(addr string) string {
	d := addr[strings.LastIndex(addr, "@")+1:]
	return strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(d), "<>")))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
