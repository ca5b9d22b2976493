package patterns

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/rules"
	"go.uber.org/zap"
)

var (
	ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

	grammarPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s{2,}`),
		regexp.MustCompile(`[a-z]\s+[A-Z]`),
		regexp.MustCompile(`\.\s*[a-z]`),
	}
)

const (
	maxGrammarErrors   = 10
	grammarThreshold   = 3
	urlPreviewLength   = 30
	subjectCapsMinimum = 10
)

// Matcher runs the rule-based threat checks over a parsed email
type Matcher struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// New creates a new pattern matcher
func New(r *rules.Rules, logger *zap.Logger) *Matcher {
	return &Matcher{
		rules:  r,
		logger: logger,
	}
}

// Check returns the threat findings for a record: sender findings first,
// then subject, body and URL findings
func (m *Matcher) Check(record *core.EmailRecord) []string {
	var threats []string
	threats = append(threats, m.checkSender(record.SenderRaw)...)
	threats = append(threats, m.checkSubject(record.Subject)...)
	threats = append(threats, m.checkBody(record.Body)...)
	threats = append(threats, m.checkURLs(record.URLs)...)

	m.logger.Debug("Pattern check complete", zap.Int("findings", len(threats)))
	return threats
}

func (m *Matcher) checkSender(sender string) []string {
	var threats []string
	lowered := strings.ToLower(sender)

	// A sender containing the brand name itself is never reported, so
	// "amazon-alerts.tk" passes this check.
	for _, spoof := range m.rules.BrandSpoofs {
		if spoof.Regexp().MatchString(lowered) && !strings.Contains(lowered, strings.ToLower(spoof.Brand)) {
			threats = append(threats, fmt.Sprintf("Possible %s spoofing detected", spoof.Brand))
		}
	}

	if strings.Contains(lowered, "no-reply") && containsAny(lowered, "security", "alert", "verify") {
		threats = append(threats, "Suspicious no-reply address")
	}

	if strings.Contains(sender, "<") && strings.Contains(sender, ">") {
		display := sender[:strings.Index(sender, "<")]
		if strings.Contains(display, "@") {
			threats = append(threats, "Misleading display name")
		}
	}

	return threats
}

func (m *Matcher) checkSubject(subject string) []string {
	var threats []string
	lowered := strings.ToLower(subject)

	hits := 0
	for _, re := range m.rules.SubjectUrgencyRegexps() {
		if re.MatchString(lowered) {
			hits++
		}
	}
	if hits >= 2 {
		threats = append(threats, "Multiple urgency indicators in subject")
	}

	if isUpper(subject) && utf8.RuneCountInString(subject) > subjectCapsMinimum {
		threats = append(threats, "Excessive capitalization")
	}

	if strings.Count(subject, "!") > 2 || strings.Count(subject, "$") > 1 {
		threats = append(threats, "Excessive special characters")
	}

	return threats
}

func (m *Matcher) checkBody(body string) []string {
	var threats []string
	lowered := strings.ToLower(body)

	for _, phrase := range m.rules.SuspiciousPhrases {
		if strings.Contains(lowered, phrase) {
			threats = append(threats, fmt.Sprintf("Suspicious phrase: '%s'", phrase))
		}
	}

	if countContained(lowered, m.rules.CredentialKeywords) >= 3 {
		threats = append(threats, "Potential credential harvesting attempt")
	}

	if countContained(lowered, m.rules.FinancialKeywords) >= 3 && strings.Contains(lowered, "urgent") {
		threats = append(threats, "Potential financial scam")
	}

	if GrammarErrors(body) > grammarThreshold {
		threats = append(threats, "Multiple grammar/spelling errors")
	}

	return threats
}

func (m *Matcher) checkURLs(urls []string) []string {
	var threats []string

	for _, raw := range urls {
		lowered := strings.ToLower(raw)
		host := hostOf(lowered)

		if m.rules.IsShortener(host) {
			threats = append(threats, fmt.Sprintf("URL shortener detected: %s...", preview(raw)))
		}

		if ipv4Pattern.MatchString(raw) {
			threats = append(threats, "Direct IP address URL")
		}

		for _, spoof := range m.rules.BrandSpoofs {
			if spoof.Regexp().MatchString(lowered) {
				threats = append(threats, fmt.Sprintf("Possible %s URL spoofing", spoof.Brand))
			}
		}

		if m.rules.HasSuspiciousTLD(host) {
			threats = append(threats, "Suspicious domain extension")
		}
	}

	return threats
}

// GrammarErrors counts crude spacing and capitalization anomalies, capped at 10
func GrammarErrors(text string) int {
	errors := 0
	for _, re := range grammarPatterns {
		errors += len(re.FindAllStringIndex(text, -1))
	}
	if errors > maxGrammarErrors {
		return maxGrammarErrors
	}
	return errors
}

// isUpper reports whether s has at least one cased letter and no lower-case ones
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) > urlPreviewLength {
		runes = runes[:urlPreviewLength]
	}
	return string(runes)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countContained(s string, words []string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			count++
		}
	}
	return count
}
