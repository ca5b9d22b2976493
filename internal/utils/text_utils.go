package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jaytaylor/html2text"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const truncationMarker = "\n[... content truncated ...]"

var htmlTagPattern = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|a|span|img)[\s>/]`)

// TextProcessor prepares email text before it is sent to an LLM
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// LooksLikeHTML reports whether the body carries HTML markup
func LooksLikeHTML(text string) bool {
	return htmlTagPattern.MatchString(text)
}

// HTMLToText flattens an HTML body into readable text. Link targets are kept
// so the model still sees where anchors point.
func (tp *TextProcessor) HTMLToText(body string) string {
	if !LooksLikeHTML(body) {
		return body
	}

	text, err := html2text.FromString(body, html2text.Options{OmitLinks: false})
	if err != nil {
		tp.logger.Debug("HTML conversion failed, using raw body", zap.Error(err))
		return body
	}
	return text
}

// TruncateText cuts text to at most maxRunes runes and appends a marker.
// A maxRunes of 0 or less disables truncation.
func (tp *TextProcessor) TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:maxRunes])

	tp.logger.Debug("Text truncated",
		zap.Int("original_runes", len(runes)),
		zap.Int("max_runes", maxRunes))

	return truncated + truncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 byte sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		i += size
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", b.Len()))

	return b.String()
}

// Normalize applies Unicode NFC so lookalike compositions reach the model in
// one canonical form
func (tp *TextProcessor) Normalize(text string) string {
	return norm.NFC.String(text)
}

// ProcessText sanitizes, normalizes and truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxRunes int) string {
	return tp.TruncateText(tp.Normalize(tp.SanitizeUTF8(text)), maxRunes)
}

// PromptBody turns a raw email body into the text placed in an LLM prompt
func (tp *TextProcessor) PromptBody(body string, maxRunes int) string {
	return tp.ProcessText(strings.TrimSpace(tp.HTMLToText(body)), maxRunes)
}
