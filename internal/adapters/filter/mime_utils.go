package filter

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/mikey/phishing-detector/internal/core"
)

// AttachmentsHeader carries the decoded attachment file names of a MIME
// message into core.Email headers, in the filename="..." form the parser reads
const AttachmentsHeader = "X-Decoded-Attachments"

// ParseMessage decodes a raw RFC 5322 message into an Email. The body is the
// HTML part when one exists, otherwise the plain text part. envelopeSender is
// used when the message has no From header.
func ParseMessage(r io.Reader, envelopeSender string) (*core.Email, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	headers := make(map[string]string)
	for _, key := range env.GetHeaderKeys() {
		headers[key] = strings.Join(env.GetHeaderValues(key), ", ")
	}

	names := make([]string, 0, len(env.Attachments)+len(env.Inlines))
	for _, part := range append(env.Attachments, env.Inlines...) {
		if part.FileName != "" {
			names = append(names, fmt.Sprintf("filename=%q", part.FileName))
		}
	}
	if len(names) > 0 {
		headers[AttachmentsHeader] = strings.Join(names, "; ")
	}

	sender := env.GetHeader("From")
	if sender == "" {
		sender = envelopeSender
	}

	body := env.HTML
	if body == "" {
		body = env.Text
	}

	return &core.Email{
		Sender:  sender,
		Subject: env.GetHeader("Subject"),
		Body:    body,
		Headers: headers,
	}, nil
}

// splitMessage separates the raw header block from the body. The returned
// header block keeps its line endings but not the blank separator line.
func splitMessage(raw []byte) (header, body []byte, sep string) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:], "\r\n"
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], raw[i+2:], "\n"
	}
	return raw, nil, "\r\n"
}

// rewriteMessage prepends the given header lines and, when subjectPrefix is
// set, prefixes the Subject field. Everything else, including MIME parts, is
// passed through byte for byte.
func rewriteMessage(raw []byte, added []string, subjectPrefix string) []byte {
	header, body, sep := splitMessage(raw)

	var out bytes.Buffer
	for _, line := range added {
		out.WriteString(line)
		out.WriteString("\r\n")
	}

	if subjectPrefix != "" {
		header = prefixSubject(header, subjectPrefix)
	}
	out.Write(header)
	out.WriteString(sep)
	out.Write(body)
	return out.Bytes()
}

// prefixSubject rewrites the first Subject field of a header block. Encoded
// subjects are decoded first so the prefix is not buried in an encoded word.
func prefixSubject(header []byte, prefix string) []byte {
	lines := strings.SplitAfter(string(header), "\n")

	for i, line := range lines {
		name, _, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Subject") {
			continue
		}

		end := i + 1
		for end < len(lines) && (strings.HasPrefix(lines[end], " ") || strings.HasPrefix(lines[end], "\t")) {
			end++
		}

		field := strings.Join(lines[i:end], "")
		value := strings.TrimSpace(field[len(name)+1:])
		value = strings.NewReplacer("\r\n", "", "\n", "").Replace(value)

		decoded, err := decodeHeader(value)
		if err != nil {
			decoded = value
		}
		if strings.HasPrefix(decoded, prefix) {
			return header
		}

		eol := "\n"
		if strings.HasSuffix(line, "\r\n") {
			eol = "\r\n"
		}
		replaced := "Subject: " + mime.QEncoding.Encode("utf-8", prefix+decoded) + eol

		var b strings.Builder
		for _, l := range lines[:i] {
			b.WriteString(l)
		}
		b.WriteString(replaced)
		for _, l := range lines[end:] {
			b.WriteString(l)
		}
		return []byte(b.String())
	}

	return header
}

// decodeHeader decodes RFC 2047 encoded words
func decodeHeader(value string) (string, error) {
	return new(mime.WordDecoder).DecodeHeader(value)
}

// sanitizeHeaderValue keeps a generated header on a single line
func sanitizeHeaderValue(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
