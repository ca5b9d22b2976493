// Package report renders detection results for people and machines.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/mikey/phishing-detector/internal/core"
)

// Format selects the report rendering
type Format int

const (
	FormatJSON Format = iota
	FormatHTML
	FormatText
)

// ErrUnknownFormat is returned for an unrecognized format name
var ErrUnknownFormat = errors.New("unknown report format")

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatHTML:
		return "html"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps json, html and text (any case) to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of a rendered report
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Generate renders a result in the given format
func Generate(result *core.DetectionResult, format Format) (string, error) {
	if result == nil {
		return "", errors.New("nil detection result")
	}

	switch format {
	case FormatJSON:
		return generateJSON(result)
	case FormatHTML:
		return generateHTML(result)
	case FormatText:
		return generateText(result), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func generateJSON(result *core.DetectionResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

var levelColors = map[core.RiskLevel]string{
	core.RiskLow:      "#28a745",
	core.RiskMedium:   "#ffc107",
	core.RiskHigh:     "#fd7e14",
	core.RiskCritical: "#dc3545",
}

// LevelColor returns the badge color for a tier
func LevelColor(level core.RiskLevel) string {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return "#6c757d"
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Phishing Detection Report</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; }
        .score { font-size: 48px; font-weight: bold; }
        .risk-level { color: white; padding: 10px 20px; border-radius: 5px; display: inline-block; margin: 10px 0; }
        .section { margin: 20px 0; padding: 15px; background: #f8f9fa; border-radius: 5px; }
        .threat { background: #fff3cd; padding: 10px; margin: 5px 0; border-left: 4px solid #ffc107; }
        .recommendation { background: #d1ecf1; padding: 10px; margin: 5px 0; border-left: 4px solid #17a2b8; }
        .url { background: #f8d7da; padding: 10px; margin: 5px 0; border-left: 4px solid #dc3545; word-break: break-all; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Phishing Detection Report</h1>
        <div class="score">{{.Result.Score}}/100</div>
        <div class="risk-level" style="background: {{.Color}}">{{.Result.RiskLevel}} RISK</div>
        <p class="generated">Generated: {{.Result.Timestamp}}</p>
    </div>

    <div class="section" id="threats">
        <h2>Threats Detected ({{len .Result.Threats}})</h2>
        {{range .Result.Threats}}<div class="threat">{{.}}</div>
        {{else}}<p>No specific threats identified</p>{{end}}
    </div>

    <div class="section" id="urls">
        <h2>Suspicious URLs ({{len .Result.SuspiciousURLs}})</h2>
        {{range .Result.SuspiciousURLs}}<div class="url">{{.}}</div>
        {{else}}<p>No suspicious URLs found</p>{{end}}
    </div>

    <div class="section" id="recommendations">
        <h2>Recommendations</h2>
        {{range .Result.Recommendations}}<div class="recommendation">{{.}}</div>
        {{end}}
    </div>

    <div class="section" id="analysis">
        <h2>AI Analysis</h2>
        <pre>{{.Analysis}}</pre>
    </div>
</body>
</html>
`))

func generateHTML(result *core.DetectionResult) (string, error) {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Result   *core.DetectionResult
		Color    template.CSS
		Analysis string
	}{
		Result:   result,
		Color:    template.CSS(LevelColor(result.RiskLevel)),
		Analysis: analysisJSON(result.Analysis),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.String(), nil
}

func generateText(result *core.DetectionResult) string {
	rule := strings.Repeat("=", 60)
	sub := strings.Repeat("-", 40)

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("PHISHING DETECTION REPORT")
	line(rule)
	line("Timestamp: %s", result.Timestamp)
	line("Risk Score: %d/100", result.Score)
	line("Risk Level: %s", result.RiskLevel)
	line("")

	line("THREATS DETECTED:")
	line(sub)
	if len(result.Threats) == 0 {
		line("No specific threats identified")
	}
	for _, threat := range result.Threats {
		line("• %s", threat)
	}
	line("")

	line("SUSPICIOUS URLS:")
	line(sub)
	if len(result.SuspiciousURLs) == 0 {
		line("No suspicious URLs found")
	}
	for _, u := range result.SuspiciousURLs {
		line("• %s", u)
	}
	line("")

	line("RECOMMENDATIONS:")
	line(sub)
	for _, rec := range result.Recommendations {
		line("→ %s", rec)
	}
	line("")

	line("AI ANALYSIS:")
	line(sub)
	line(analysisJSON(result.Analysis))
	b.WriteString(rule)

	return b.String()
}

func analysisJSON(a *core.ThreatAssessment) string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Summary describes a batch of results: tier distribution, average score
// and the five most frequent threat kinds
func Summary(results []*core.DetectionResult) string {
	total := len(results)
	if total == 0 {
		return "No emails analyzed"
	}

	counts := make(map[core.RiskLevel]int)
	threatKinds := make(map[string]int)
	sum := 0
	for _, r := range results {
		counts[r.RiskLevel]++
		sum += r.Score
		for _, threat := range r.Threats {
			kind, _, _ := strings.Cut(threat, ":")
			threatKinds[kind]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "BATCH ANALYSIS SUMMARY\n%s\n", strings.Repeat("=", 40))
	fmt.Fprintf(&b, "Total Emails Analyzed: %d\n", total)
	fmt.Fprintf(&b, "Average Risk Score: %.1f/100\n\n", float64(sum)/float64(total))

	b.WriteString("Risk Distribution:\n")
	for _, level := range []core.RiskLevel{core.RiskCritical, core.RiskHigh, core.RiskMedium, core.RiskLow} {
		n := counts[level]
		fmt.Fprintf(&b, "• %s: %d (%.1f%%)\n", level, n, float64(n)/float64(total)*100)
	}

	type kindCount struct {
		kind  string
		count int
	}
	ranked := make([]kindCount, 0, len(threatKinds))
	for kind, n := range threatKinds {
		ranked = append(ranked, kindCount{kind, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].kind < ranked[j].kind
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	b.WriteString("\nTop Threats:\n")
	for _, kc := range ranked {
		fmt.Fprintf(&b, "• %s: %d occurrences\n", kc.kind, kc.count)
	}
	return b.String()
}
