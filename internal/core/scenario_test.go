package core_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/parser"
	"github.com/mikey/phishing-detector/internal/patterns"
	"github.com/mikey/phishing-detector/internal/rules"
	"github.com/mikey/phishing-detector/internal/scoring"
	"github.com/mikey/phishing-detector/internal/urlcheck"
	"github.com/mikey/phishing-detector/internal/whitelist"
	"go.uber.org/zap"
)

type fixedLLM struct {
	assessment core.ThreatAssessment
}

func (f fixedLLM) AssessEmail(context.Context, *core.Email) (*core.ThreatAssessment, error) {
	a := f.assessment
	return &a, nil
}

func newEngine(llm core.LLMClient) *core.DetectionEngine {
	logger := zap.NewNop()
	r := rules.Default()
	return core.NewDetectionEngine(
		parser.New(r, logger),
		urlcheck.New(r, logger),
		patterns.New(r, logger),
		scoring.New(scoring.DefaultWeights(), r, whitelist.NewChecker(r.TrustedDomains, logger), logger),
		llm,
		nil,
		logger,
		core.EngineConfig{Thresholds: core.DefaultThresholds()},
	)
}

func TestPhishingScenario(t *testing.T) {
	e := newEngine(fixedLLM{core.ThreatAssessment{Score: 70, Threats: []string{"phishing indicators"}, Confidence: 0.9}})

	email := &core.Email{
		Sender:  "security@amaz0n-alerts.com",
		Subject: "URGENT: Verify Your Account Now!",
		Body: "Dear customer,\n" +
			"We detected suspicious activity on your account. Your account will be suspended within 24 hours. " +
			"Click here immediately to verify your password and login details: http://bit.ly/secure-verify\n",
	}

	result, err := e.Analyze(context.Background(), email)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for _, want := range []string{
		"Possible Amazon spoofing detected",
		"Multiple urgency indicators in subject",
		"phishing indicators",
		"Suspicious URLs detected: 1 found",
	} {
		found := false
		for _, threat := range result.Threats {
			if threat == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected threat %q in %v", want, result.Threats)
		}
	}

	if !reflect.DeepEqual(result.SuspiciousURLs, []string{"http://bit.ly/secure-verify"}) {
		t.Errorf("SuspiciousURLs = %v", result.SuspiciousURLs)
	}
	// 28 (llm) + 25 (patterns) + 6 (urls) + 7.5 (sender)
	if result.Score != 67 {
		t.Errorf("Score = %d, want 67", result.Score)
	}
	if result.RiskLevel != core.RiskHigh && result.RiskLevel != core.RiskCritical {
		t.Errorf("RiskLevel = %s, want HIGH or CRITICAL", result.RiskLevel)
	}
	if len(result.Recommendations) == 0 || result.Recommendations[0] != "Do not click any links in this email" {
		t.Errorf("unexpected recommendations: %v", result.Recommendations)
	}
	if !strings.HasPrefix(result.RiskFactors[0], "High phishing probability") {
		t.Errorf("unexpected risk factors: %v", result.RiskFactors)
	}
}

func TestLegitimateScenario(t *testing.T) {
	e := newEngine(fixedLLM{core.ThreatAssessment{Score: 5, Threats: []string{}, Confidence: 0.9}})

	email := &core.Email{
		Sender:  "newsletter@company.com",
		Subject: "Monthly Newsletter",
		Body:    "Hello from the team! Read this month's highlights at https://www.example.com/newsletter",
	}

	result, err := e.Analyze(context.Background(), email)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Score >= 30 {
		t.Errorf("Score = %d, want < 30", result.Score)
	}
	if result.RiskLevel != core.RiskLow {
		t.Errorf("RiskLevel = %s, want LOW", result.RiskLevel)
	}
	if !reflect.DeepEqual(result.Recommendations, []string{"Email appears safe but remain vigilant"}) {
		t.Errorf("Recommendations = %v", result.Recommendations)
	}
	if len(result.SuspiciousURLs) != 0 {
		t.Errorf("SuspiciousURLs = %v", result.SuspiciousURLs)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	e := newEngine(fixedLLM{core.ThreatAssessment{Score: 35, Confidence: 0.6}})
	email := &core.Email{
		Sender:  "billing@paypa1-secure.tk",
		Subject: "Invoice overdue",
		Body:    "Pay now at http://192.168.10.4/pay",
	}

	first, err := e.Analyze(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Analyze(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}

	if first.Score != second.Score || first.RiskLevel != second.RiskLevel {
		t.Errorf("results differ: %d/%s vs %d/%s", first.Score, first.RiskLevel, second.Score, second.RiskLevel)
	}
	if !reflect.DeepEqual(first.Threats, second.Threats) {
		t.Errorf("threats differ: %v vs %v", first.Threats, second.Threats)
	}
}

func TestBatchWithMalformedEntry(t *testing.T) {
	e := newEngine(fixedLLM{core.ThreatAssessment{Score: 10, Confidence: 0.9}})

	items := e.Batch(context.Background(), []*core.Email{
		{Sender: "friend@gmail.com", Subject: "Lunch", Body: "See you at noon"},
		nil,
		{Sender: "newsletter@company.com", Subject: "News", Body: "Nothing urgent"},
	})

	results := core.Succeeded(items)
	if len(results) != 2 {
		t.Fatalf("expected 2 successful results, got %d", len(results))
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 100 || len(r.Recommendations) == 0 {
			t.Errorf("invalid result: %+v", r)
		}
	}
}
