package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/prompt"
	"github.com/mikey/phishing-detector/internal/utils"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func newClient(invoker ModelInvoker, modelID string) *BedrockClient {
	logger := zap.NewNop()
	return NewBedrockClient(invoker, modelID, 500, 0.3, 0.9, 1500, logger, utils.NewTextProcessor(logger))
}

var testEmail = &core.Email{
	Sender:  "alert@paypa1-secure.com",
	Subject: "Account suspended",
	Body:    "Verify your password now",
}

func TestAssessEmailAnthropic(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"{\"score\": 91, \"threats\": [\"credential theft\"], \"confidence\": 0.95}"}]}`}
	client := newClient(invoker, "anthropic.claude-3-haiku-20240307-v1:0")

	got, err := client.AssessEmail(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("AssessEmail failed: %v", err)
	}
	if got.Score != 91 || got.Confidence != 0.95 || got.Model != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("unexpected assessment %+v", got)
	}

	var sent anthropicRequest
	if err := json.Unmarshal(invoker.input.Body, &sent); err != nil {
		t.Fatalf("payload is not a messages request: %v", err)
	}
	if sent.AnthropicVersion != anthropicVersion || sent.System != prompt.System || sent.MaxTokens != 500 {
		t.Errorf("unexpected payload %+v", sent)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Content != prompt.User(testEmail.Sender, testEmail.Subject, testEmail.Body) {
		t.Errorf("unexpected messages %+v", sent.Messages)
	}
}

func TestAssessEmailTitan(t *testing.T) {
	invoker := &fakeInvoker{body: `{"results":[{"outputText":"This is a phishing email with suspicious links."}]}`}
	client := newClient(invoker, "amazon.titan-text-express-v1")

	got, err := client.AssessEmail(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("AssessEmail failed: %v", err)
	}
	if got.Score != 75 || len(got.Threats) != 1 {
		t.Errorf("expected heuristic assessment, got %+v", got)
	}

	var sent map[string]interface{}
	_ = json.Unmarshal(invoker.input.Body, &sent)
	if _, ok := sent["inputText"]; !ok {
		t.Errorf("expected a Titan payload, got %v", sent)
	}
}

func TestAssessEmailErrors(t *testing.T) {
	client := newClient(&fakeInvoker{err: errors.New("throttled")}, "anthropic.claude-v2")
	if _, err := client.AssessEmail(context.Background(), testEmail); err == nil {
		t.Error("expected invoke error to propagate")
	}

	empty := newClient(&fakeInvoker{body: `{"content":[]}`}, "anthropic.claude-v2")
	if _, err := empty.AssessEmail(context.Background(), testEmail); err == nil {
		t.Error("expected error for empty Claude content")
	}

	titan := newClient(&fakeInvoker{body: `{"results":[]}`}, "amazon.titan-text-lite-v1")
	if _, err := titan.AssessEmail(context.Background(), testEmail); err == nil {
		t.Error("expected error for empty Titan results")
	}
}

func TestAssessEmailGenericModel(t *testing.T) {
	invoker := &fakeInvoker{body: `{"generation":"{\"score\": 20, \"threats\": [], \"confidence\": 0.6}"}`}
	client := newClient(invoker, "meta.llama3-8b-instruct-v1:0")

	got, err := client.AssessEmail(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("AssessEmail failed: %v", err)
	}
	if got.Score != 20 || got.Confidence != 0.6 {
		t.Errorf("unexpected assessment %+v", got)
	}
}
