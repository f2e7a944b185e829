package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"coursemind/internal/models"
)

// scriptedDoer serves canned responses in order, recording every request.
type scriptedDoer struct {
	responses []scriptedResponse
	requests  []*http.Request
}

type scriptedResponse struct {
	status int
	body   string
	err    error
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	idx := len(d.requests) - 1
	if idx >= len(d.responses) {
		idx = len(d.responses) - 1
	}
	r := d.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     make(http.Header),
	}, nil
}

func quietTransport(doer httpDoer) *transport {
	return &transport{
		client:     doer,
		maxRetries: defaultMaxRetries,
		sleep:      func(time.Duration) {},
		randFloat:  func() float64 { return 0.5 },
	}
}

// TestTransportRetriesThenSucceeds verifies a 500 exactly maxRetries times
// followed by a 200 succeeds with maxRetries+1 attempts.
func TestTransportRetriesThenSucceeds(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 500, body: "boom"},
		{status: 500, body: "boom"},
		{status: 200, body: "ok"},
	}}
	tr := quietTransport(doer)

	body, err := tr.do(context.Background(), "POST", "https://api.test/v1/x", nil, []byte("{}"))
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if len(doer.requests) != defaultMaxRetries+1 {
		t.Errorf("attempts = %d, want %d", len(doer.requests), defaultMaxRetries+1)
	}
}

// TestTransportExhaustsRetries verifies persistent 500s fail after exactly
// maxRetries+1 attempts.
func TestTransportExhaustsRetries(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{{status: 500, body: "down"}}}
	tr := quietTransport(doer)

	_, err := tr.do(context.Background(), "POST", "https://api.test/v1/x", nil, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(doer.requests) != defaultMaxRetries+1 {
		t.Errorf("attempts = %d, want %d", len(doer.requests), defaultMaxRetries+1)
	}
}

// TestTransportNoRetryOn4xx verifies a permanent 4xx fails on the first
// attempt.
func TestTransportNoRetryOn4xx(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{{status: 401, body: "bad key"}}}
	tr := quietTransport(doer)

	_, err := tr.do(context.Background(), "POST", "https://api.test/v1/x", nil, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(doer.requests) != 1 {
		t.Errorf("attempts = %d, want 1", len(doer.requests))
	}

	provErr, ok := err.(*ProviderError)
	if !ok || provErr.Retryable {
		t.Errorf("401 classified retryable: %#v", err)
	}
}

// TestTransportRetriesOn429 verifies rate limiting is retried.
func TestTransportRetriesOn429(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 429, body: "slow down"},
		{status: 200, body: "ok"},
	}}
	tr := quietTransport(doer)

	if _, err := tr.do(context.Background(), "POST", "https://api.test/v1/x", nil, nil); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if len(doer.requests) != 2 {
		t.Errorf("attempts = %d, want 2", len(doer.requests))
	}
}

// TestBackoffFormula verifies the delay is 2^attempt * (0.5 + rand/2)
// seconds.
func TestBackoffFormula(t *testing.T) {
	tr := quietTransport(nil) // randFloat fixed at 0.5 -> factor 0.75

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 750 * time.Millisecond},
		{1, 1500 * time.Millisecond},
		{2, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := tr.backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func openaiBody(t *testing.T, status models.CompletionStatus, text string) string {
	t.Helper()
	resp := map[string]interface{}{"id": "resp_1", "status": status}
	if text != "" {
		resp["output_text"] = text
	}
	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func newTestOpenAI(doer httpDoer) *OpenAIClient {
	c := NewOpenAIClient("gpt-test", "sk-test", nil)
	c.transport = quietTransport(doer)
	return c
}

var userMessage = []models.ChatMessage{{Role: "user", Content: "hello"}}

// TestPollConvergesToCompleted verifies in_progress for k polls then
// completed yields the completed payload.
func TestPollConvergesToCompleted(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 200, body: openaiBody(t, models.StatusInProgress, "")},
		{status: 200, body: openaiBody(t, models.StatusInProgress, "")},
		{status: 200, body: openaiBody(t, models.StatusInProgress, "")},
		{status: 200, body: openaiBody(t, models.StatusCompleted, "the answer")},
	}}
	client := newTestOpenAI(doer)

	text, err := client.GetCompletion(context.Background(), userMessage, nil)
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if text != "the answer" {
		t.Errorf("text = %q", text)
	}
	// 1 create + 3 polls
	if len(doer.requests) != 4 {
		t.Errorf("requests = %d, want 4", len(doer.requests))
	}
}

// TestPollGivesUpAfterMaxAttempts verifies a completion stuck in
// in_progress fails after the poll budget instead of looping.
func TestPollGivesUpAfterMaxAttempts(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 200, body: openaiBody(t, models.StatusInProgress, "")},
	}}
	client := newTestOpenAI(doer)

	_, err := client.GetCompletion(context.Background(), userMessage, nil)
	if err == nil {
		t.Fatal("expected failure for never-finishing completion")
	}
	// 1 create + maxPollAttempts polls
	if len(doer.requests) != 1+maxPollAttempts {
		t.Errorf("requests = %d, want %d", len(doer.requests), 1+maxPollAttempts)
	}
}

// TestTerminalFailureStatusesFail verifies failed/cancelled/expired and
// requires_action all surface as hard failures.
func TestTerminalFailureStatusesFail(t *testing.T) {
	for _, status := range []models.CompletionStatus{
		models.StatusFailed, models.StatusCancelled, models.StatusExpired, models.StatusRequiresAction,
	} {
		doer := &scriptedDoer{responses: []scriptedResponse{
			{status: 200, body: openaiBody(t, status, "")},
		}}
		client := newTestOpenAI(doer)

		if _, err := client.GetCompletion(context.Background(), userMessage, nil); err == nil {
			t.Errorf("status %s did not fail", status)
		}
		if len(doer.requests) != 1 {
			t.Errorf("status %s: requests = %d, want 1 (no polling after terminal)", status, len(doer.requests))
		}
	}
}

// TestSystemMessagesBecomeInstructions verifies system turns are split into
// the instructions field.
func TestSystemMessagesBecomeInstructions(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 200, body: openaiBody(t, models.StatusCompleted, "ok")},
	}}
	client := newTestOpenAI(doer)

	messages := []models.ChatMessage{
		{Role: "system", Content: "You are a tutor."},
		{Role: "user", Content: "hello"},
	}
	if _, err := client.GetCompletion(context.Background(), messages, nil); err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}

	body, _ := io.ReadAll(doer.requests[0].Body)
	var sent openaiRequest
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("failed to decode sent request: %v", err)
	}
	if sent.Instructions != "You are a tutor." {
		t.Errorf("instructions = %q", sent.Instructions)
	}
	for _, item := range sent.Input {
		if item.Role == "system" {
			t.Error("system message leaked into input list")
		}
	}
}

// TestGeminiFoldsSystemIntoFirstUserTurn verifies the synthetic prefix.
func TestGeminiFoldsSystemIntoFirstUserTurn(t *testing.T) {
	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: 200, body: `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`},
	}}
	client := NewGeminiClient("gemini-test", "key-test")
	client.transport = quietTransport(doer)

	messages := []models.ChatMessage{
		{Role: "system", Content: "You are a tutor."},
		{Role: "user", Content: "hello"},
	}
	text, err := client.GetCompletion(context.Background(), messages, nil)
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if text != "hi" {
		t.Errorf("text = %q", text)
	}

	body, _ := io.ReadAll(doer.requests[0].Body)
	var sent geminiRequest
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("failed to decode sent request: %v", err)
	}
	if len(sent.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(sent.Contents))
	}
	got := sent.Contents[0].Parts[0].Text
	if !strings.HasPrefix(got, "You are a tutor.") || !strings.Contains(got, "hello") {
		t.Errorf("system prefix not folded: %q", got)
	}
}

// TestOptionsClamping verifies all setter bounds.
func TestOptionsClamping(t *testing.T) {
	opts := DefaultOptions("m")

	if opts.SetMaxTokens(0).MaxOutputTokens != MinTokens {
		t.Error("tokens not clamped up to 1")
	}
	if opts.SetMaxTokens(99999).MaxOutputTokens != MaxTokens {
		t.Error("tokens not clamped down to 4000")
	}
	if opts.SetTemperature(-1).Temperature != 0 {
		t.Error("temperature not clamped to 0")
	}
	if opts.SetTemperature(2).Temperature != 1 {
		t.Error("temperature not clamped to 1")
	}
	if opts.SetTopP(1.5).TopP != 1 {
		t.Error("topP not clamped to 1")
	}
	if opts.SetTimeout(time.Second).Timeout != MinTimeout {
		t.Error("timeout not clamped up to 5s")
	}
	if opts.SetTimeout(10 * time.Minute).Timeout != MaxTimeout {
		t.Error("timeout not clamped down to 60s")
	}
}

// TestSanitizeMessagesDropsInvalid verifies bad roles and empty content
// are removed and HTML is stripped.
func TestSanitizeMessagesDropsInvalid(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: "user", Content: "<b>hello</b>"},
		{Role: "tool", Content: "should drop"},
		{Role: "assistant", Content: "   "},
		{Role: "system", Content: "keep"},
	}
	out := SanitizeMessages(messages)
	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2", len(out))
	}
	if out[0].Content != "hello" {
		t.Errorf("HTML not stripped: %q", out[0].Content)
	}
	if out[1].Role != "system" {
		t.Errorf("unexpected survivor: %#v", out[1])
	}
}

// TestRedactURL verifies secrets vanish from logged URLs.
func TestRedactURL(t *testing.T) {
	redacted := redactURL("https://api.test/v1/models/x:generateContent?key=secret123&foo=bar")
	if strings.Contains(redacted, "secret123") {
		t.Errorf("key leaked: %s", redacted)
	}
	if !strings.Contains(redacted, "foo=bar") {
		t.Errorf("benign params lost: %s", redacted)
	}
}

// TestParseProviderRef verifies boundary parsing into the typed variant.
func TestParseProviderRef(t *testing.T) {
	ref, err := models.ParseProviderRef("openai:gpt-test")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ref.Kind != models.ProviderOpenAI || ref.Model != "gpt-test" {
		t.Errorf("ref = %#v", ref)
	}

	if _, err := models.ParseProviderRef("mystery:model"); err == nil {
		t.Error("unknown provider accepted")
	}
	if _, err := models.ParseProviderRef("openai"); err == nil {
		t.Error("missing model accepted")
	}
}
