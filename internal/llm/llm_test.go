package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/nae/internal/metrics"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}

	if mock.Calls[0].Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", mock.Calls[0].Model)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	// Ensure env vars are not set for this test.
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	t.Setenv("GEMINI_API_KEY", "")

	providers := []string{"anthropic", "openai", "google"}
	for _, p := range providers {
		_, err := NewProvider(p, "some-model")
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", provider.Name())
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesAnthropicProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	provider, err := NewProvider("anthropic", "claude-sonnet-4-5-20250929")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", provider.Name())
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	provider, err := NewProvider("openai", "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}
}

func TestFactoryCreatesGoogleProvider(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	provider, err := NewProvider("google", "gemini-3-pro-preview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "google" {
		t.Errorf("expected name 'google', got %q", provider.Name())
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	ctx := context.Background()
	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := rl.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	// First two should succeed immediately.
	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, req)
	if err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestRateLimiterBucketsPerModel(t *testing.T) {
	mock := NewMockProvider("per-model")
	rl := NewRateLimitedProvider(mock, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	for _, model := range []string{"analysis-model", "assistant-model"} {
		if _, err := rl.Complete(ctx, CompletionRequest{Model: model}); err != nil {
			t.Fatalf("%s: unexpected error: %v", model, err)
		}
	}
	if _, err := rl.Complete(ctx, CompletionRequest{Model: "analysis-model"}); err == nil {
		t.Error("expected second analysis-model request to be throttled")
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", mock.CallCount())
	}
}

func TestRateLimiterRecordsWait(t *testing.T) {
	mock := NewMockProvider("throttle-metrics")
	rl := NewRateLimitedProvider(mock, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Model: "m"}
	if _, err := rl.Complete(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.RateLimitedRequestsTotal.WithLabelValues("throttle-metrics", "m")); got != 0 {
		t.Fatalf("expected no throttled requests yet, got %v", got)
	}
	if _, err := rl.Complete(ctx, req); err == nil {
		t.Fatal("expected throttled request to hit the context deadline")
	}
	if got := testutil.ToFloat64(metrics.RateLimitedRequestsTotal.WithLabelValues("throttle-metrics", "m")); got != 1 {
		t.Errorf("expected 1 throttled request, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RateLimitWaitSeconds.WithLabelValues("throttle-metrics", "m")); got < 0.1 {
		t.Errorf("expected recorded wait near the deadline, got %vs", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("unlimited")
	if rl := NewRateLimitedProvider(mock, 0); rl != Provider(mock) {
		t.Error("expected rpm 0 to return the provider unwrapped")
	}
}

func TestEstimateCostKnownModels(t *testing.T) {
	tests := []struct {
		model        string
		inputTokens  int
		outputTokens int
		wantMin      float64
	}{
		{"claude-sonnet-4-5-20250929", 1000, 500, 0.0},
		{"gpt-4o", 1000, 500, 0.0},
		{"gemini-3-pro-preview", 1000, 500, 0.0},
		{"gemini-3-flash-preview", 1000, 500, 0.0},
	}

	for _, tt := range tests {
		cost := EstimateCost(tt.model, tt.inputTokens, tt.outputTokens)
		if cost <= tt.wantMin {
			t.Errorf("EstimateCost(%q, %d, %d) = %f, expected > %f",
				tt.model, tt.inputTokens, tt.outputTokens, cost, tt.wantMin)
		}
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	cost := EstimateCost("unknown-model", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// claude-sonnet-4-5: $3/1M input, $15/1M output
	// 1M input + 1M output = $3 + $15 = $18
	cost := EstimateCost("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000)
	expected := 18.0
	if cost < expected-0.01 || cost > expected+0.01 {
		t.Errorf("expected cost ~$%.2f, got $%.2f", expected, cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		got := EstimateTokens(tt.text)
		if got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" {
		t.Errorf("RoleSystem = %q, want 'system'", RoleSystem)
	}
	if RoleUser != "user" {
		t.Errorf("RoleUser = %q, want 'user'", RoleUser)
	}
	if RoleAssistant != "assistant" {
		t.Errorf("RoleAssistant = %q, want 'assistant'", RoleAssistant)
	}
}

func TestFactoryGoogleFallsBackToGeminiKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "test-key")
	provider, err := NewProvider("google", "gemini-3-flash-preview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*GoogleProvider); !ok {
		t.Fatalf("expected *GoogleProvider, got %T", provider)
	}
}

func TestSystemPromptJoinsSystemMessages(t *testing.T) {
	req := CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "first"},
			{Role: RoleUser, Content: "question"},
			{Role: RoleSystem, Content: "second"},
		},
	}
	if got := req.SystemPrompt(); got != "first\n\nsecond" {
		t.Errorf("SystemPrompt() = %q", got)
	}
	if req.wantsJSON() {
		t.Error("plain request should not want JSON")
	}
	req.Schema = &Schema{Type: TypeObject}
	if !req.wantsJSON() {
		t.Error("schema request should want JSON")
	}
}

func testSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"state": {Type: TypeString, Enum: []string{"a", "b"}},
			"score": {Type: TypeNumber, Minimum: Float(-1), Maximum: Float(1)},
			"tags":  {Type: TypeArray, Items: &Schema{Type: TypeString}},
		},
		Order:    []string{"state", "score"},
		Required: []string{"state"},
	}
}

func TestSchemaPropertyNamesHonourOrder(t *testing.T) {
	names := testSchema().PropertyNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %v", names)
	}
	if names[0] != "state" || names[1] != "score" || names[2] != "tags" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestSchemaJSONSchema(t *testing.T) {
	doc := testSchema().JSONSchema()
	if doc["type"] != "object" {
		t.Errorf("type = %v, want object", doc["type"])
	}
	props := doc["properties"].(map[string]any)
	state := props["state"].(map[string]any)
	if enum := state["enum"].([]string); len(enum) != 2 {
		t.Errorf("enum = %v", enum)
	}
	score := props["score"].(map[string]any)
	if score["minimum"] != -1.0 || score["maximum"] != 1.0 {
		t.Errorf("bounds = %v..%v", score["minimum"], score["maximum"])
	}
	tags := props["tags"].(map[string]any)
	if tags["items"].(map[string]any)["type"] != "string" {
		t.Errorf("items = %v", tags["items"])
	}

	raw, err := jsonSchemaDoc(doc).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if len(raw) == 0 {
		t.Error("expected non-empty JSON")
	}
}

func TestSchemaStrictJSONSchema(t *testing.T) {
	doc := testSchema().StrictJSONSchema()
	if doc["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v, want false", doc["additionalProperties"])
	}
	required := doc["required"].([]string)
	if len(required) != 3 {
		t.Fatalf("strict mode must require every property, got %v", required)
	}

	props := doc["properties"].(map[string]any)
	state := props["state"].(map[string]any)
	if state["type"] != "string" {
		t.Errorf("required enum must stay non-nullable, type = %v", state["type"])
	}
	score := props["score"].(map[string]any)
	if types, ok := score["type"].([]string); !ok || len(types) != 2 || types[1] != "null" {
		t.Errorf("optional number must be nullable, type = %v", score["type"])
	}
	tags := props["tags"].(map[string]any)
	if tags["items"].(map[string]any)["type"] != "string" {
		t.Errorf("array items must not be nullable, items = %v", tags["items"])
	}

	optionalEnum := &Schema{
		Type:       TypeObject,
		Properties: map[string]*Schema{"mode": {Type: TypeString, Enum: []string{"x"}}},
	}
	mode := optionalEnum.StrictJSONSchema()["properties"].(map[string]any)["mode"].(map[string]any)
	enum := mode["enum"].([]any)
	if len(enum) != 2 || enum[1] != nil {
		t.Errorf("nullable enum must admit null, enum = %v", enum)
	}
}

func TestOpenAIProviderSendsStrictSchema(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"state\":\"a\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	p := newOpenAIProviderWithConfig(cfg, "gpt-4o")

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:   []Message{{Role: RoleUser, Content: "go"}},
		Schema:     testSchema(),
		SchemaName: "shape",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"state":"a"}` || resp.InputTokens != 12 {
		t.Errorf("unexpected response %+v", resp)
	}

	format, ok := body["response_format"].(map[string]any)
	if !ok {
		t.Fatalf("missing response_format in %v", body)
	}
	if format["type"] != "json_schema" {
		t.Errorf("response_format.type = %v", format["type"])
	}
	js := format["json_schema"].(map[string]any)
	if js["strict"] != true {
		t.Errorf("json_schema.strict = %v, want true", js["strict"])
	}
	schema := js["schema"].(map[string]any)
	if schema["additionalProperties"] != false {
		t.Errorf("schema must close additionalProperties, got %v", schema["additionalProperties"])
	}
	if req := schema["required"].([]any); len(req) != 3 {
		t.Errorf("schema must require every property, got %v", req)
	}
}

func TestToGenAISchema(t *testing.T) {
	gs := toGenAISchema(testSchema())
	if string(gs.Type) != "OBJECT" {
		t.Errorf("type = %q", gs.Type)
	}
	if len(gs.Properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(gs.Properties))
	}
	if gs.PropertyOrdering[0] != "state" {
		t.Errorf("ordering = %v", gs.PropertyOrdering)
	}
	if gs.Properties["tags"].Items == nil {
		t.Error("array items not converted")
	}
	if *gs.Properties["score"].Minimum != -1 {
		t.Error("minimum not carried over")
	}
}

func TestInstrumentedProviderPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	p := NewInstrumentedProvider(mock, nil)

	resp, err := p.Complete(context.Background(), CompletionRequest{Model: "mock-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if p.Name() != "test" {
		t.Errorf("expected name 'test', got %q", p.Name())
	}

	mock.Err = errors.New("boom")
	if _, err := p.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Error("expected error to propagate")
	}
}
