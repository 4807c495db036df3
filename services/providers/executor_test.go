package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticCredentials struct {
	key string
}

func (s staticCredentials) Credential(Descriptor) string { return s.key }

type countingQuota struct {
	records []string
}

func (c *countingQuota) Record(providerID string) {
	c.records = append(c.records, providerID)
}

func openAIDescriptor(baseURL string) Descriptor {
	return Descriptor{
		ID:           "testprov",
		Name:         "Test Provider",
		BaseURL:      baseURL,
		Models:       []string{"test-default", "test-alt"},
		Priority:     1,
		Capabilities: CapabilitySet{CapabilityChat},
		Pricing:      Pricing{CostPer1KTokens: 0.002, Currency: "USD"},
		Dialect:      DialectOpenAI,
	}
}

func openAISuccessBody(totalTokens int) string {
	return `{
		"id": "chatcmpl-1",
		"model": "test-default",
		"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 500, "completion_tokens": 1000, "total_tokens": ` + jsonInt(totalTokens) + `}
	}`
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestExecutor_Success(t *testing.T) {
	var gotAuth string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAISuccessBody(1500)))
	}))
	defer server.Close()

	quota := &countingQuota{}
	executor := NewExecutor(staticCredentials{key: "sk-test"}, quota, zap.NewNop())

	d := openAIDescriptor(server.URL)
	result, err := executor.Execute(context.Background(), d, RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "testprov", result.ProviderID)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, 1500, result.Usage.TotalTokens)
	// 1500 tokens at 0.002 per 1K
	assert.InDelta(t, 0.003, result.Usage.Cost, 1e-9)
	assert.Equal(t, "USD", result.Usage.Currency)
	assert.Equal(t, []string{"testprov"}, quota.records)
}

func TestExecutor_AnthropicHeaders(t *testing.T) {
	var gotKey, gotVersion, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "model": "test-default",
			"content": [{"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	d := openAIDescriptor(server.URL)
	d.Dialect = DialectAnthropic

	executor := NewExecutor(staticCredentials{key: "sk-ant"}, &countingQuota{}, zap.NewNop())
	_, err := executor.Execute(context.Background(), d, RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", gotKey)
	assert.Equal(t, anthropicVersion, gotVersion)
	assert.Equal(t, "/v1/messages", gotPath)
}

func TestExecutor_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	quota := &countingQuota{}
	executor := NewExecutor(staticCredentials{}, quota, zap.NewNop())

	_, err := executor.Execute(context.Background(), openAIDescriptor(server.URL), RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Contains(t, provErr.Message, "rate limited")

	// the failed attempt still consumed capacity
	assert.Len(t, quota.records, 1)
}

func TestExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(openAISuccessBody(10)))
	}))
	defer server.Close()

	executor := NewExecutor(staticCredentials{}, &countingQuota{}, zap.NewNop(),
		WithCallTimeout(30*time.Millisecond))

	_, err := executor.Execute(context.Background(), openAIDescriptor(server.URL), RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "testprov", timeoutErr.ProviderID)
}

func TestExecutor_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	executor := NewExecutor(staticCredentials{}, &countingQuota{}, zap.NewNop())

	_, err := executor.Execute(context.Background(), openAIDescriptor(server.URL), RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestExecutor_ModelResolution(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_, _ = w.Write([]byte(openAISuccessBody(10)))
	}))
	defer server.Close()

	executor := NewExecutor(staticCredentials{}, &countingQuota{}, zap.NewNop())
	d := openAIDescriptor(server.URL)

	// supported model is forwarded as-is
	_, err := executor.Execute(context.Background(), d, RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-alt",
	})
	require.NoError(t, err)
	assert.Equal(t, "test-alt", gotModel)

	// unknown model falls back to the provider default instead of failing
	_, err = executor.Execute(context.Background(), d, RequestSpec{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "someone-elses-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "test-default", gotModel)
}
