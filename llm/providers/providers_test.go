package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersRegistered(t *testing.T) {
	for _, name := range []string{"openrouter", "openai", "ollama", "anthropic"} {
		assert.NotNil(t, llm.GetProvider(name), name)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		baseURL  string
		want     string
	}{
		{"openrouter default", &OpenRouterProvider{}, "", "https://openrouter.ai/api/v1/chat/completions"},
		{"openai default", &OpenAIProvider{}, "", "https://api.openai.com/v1/chat/completions"},
		{"ollama default", &OllamaProvider{}, "", "http://localhost:11434/v1/chat/completions"},
		{"trailing slash handled", &OpenAIProvider{}, "https://proxy.local/v1/", "https://proxy.local/v1/chat/completions"},
		{"already has endpoint", &OllamaProvider{}, "http://gpu:8080/v1/chat/completions", "http://gpu:8080/v1/chat/completions"},
		{"anthropic default", &AnthropicProvider{}, "", "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.BuildURL(tt.baseURL))
		})
	}
}

func TestOpenRouterProvider_SetHeaders(t *testing.T) {
	p := &OpenRouterProvider{}

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
		t.Setenv("OPENROUTER_SITE_URL", "")
		t.Setenv("OPENROUTER_SITE_NAME", "")

		req, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
		p.SetHeaders(req)

		assert.Equal(t, "Bearer sk-or-test", req.Header.Get("Authorization"))
		assert.Equal(t, "http://localhost:5000", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "ScholarForge", req.Header.Get("X-Title"))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("OPENROUTER_SITE_URL", "https://reports.example.com")
		t.Setenv("OPENROUTER_SITE_NAME", "Reports")

		req, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
		p.SetHeaders(req)

		assert.Equal(t, "https://reports.example.com", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Reports", req.Header.Get("X-Title"))
	})
}

func TestCredentialEnv(t *testing.T) {
	assert.Equal(t, "OPENROUTER_API_KEY", (&OpenRouterProvider{}).CredentialEnv())
	assert.Equal(t, "OPENAI_API_KEY", (&OpenAIProvider{}).CredentialEnv())
	assert.Equal(t, "ANTHROPIC_API_KEY", (&AnthropicProvider{}).CredentialEnv())
	assert.Empty(t, (&OllamaProvider{}).CredentialEnv())
}

func TestChatCompletions_BuildRequestBody(t *testing.T) {
	p := &OpenRouterProvider{}
	temp := 0.0

	body, err := p.BuildRequestBody("qwen/qwen3-coder:free", []llm.Message{
		{Role: "system", Content: "You are a Research Director."},
		{Role: "user", Content: "Decide."},
	}, &temp, 5000)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "qwen/qwen3-coder:free", req["model"])
	assert.Equal(t, 0.0, req["temperature"], "zero temperature must be sent")
	assert.Equal(t, 5000.0, req["max_tokens"])
	assert.Len(t, req["messages"], 2)

	body, err = p.BuildRequestBody("m", []llm.Message{{Role: "user", Content: "x"}}, nil, 0)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &req))
	_, hasMax := req["max_tokens"]
	_, hasTemp := req["temperature"]
	assert.False(t, hasMax)
	assert.False(t, hasTemp)
}

func TestChatCompletions_ParseResponse(t *testing.T) {
	p := &OpenAIProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "google/gemini-2.0-flash-001",
		"choices": [{"message": {"role": "assistant", "content": "Merged draft"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
	}`), "fallback-name")
	require.NoError(t, err)
	assert.Equal(t, "Merged draft", resp.Content)
	assert.Equal(t, "google/gemini-2.0-flash-001", resp.Model)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	_, err = p.ParseResponse([]byte(`{"choices": []}`), "m")
	assert.Error(t, err)

	_, err = p.ParseResponse([]byte(`{"error": {"code": 502, "message": "provider down"}}`), "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}

	body, err := p.BuildRequestBody("claude-sonnet-4-20250514", []llm.Message{
		{Role: "system", Content: "You are The Artisan."},
		{Role: "user", Content: "Polish this."},
	}, nil, 0)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "You are The Artisan.", req["system"])
	assert.Equal(t, 4096.0, req["max_tokens"])
	assert.Len(t, req["messages"], 1)

	_, err = p.BuildRequestBody("m", []llm.Message{{Role: "system", Content: "only system"}}, nil, 0)
	assert.Error(t, err)
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "Part one. "}, {"type": "tool_use"}, {"type": "text", "text": "Part two."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 8}
	}`), "m")
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}
