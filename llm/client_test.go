package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hassan-khan-web/ScholarForge/llm"
	_ "github.com/hassan-khan-web/ScholarForge/llm/providers" // Register providers
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps retry waits in the millisecond range.
var fastRetry = llm.RetryConfig{
	MaxAttempts:       3,
	RateLimitRetries:  1,
	MalformedRetries:  1,
	BackoffBase:       5 * time.Millisecond,
	BackoffMultiplier: 2.0,
	MaxBackoff:        20 * time.Millisecond,
}

func writeCompletion(w http.ResponseWriter, modelName, content string) {
	resp := map[string]any{
		"id":    "chatcmpl-123",
		"model": modelName,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// chainRegistry builds a writer role whose chain is the given servers in order.
func chainRegistry(servers map[string]*httptest.Server, order ...string) *model.Registry {
	endpoints := make(map[string]*model.EndpointConfig, len(servers))
	for name, srv := range servers {
		endpoints[name] = &model.EndpointConfig{Provider: "ollama", URL: srv.URL, Model: name}
	}
	return model.NewRegistry(
		map[model.Role]*model.RoleConfig{
			model.RoleWriter: {Preferred: order[:1], Fallback: order[1:]},
		},
		endpoints,
	)
}

func userMessage(s string) []llm.Message {
	return []llm.Message{{Role: "user", Content: s}}
}

func TestClient_Complete_Success(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeCompletion(w, "primary", "<think>plan the answer</think>\n```markdown\n## Orbits\nPlanets orbit the Sun.\n```")
	}))
	defer server.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": server}, "primary"),
		llm.WithRetryConfig(fastRetry))

	resp, err := client.Complete(context.Background(), llm.Request{
		Role:     model.RoleWriter,
		Messages: []llm.Message{{Role: "system", Content: "You are a Report Writer."}, {Role: "user", Content: "Write."}},
	})

	require.NoError(t, err)
	assert.Equal(t, "## Orbits\nPlanets orbit the Sun.", resp.Content)
	assert.Equal(t, "primary", resp.Endpoint)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.RequestID)

	messages := gotBody["messages"].([]any)
	system := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "You are a Report Writer.")
	assert.Contains(t, system, "No code fences")
}

func TestClient_Complete_FallbackOrder(t *testing.T) {
	var primaryCalls, backupCalls, lastCalls atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupCalls.Add(1)
		writeCompletion(w, "backup", "from backup")
	}))
	defer backup.Close()
	last := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastCalls.Add(1)
		writeCompletion(w, "last", "from last")
	}))
	defer last.Close()

	registry := chainRegistry(map[string]*httptest.Server{
		"primary": primary, "backup": backup, "last": last,
	}, "primary", "backup", "last")
	client := llm.NewClient(registry, llm.WithRetryConfig(fastRetry))

	resp, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, int32(1), primaryCalls.Load(), "server errors advance without retrying the same model")
	assert.Equal(t, int32(1), backupCalls.Load())
	assert.Equal(t, int32(0), lastCalls.Load())
	assert.Equal(t, 2, resp.Attempts)
}

func TestClient_Complete_AttemptCap(t *testing.T) {
	var total atomic.Int32
	failing := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			total.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
	}
	servers := map[string]*httptest.Server{"a": failing(), "b": failing(), "c": failing(), "d": failing()}
	for _, s := range servers {
		defer s.Close()
	}

	client := llm.NewClient(chainRegistry(servers, "a", "b", "c", "d"), llm.WithRetryConfig(fastRetry))

	_, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.Error(t, err)
	var exhausted *llm.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, []string{"a", "b", "c"}, exhausted.Tried)
	assert.Equal(t, int32(3), total.Load(), "never more calls than the attempt cap")
}

func TestClient_Complete_RateLimitRetriesSameModel(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "primary", "after rate limit")
	}))
	defer server.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backup should not be called")
	}))
	defer backup.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": server, "backup": backup}, "primary", "backup"),
		llm.WithRetryConfig(fastRetry))

	resp, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.NoError(t, err)
	assert.Equal(t, "after rate limit", resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Complete_MalformedRetriedOnceThenAdvances(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		writeCompletion(w, "primary", "<think>only thoughts</think>")
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "backup", "real content")
	}))
	defer backup.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": primary, "backup": backup}, "primary", "backup"),
		llm.WithRetryConfig(fastRetry))

	resp, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.NoError(t, err)
	assert.Equal(t, "real content", resp.Content)
	assert.Equal(t, int32(2), primaryCalls.Load())
	assert.Equal(t, 3, resp.Attempts)
}

func TestClient_Complete_FatalStopsChain(t *testing.T) {
	var backupCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupCalls.Add(1)
		writeCompletion(w, "backup", "unused")
	}))
	defer backup.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": primary, "backup": backup}, "primary", "backup"),
		llm.WithRetryConfig(fastRetry))

	_, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.Error(t, err)
	assert.Equal(t, llm.ClassFatal, llm.ClassOf(err))
	assert.Equal(t, int32(0), backupCalls.Load())
}

func TestClient_Complete_PerCallTimeoutAdvances(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "fast", "quick answer")
	}))
	defer fast.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"slow": slow, "fast": fast}, "slow", "fast"),
		llm.WithRetryConfig(fastRetry),
		llm.WithCallTimeout(50*time.Millisecond))

	resp, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.NoError(t, err)
	assert.Equal(t, "quick answer", resp.Content)
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": server}, "primary"),
		llm.WithRetryConfig(fastRetry))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	tests := []struct {
		name    string
		req     llm.Request
		wantErr string
	}{
		{
			name:    "no role or model",
			req:     llm.Request{Messages: userMessage("hi")},
			wantErr: "role or model is required",
		},
		{
			name:    "no messages",
			req:     llm.Request{Role: model.RoleWriter},
			wantErr: "at least one message is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Complete(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_Invoke_SentinelOnExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"only": server}, "only"),
		llm.WithRetryConfig(fastRetry))

	res := client.Invoke(context.Background(), llm.Call{Role: model.RoleWriter, System: "s", User: "u"})

	assert.True(t, res.Failed())
	assert.Equal(t, "[Agent Failure: writer]", res.Text())
	assert.True(t, llm.IsFailureText(res.Text()))
}

func TestClient_Invoke_PinnedModel(t *testing.T) {
	var calls atomic.Int32
	pinned := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeCompletion(w, "pinned", "panel draft")
	}))
	defer pinned.Close()
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("role chain should be bypassed")
	}))
	defer other.Close()

	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"pinned": pinned, "other": other}, "other"),
		llm.WithRetryConfig(fastRetry))

	res := client.Invoke(context.Background(), llm.Call{Role: model.RoleWriter, Model: "pinned", System: "s", User: "u", Temperature: 0.7})

	require.False(t, res.Failed())
	assert.Equal(t, "panel draft", res.Text())
	assert.Equal(t, "pinned", res.Model)
	assert.Equal(t, int32(1), calls.Load())
}

type recordingObserver struct {
	mu     sync.Mutex
	events []llm.CallEvent
}

func (o *recordingObserver) ObserveCall(e llm.CallEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func TestClient_ObserverSeesEveryAttempt(t *testing.T) {
	var n atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "primary", "ok")
	}))
	defer server.Close()

	obs := &recordingObserver{}
	client := llm.NewClient(chainRegistry(map[string]*httptest.Server{"primary": server}, "primary"),
		llm.WithRetryConfig(fastRetry), llm.WithObserver(obs))

	_, err := client.Complete(context.Background(), llm.Request{Role: model.RoleWriter, Messages: userMessage("go")})
	require.NoError(t, err)

	require.Len(t, obs.events, 2)
	assert.Equal(t, llm.ClassRateLimited, obs.events[0].Class)
	assert.Equal(t, llm.ClassNone, obs.events[1].Class)
	assert.Equal(t, 2, obs.events[1].Attempt)
}

func TestClient_CheckCredentials(t *testing.T) {
	registry := model.NewDefaultRegistry()
	client := llm.NewClient(registry)

	t.Setenv("OPENROUTER_API_KEY", "")
	err := client.CheckCredentials(model.AllRoles()...)
	var credErr *llm.CredentialError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, "OPENROUTER_API_KEY", credErr.EnvVar)

	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	assert.NoError(t, client.CheckCredentials(model.AllRoles()...))
}
