// Package llm provides the model gateway: a provider-agnostic client with
// retry, backoff and ordered fallback across a role's model chain.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hassan-khan-web/ScholarForge/model"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is a provider-agnostic LLM client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	callTimeout time.Duration
	logger      *slog.Logger
	observer    Observer

	// sleep waits between same-model retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Role selects the model chain from the registry.
	Role model.Role

	// Model pins the call to one registry endpoint instead of the role chain.
	Model string

	// Messages is the chat history to send to the LLM.
	Messages []Message

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint setting.
	MaxTokens int

	// JSON asks for a bare JSON object instead of Markdown.
	JSON bool
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this logical call in logs and metrics.
	RequestID string

	// Content is the generated text, sanitized.
	Content string

	// Model is the provider model identifier that answered.
	Model string

	// Endpoint is the registry endpoint name that answered.
	Endpoint string

	// Attempts is the number of provider calls the logical call used.
	Attempts int

	// Usage contains detailed token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithCallTimeout sets the deadline applied to each provider attempt.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.callTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithObserver registers a hook that sees every provider attempt.
func WithObserver(o Observer) ClientOption {
	return func(client *Client) {
		client.observer = o
	}
}

// NewClient creates a new LLM client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		callTimeout: 120 * time.Second,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for LLM responses
		},
		logger:   slog.Default(),
		observer: nopObserver{},
		sleep:    sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Registry returns the model registry backing the client.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// CheckCredentials verifies that every provider used by the given roles and
// the council panel has its API key set.
func (c *Client) CheckCredentials(roles ...model.Role) error {
	var endpoints []string
	for _, role := range roles {
		endpoints = append(endpoints, c.registry.GetFallbackChain(role)...)
	}
	endpoints = append(endpoints, c.registry.Panel()...)

	for _, name := range c.registry.Providers(endpoints) {
		provider := GetProvider(name)
		if provider == nil {
			return fmt.Errorf("unknown provider: %s", name)
		}
		env := provider.CredentialEnv()
		if env != "" && strings.TrimSpace(os.Getenv(env)) == "" {
			return &CredentialError{Provider: name, EnvVar: env}
		}
	}
	return nil
}

// Complete sends a completion request, walking the role's model chain under
// the retry policy. It returns an *ExhaustedError when every permitted
// attempt failed, or the fatal error that stopped the walk.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Role == "" && req.Model == "" {
		return nil, fmt.Errorf("role or model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()

	var chain model.ModelChain
	if req.Model != "" {
		chain = model.NewChain(req.Role, req.Model)
	} else {
		chain = c.registry.Chain(req.Role)
	}
	if chain.Len() == 0 {
		return nil, fmt.Errorf("no models configured for role %s", req.Role)
	}

	messages := withDirective(req.Messages, req.JSON)

	var (
		st      AttemptState
		lastErr error
		tried   []string
	)

	for {
		name, ok := SelectNextModel(chain, st)
		if !ok {
			break
		}

		endpoint := c.registry.GetEndpoint(name)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", name)
			st = st.advance()
			continue
		}
		if len(tried) == 0 || tried[len(tried)-1] != name {
			tried = append(tried, name)
		}

		started := time.Now()
		resp, err := c.attempt(ctx, endpoint, messages, req)
		class := ClassOf(err)

		c.observer.ObserveCall(CallEvent{
			RequestID: requestID,
			Role:      req.Role,
			Endpoint:  name,
			Provider:  endpoint.Provider,
			Attempt:   st.Attempt + 1,
			Class:     class,
			Duration:  time.Since(started),
			Err:       err,
		})

		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			resp.RequestID = requestID
			resp.Endpoint = name
			resp.Attempts = st.Attempt + 1
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, &ExhaustedError{Role: string(req.Role), Attempts: st.Attempt + 1, Tried: tried, Last: ctx.Err()}
		}

		switch class {
		case ClassServerError, ClassTimeout, ClassNetwork:
			c.registry.MarkEndpointFailure(name)
		}

		next := NextAttempt(c.retryConfig, st, class)
		c.logger.Warn("Model attempt failed",
			"request_id", requestID,
			"role", req.Role,
			"model", name,
			"attempt", next.Attempt,
			"class", class.String(),
			"error", err)

		if class == ClassFatal {
			return nil, err
		}

		if next.SameModel(st) {
			var retryAfter time.Duration
			var ce *CallError
			if errors.As(err, &ce) {
				retryAfter = ce.RetryAfter
			}
			wait := c.retryConfig.backoff(class, next.Retries, retryAfter)
			c.logger.Debug("Retrying same model", "model", name, "backoff", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &ExhaustedError{Role: string(req.Role), Attempts: next.Attempt, Tried: tried, Last: err}
			}
		}
		st = next
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable endpoint in chain %v", chain.Endpoints)
	}
	return nil, &ExhaustedError{Role: string(req.Role), Attempts: st.Attempt, Tried: tried, Last: lastErr}
}

// attempt performs one provider call under the per-call timeout and checks
// that the sanitized content is not empty.
func (c *Client) attempt(ctx context.Context, ep *model.EndpointConfig, messages []Message, req Request) (*Response, error) {
	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = ep.MaxTokens
	}

	resp, err := c.doRequest(callCtx, ep, messages, req.Temperature, maxTokens)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, newCallError(ClassTimeout, 0, fmt.Errorf("model %s timed out: %w", ep.Model, err))
		}
		return nil, err
	}

	resp.Content = Sanitize(resp.Content)
	if resp.Content == "" {
		return nil, newCallError(ClassMalformed, http.StatusOK, fmt.Errorf("model %s returned empty content", ep.Model))
	}
	return resp, nil
}

// doRequest executes a single HTTP request to the LLM endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, messages []Message, temperature *float64, maxTokens int) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)

	body, err := provider.BuildRequestBody(ep.Model, messages, temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newCallError(ClassOf(err), 0, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, newCallError(ClassNetwork, httpResp.StatusCode, fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, httpResp.Header, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, newCallError(ClassMalformed, httpResp.StatusCode, err)
	}
	return resp, nil
}

// classifyHTTPError maps a non-200 status to a failure class.
func classifyHTTPError(statusCode int, header http.Header, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		ce := newCallError(ClassRateLimited, statusCode, err)
		ce.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
		return ce
	case statusCode == http.StatusRequestTimeout:
		return newCallError(ClassTimeout, statusCode, err)
	case statusCode >= 500:
		return newCallError(ClassServerError, statusCode, err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		return newCallError(ClassFatal, statusCode, err)
	default:
		return newCallError(ClassBadRequest, statusCode, err)
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
// Values above one minute are ignored so a hostile header cannot stall a run.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 || secs > 60 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
