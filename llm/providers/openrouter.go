package providers

import (
	"net/http"
	"os"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// Attribution headers sent to OpenRouter when not overridden by env.
const (
	defaultSiteURL  = "http://localhost:5000"
	defaultSiteName = "ScholarForge"
)

// OpenRouterProvider routes requests through OpenRouter, which serves every
// model in the default line-up.
type OpenRouterProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OpenRouterProvider{})
}

// Name returns the provider identifier.
func (o *OpenRouterProvider) Name() string {
	return "openrouter"
}

// BuildURL constructs the OpenRouter chat completions endpoint.
func (o *OpenRouterProvider) BuildURL(baseURL string) string {
	return chatURL(baseURL, "https://openrouter.ai/api/v1")
}

// SetHeaders adds the bearer token and OpenRouter attribution headers.
func (o *OpenRouterProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv(o.CredentialEnv()); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("HTTP-Referer", envOr("OPENROUTER_SITE_URL", defaultSiteURL))
	req.Header.Set("X-Title", envOr("OPENROUTER_SITE_NAME", defaultSiteName))
}

// CredentialEnv names the OpenRouter key variable.
func (o *OpenRouterProvider) CredentialEnv() string {
	return "OPENROUTER_API_KEY"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
