package providers

import (
	"net/http"
	"os"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// OllamaProvider talks to a local Ollama or vLLM server.
type OllamaProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	return chatURL(baseURL, "http://localhost:11434/v1")
}

// SetHeaders adds a bearer token when one is configured for a proxied server.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OLLAMA_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// CredentialEnv returns "" because local servers need no key.
func (o *OllamaProvider) CredentialEnv() string {
	return ""
}
