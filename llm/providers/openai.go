package providers

import (
	"net/http"
	"os"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// OpenAIProvider implements the OpenAI API or any compatible hosted service.
type OpenAIProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL constructs the OpenAI API endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	return chatURL(baseURL, "https://api.openai.com/v1")
}

// SetHeaders adds OpenAI authentication headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv(o.CredentialEnv()); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// CredentialEnv names the OpenAI key variable.
func (o *OpenAIProvider) CredentialEnv() string {
	return "OPENAI_API_KEY"
}
