package model

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages model selection based on roles.
// It maps roles to preferred models with fallback chains, and holds the
// council panel used for parallel drafting.
type Registry struct {
	mu        sync.RWMutex
	roles     map[Role]*RoleConfig
	endpoints map[string]*EndpointConfig
	panel     []string
	defaults  *DefaultsConfig
	health    *healthState
}

// RoleConfig defines model preferences for a role.
type RoleConfig struct {
	// Description explains what this role is for.
	Description string `json:"description" yaml:"description"`

	// Preferred lists models in order of preference.
	// The first available model is used.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup models if all preferred fail.
	Fallback []string `json:"fallback" yaml:"fallback"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the model provider (openrouter, openai, ollama, anthropic).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the actual model identifier to send to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the completion token limit sent with each request.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DefaultsConfig holds default model settings.
type DefaultsConfig struct {
	// Model is the default model when no role matches.
	Model string `json:"model" yaml:"model"`
}

// RegistryConfig is the serialized form of a registry, embedded in the
// application config under "models".
type RegistryConfig struct {
	Roles     map[string]*RoleConfig     `json:"roles" yaml:"roles"`
	Endpoints map[string]*EndpointConfig `json:"endpoints" yaml:"endpoints"`
	Panel     []string                   `json:"panel,omitempty" yaml:"panel,omitempty"`
	Defaults  *DefaultsConfig            `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// NewRegistry creates a new model registry with the given configuration.
func NewRegistry(roles map[Role]*RoleConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		roles:     roles,
		endpoints: endpoints,
		defaults: &DefaultsConfig{
			Model: "default",
		},
	}
}

// NewFromConfig builds a registry from its serialized form.
// Unknown role names are kept as-is so custom roles can be configured.
func NewFromConfig(cfg *RegistryConfig) *Registry {
	roles := make(map[Role]*RoleConfig, len(cfg.Roles))
	for k, v := range cfg.Roles {
		roles[Role(k)] = v
	}

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = &DefaultsConfig{Model: "default"}
	}

	endpoints := cfg.Endpoints
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}

	return &Registry{
		roles:     roles,
		endpoints: endpoints,
		panel:     append([]string(nil), cfg.Panel...),
		defaults:  defaults,
	}
}

// DefaultRegistryConfig returns the OpenRouter model line-up used when no
// configuration is provided.
func DefaultRegistryConfig() *RegistryConfig {
	openrouter := func(model string) *EndpointConfig {
		return &EndpointConfig{Provider: "openrouter", Model: model, MaxTokens: 5000}
	}
	return &RegistryConfig{
		Roles: map[string]*RoleConfig{
			string(RoleDirector): {
				Description: "Research decisions, summaries and report planning",
				Preferred:   []string{"qwen3-coder"},
				Fallback:    []string{"devstral"},
			},
			string(RoleWriter): {
				Description: "Section and bundle writing",
				Preferred:   []string{"qwen3-coder"},
				Fallback:    []string{"devstral"},
			},
			string(RoleSynthesizer): {
				Description: "Merging council drafts",
				Preferred:   []string{"gemini-flash"},
				Fallback:    []string{"qwen3-coder"},
			},
			string(RoleFactChecker): {
				Description: "Critique and claim verification",
				Preferred:   []string{"trinity-large"},
				Fallback:    []string{"gemini-flash"},
			},
			string(RoleArtisan): {
				Description: "Rewriting for polish and originality",
				Preferred:   []string{"gemma-3n"},
				Fallback:    []string{"gemini-flash"},
			},
		},
		Endpoints: map[string]*EndpointConfig{
			"qwen3-coder":   openrouter("qwen/qwen3-coder:free"),
			"devstral":      openrouter("mistralai/devstral-2512:free"),
			"gemini-flash":  openrouter("google/gemini-2.0-flash-001"),
			"r1t-chimera":   openrouter("tngtech/tng-r1t-chimera:free"),
			"nemotron-nano": openrouter("nvidia/nemotron-3-nano-30b-a3b:free"),
			"gemma-3n":      openrouter("google/gemma-3n-e2b-it:free"),
			"trinity-large": openrouter("arcee-ai/trinity-large-preview:free"),
		},
		Panel: []string{
			"gemini-flash",
			"r1t-chimera",
			"nemotron-nano",
			"gemma-3n",
			"trinity-large",
		},
		Defaults: &DefaultsConfig{Model: "qwen3-coder"},
	}
}

// NewDefaultRegistry creates a registry with the default model line-up.
func NewDefaultRegistry() *Registry {
	return NewFromConfig(DefaultRegistryConfig())
}

// Resolve returns the preferred model for a role.
func (r *Registry) Resolve(role Role) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.roles[role]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Model
}

// GetFallbackChain returns all models for a role in order of preference.
func (r *Registry) GetFallbackChain(role Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.roles[role]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	return []string{r.defaults.Model}
}

// Chain returns the role's model chain filtered to available endpoints.
func (r *Registry) Chain(role Role) ModelChain {
	return NewChain(role, r.GetAvailableFallbackChain(role)...)
}

// Panel returns the endpoints used for parallel council drafting.
// An unconfigured panel falls back to the writer chain.
func (r *Registry) Panel() []string {
	r.mu.RLock()
	panel := append([]string(nil), r.panel...)
	r.mu.RUnlock()

	if len(panel) == 0 {
		return r.GetFallbackChain(RoleWriter)
	}
	return panel
}

// GetEndpoint returns the endpoint configuration for a model name.
// Returns nil if the model is not configured.
func (r *Registry) GetEndpoint(modelName string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[modelName]
}

// ListRoles returns all configured roles, sorted.
func (r *Registry) ListRoles() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]Role, 0, len(r.roles))
	for role := range r.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers returns the distinct providers referenced by the given endpoints.
func (r *Registry) Providers(endpoints []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, name := range endpoints {
		ep, ok := r.endpoints[name]
		if !ok || seen[ep.Provider] {
			continue
		}
		seen[ep.Provider] = true
		out = append(out, ep.Provider)
	}
	return out
}

// Validate checks that every role and panel entry references a configured
// endpoint.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for role, cfg := range r.roles {
		if len(cfg.Preferred)+len(cfg.Fallback) == 0 {
			return fmt.Errorf("role %q has no models", role)
		}
		for _, name := range append(append([]string(nil), cfg.Preferred...), cfg.Fallback...) {
			if _, ok := r.endpoints[name]; !ok {
				return fmt.Errorf("role %q references unknown endpoint %q", role, name)
			}
		}
	}
	for _, name := range r.panel {
		if _, ok := r.endpoints[name]; !ok {
			return fmt.Errorf("panel references unknown endpoint %q", name)
		}
	}
	for name, ep := range r.endpoints {
		if ep.Provider == "" || ep.Model == "" {
			return fmt.Errorf("endpoint %q requires provider and model", name)
		}
	}
	return nil
}

// Fork returns a registry that shares this one's roles, endpoints and panel
// but tracks endpoint health on its own. Each report run works on a fork so
// an open circuit never outlives the run that opened it.
func (r *Registry) Fork() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fork := &Registry{
		roles:     r.roles,
		endpoints: r.endpoints,
		panel:     append([]string(nil), r.panel...),
		defaults:  r.defaults,
	}
	if r.health != nil {
		r.health.mu.Lock()
		fork.health = newHealthState(r.health.config)
		r.health.mu.Unlock()
	}
	return fork
}
