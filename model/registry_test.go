package model

import (
	"reflect"
	"testing"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	roles := r.ListRoles()
	if len(roles) != 5 {
		t.Errorf("expected 5 roles, got %d", len(roles))
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("default registry should validate: %v", err)
	}

	if got := len(r.Panel()); got != 5 {
		t.Errorf("expected 5 panel models, got %d", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		role     Role
		expected string
	}{
		{RoleDirector, "qwen3-coder"},
		{RoleWriter, "qwen3-coder"},
		{RoleSynthesizer, "gemini-flash"},
		{RoleFactChecker, "trinity-large"},
		{RoleArtisan, "gemma-3n"},
		{Role("unknown"), "qwen3-coder"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := r.Resolve(tt.role); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.role, got, tt.expected)
			}
		})
	}
}

func TestRegistryGetFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(RoleDirector)
	want := []string{"qwen3-coder", "devstral"}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("GetFallbackChain(director) = %v, want %v", chain, want)
	}

	unknown := r.GetFallbackChain(Role("nope"))
	if len(unknown) != 1 || unknown[0] != "qwen3-coder" {
		t.Errorf("unknown role should fall back to default, got %v", unknown)
	}
}

func TestRegistryChainSkipsOpenCircuits(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: 1 << 40})

	r.MarkEndpointFailure("qwen3-coder")

	chain := r.Chain(RoleWriter)
	if chain.Role != RoleWriter {
		t.Errorf("chain role = %q", chain.Role)
	}
	if chain.Primary() != "devstral" {
		t.Errorf("expected devstral as primary after circuit opened, got %v", chain.Endpoints)
	}
}

func TestRegistryPanelFallsBackToWriterChain(t *testing.T) {
	r := NewRegistry(
		map[Role]*RoleConfig{RoleWriter: {Preferred: []string{"a"}, Fallback: []string{"b"}}},
		map[string]*EndpointConfig{
			"a": {Provider: "openrouter", Model: "x/a"},
			"b": {Provider: "openrouter", Model: "x/b"},
		},
	)

	if got := r.Panel(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Panel() = %v", got)
	}

	configured := NewFromConfig(&RegistryConfig{
		Roles:     map[string]*RoleConfig{"writer": {Preferred: []string{"a"}}},
		Endpoints: map[string]*EndpointConfig{"b": {Provider: "openrouter", Model: "x/b"}},
		Panel:     []string{"b"},
	})
	if got := configured.Panel(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("configured Panel() = %v", got)
	}
}

func TestRegistryValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RegistryConfig
		wantErr bool
	}{
		{
			name:    "default config",
			cfg:     DefaultRegistryConfig(),
			wantErr: false,
		},
		{
			name: "unknown endpoint in role",
			cfg: &RegistryConfig{
				Roles:     map[string]*RoleConfig{"writer": {Preferred: []string{"ghost"}}},
				Endpoints: map[string]*EndpointConfig{},
			},
			wantErr: true,
		},
		{
			name: "unknown endpoint in panel",
			cfg: &RegistryConfig{
				Endpoints: map[string]*EndpointConfig{"a": {Provider: "openrouter", Model: "m"}},
				Panel:     []string{"a", "ghost"},
			},
			wantErr: true,
		},
		{
			name: "endpoint without model",
			cfg: &RegistryConfig{
				Endpoints: map[string]*EndpointConfig{"a": {Provider: "openrouter"}},
			},
			wantErr: true,
		},
		{
			name: "role without models",
			cfg: &RegistryConfig{
				Roles: map[string]*RoleConfig{"writer": {}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFromConfig(tt.cfg).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryProviders(t *testing.T) {
	r := NewRegistry(nil, map[string]*EndpointConfig{
		"a": {Provider: "openrouter", Model: "x"},
		"b": {Provider: "ollama", Model: "y"},
		"c": {Provider: "openrouter", Model: "z"},
	})

	got := r.Providers([]string{"a", "b", "c", "missing"})
	want := []string{"openrouter", "ollama"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
}

func TestListEndpointsSorted(t *testing.T) {
	r := NewRegistry(nil, map[string]*EndpointConfig{
		"zeta":  {Provider: "ollama", Model: "z"},
		"alpha": {Provider: "openrouter", Model: "a"},
	})

	if got := r.ListEndpoints(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Errorf("ListEndpoints() = %v", got)
	}
}

func TestNewChainDropsBlanksAndDuplicates(t *testing.T) {
	c := NewChain(RoleArtisan, "a", "", "b", "a", "c")

	if !reflect.DeepEqual(c.Endpoints, []string{"a", "b", "c"}) {
		t.Errorf("NewChain endpoints = %v", c.Endpoints)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d", c.Len())
	}
	if _, ok := c.At(3); ok {
		t.Error("At(3) should be out of range")
	}
	if got, ok := c.At(1); !ok || got != "b" {
		t.Errorf("At(1) = %q, %v", got, ok)
	}
	if (ModelChain{}).Primary() != "" {
		t.Error("empty chain should have no primary")
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("fact-checker") != RoleFactChecker {
		t.Error("expected fact-checker to parse")
	}
	if ParseRole("poet") != "" {
		t.Error("unknown role should parse to empty")
	}
	if len(AllRoles()) != 5 {
		t.Error("expected five roles")
	}
}
