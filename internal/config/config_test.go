package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/memoryengine/internal/config"
	"github.com/MrWong99/memoryengine/pkg/provider/embeddings"
	"github.com/MrWong99/memoryengine/pkg/provider/llm"
	"github.com/MrWong99/memoryengine/pkg/types"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

storage:
  path: /var/lib/memoryengine/store.db

budget:
  total_bytes: 34359738368

domains:
  - name: code
    weight_profile: code_search
  - name: general
    weight_profile: semantic_search

providers:
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-large
  tagger:
    name: anthropic
    api_key: sk-ant-test
    model: claude-sonnet

mcp:
  servers:
    - name: tools
      transport: stdio
      command: /usr/local/bin/mcp-tools
    - name: web
      transport: streamable-http
      url: https://tools.example.com/mcp
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogLevelInfo)
	}
	if cfg.Storage.Path != "/var/lib/memoryengine/store.db" {
		t.Errorf("storage.path: got %q", cfg.Storage.Path)
	}
	if cfg.Budget.TotalBytes != 34359738368 {
		t.Errorf("budget.total_bytes: got %d", cfg.Budget.TotalBytes)
	}
	if cfg.Providers.Embeddings.Name != "openai" {
		t.Errorf("providers.embeddings.name: got %q, want %q", cfg.Providers.Embeddings.Name, "openai")
	}
	if cfg.Providers.Tagger.Name != "anthropic" {
		t.Errorf("providers.tagger.name: got %q, want %q", cfg.Providers.Tagger.Name, "anthropic")
	}
	if len(cfg.Domains) != 2 {
		t.Fatalf("domains: got %d, want 2", len(cfg.Domains))
	}
	if cfg.Domains[0].Name != "code" || cfg.Domains[0].WeightProfile != "code_search" {
		t.Errorf("domains[0]: got %+v", cfg.Domains[0])
	}
	if len(cfg.MCP.Servers) != 2 {
		t.Fatalf("mcp.servers: got %d, want 2", len(cfg.MCP.Servers))
	}
}

func TestLoadFromReader_EmptyRequiresStoragePath(t *testing.T) {
	// An empty config fails because storage.path is required; verify the
	// error names exactly that, rather than treating "{}" as fully valid.
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for missing storage.path, got nil")
	}
	if !strings.Contains(err.Error(), "storage.path") {
		t.Errorf("error should mention storage.path, got: %v", err)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
storage:
  path: /tmp/store.db
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingDomainName(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
domains:
  - weight_profile: semantic_search
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing domain name, got nil")
	}
	if !strings.Contains(err.Error(), "domains[0].name") {
		t.Errorf("error should mention domains[0].name, got: %v", err)
	}
}

func TestValidate_InvalidDomainName(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
domains:
  - name: astrology
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid domain name, got nil")
	}
}

func TestValidate_DuplicateDomainName(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
domains:
  - name: code
  - name: code
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate domain name, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_PartialBudgetSplit(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
budget:
  weights_bytes: 100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for a partially-specified budget split, got nil")
	}
}

func TestValidate_BudgetSplitMismatch(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
budget:
  total_bytes: 1000
  weights_bytes: 100
  activation_bytes: 100
  working_bytes: 100
  reserved_bytes: 100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for a budget split that doesn't sum to total_bytes, got nil")
	}
}

func TestValidate_MCPMissingCommand(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
mcp:
  servers:
    - name: badserver
      transport: stdio
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing stdio command, got nil")
	}
}

func TestValidate_MCPMissingURL(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
mcp:
  servers:
    - name: webserver
      transport: streamable-http
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing streamable-http url, got nil")
	}
}

func TestValidate_MCPInvalidTransport(t *testing.T) {
	yaml := `
storage:
  path: /tmp/store.db
mcp:
  servers:
    - name: badtransport
      transport: grpc
      command: /bin/server
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid transport, got nil")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownEmbeddings(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownTagger(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTagger(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

// ── Registry with registered factories ───────────────────────────────────────

func TestRegistry_RegisteredEmbeddings(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubEmbeddings{}
	reg.RegisterEmbeddings("stub", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredTagger(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubLLM{}
	reg.RegisterTagger("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateTagger(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterTagger("broken", func(e config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateTagger(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// ── Stub implementations (satisfy interfaces for the compiler) ────────────────

// stubLLM implements llm.Provider with no-op methods.
type stubLLM struct{}

func (s *stubLLM) StreamCompletion(_ context.Context, _ llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}
func (s *stubLLM) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}
func (s *stubLLM) CountTokens(_ []types.Message) (int, error) { return 0, nil }
func (s *stubLLM) Capabilities() types.ModelCapabilities      { return types.ModelCapabilities{} }

// stubEmbeddings implements embeddings.Provider.
type stubEmbeddings struct{}

func (s *stubEmbeddings) Embed(_ context.Context, _ string) ([]float32, error) { return nil, nil }
func (s *stubEmbeddings) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}
func (s *stubEmbeddings) Dimensions() int { return 0 }
func (s *stubEmbeddings) ModelID() string { return "stub" }
