package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/memoryengine/internal/config"
)

func TestValidate_UnknownEmbeddingsProviderWarnsNotErrors(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  path: /tmp/store.db
providers:
  embeddings:
    name: some-homegrown-embedder
`
	// Unknown provider names only produce a log warning, never a validation
	// error — third-party providers registered at runtime are still valid.
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for unknown (but present) provider name: %v", err)
	}
}

func TestValidate_MissingEmbeddingsProviderIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  path: /tmp/store.db
`
	// No embeddings provider configured just logs a warning; ingest callers
	// may supply their own embedder directly.
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: shouting
domains:
  - name: code
  - name: code
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "storage.path") {
		t.Errorf("error should mention storage.path, got: %v", err)
	}
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	embeddingsNames := config.ValidProviderNames["embeddings"]
	if len(embeddingsNames) == 0 {
		t.Fatal(`ValidProviderNames["embeddings"] should not be empty`)
	}
	found := false
	for _, n := range embeddingsNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidProviderNames["embeddings"] should contain "openai"`)
	}
	taggerNames := config.ValidProviderNames["tagger"]
	if len(taggerNames) == 0 {
		t.Fatal(`ValidProviderNames["tagger"] should not be empty`)
	}
}

func TestValidDomainNames(t *testing.T) {
	t.Parallel()
	want := []string{"code", "medical", "legal", "creative", "research", "general"}
	if len(config.ValidDomainNames) != len(want) {
		t.Fatalf("ValidDomainNames: got %v, want %v", config.ValidDomainNames, want)
	}
	for _, name := range want {
		found := false
		for _, got := range config.ValidDomainNames {
			if got == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("ValidDomainNames missing %q", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
