package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/memoryengine/internal/mcp"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per collaborator kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"tagger":     {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
}

// ValidDomainNames lists the atc.Domain constants a [DomainConfig.Name]
// must match.
var ValidDomainNames = []string{"code", "medical", "legal", "creative", "research", "general"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Storage
	if cfg.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}

	// GPU budget: if any reserve is set, all four must be to avoid a
	// partially-specified split that silently leaves a reserve at zero.
	reservesSet := cfg.Budget.WeightsBytes != 0 || cfg.Budget.ActivationBytes != 0 ||
		cfg.Budget.WorkingBytes != 0 || cfg.Budget.ReservedBytes != 0
	if reservesSet {
		if cfg.Budget.WeightsBytes == 0 || cfg.Budget.ActivationBytes == 0 ||
			cfg.Budget.WorkingBytes == 0 || cfg.Budget.ReservedBytes == 0 {
			errs = append(errs, fmt.Errorf("budget: weights_bytes, activation_bytes, working_bytes, and reserved_bytes must all be set together, or all left at zero to use the default split"))
		}
		if sum := cfg.Budget.WeightsBytes + cfg.Budget.ActivationBytes + cfg.Budget.WorkingBytes + cfg.Budget.ReservedBytes; cfg.Budget.TotalBytes != 0 && sum != cfg.Budget.TotalBytes {
			errs = append(errs, fmt.Errorf("budget: reserve split (%d) does not sum to budget.total_bytes (%d)", sum, cfg.Budget.TotalBytes))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("tagger", cfg.Providers.Tagger.Name)

	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("providers.embeddings is not configured; ingest will require a caller-supplied embedder")
	}

	// Domains
	domainNamesSeen := make(map[string]int, len(cfg.Domains))
	for i, d := range cfg.Domains {
		prefix := fmt.Sprintf("domains[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if !slices.Contains(ValidDomainNames, d.Name) {
				errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: %v", prefix, d.Name, ValidDomainNames))
			}
			if prev, ok := domainNamesSeen[d.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of domains[%d]", prefix, d.Name, prev))
			}
			domainNamesSeen[d.Name] = i
		}
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
