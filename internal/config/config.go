// Package config provides the configuration schema, loader, and provider
// registry for the memory engine.
package config

import "github.com/MrWong99/memoryengine/internal/mcp"

// Config is the root configuration structure for the memory engine.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Budget    BudgetConfig    `yaml:"budget"`
	Domains   []DomainConfig  `yaml:"domains"`
	Providers ProvidersConfig `yaml:"providers"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig holds network and logging settings for the memory engine's
// MCP surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the /healthz and /readyz endpoints listen
	// on (e.g., ":8080"). Empty disables them.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel names a slog-compatible verbosity level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the named log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// StorageConfig holds settings for the embedded sqlite-backed fingerprint
// store (§6.3).
type StorageConfig struct {
	// Path is the filesystem path of the sqlite database file. A missing
	// parent directory is created by storage.Open.
	Path string `yaml:"path"`
}

// BudgetConfig holds settings for the process-wide GPU budget tracker (§6.6).
type BudgetConfig struct {
	// TotalBytes is the total GPU memory ceiling in bytes. Defaults to
	// gpubudget.DefaultTotalBytes (32 GiB) when zero.
	TotalBytes uint64 `yaml:"total_bytes"`

	// WeightsBytes, ActivationBytes, WorkingBytes, and ReservedBytes split
	// TotalBytes across the four named reserves the tracker pre-allocates.
	// Leaving all four zero uses the default 16/8/6/2 GiB split.
	WeightsBytes    uint64 `yaml:"weights_bytes"`
	ActivationBytes uint64 `yaml:"activation_bytes"`
	WorkingBytes    uint64 `yaml:"working_bytes"`
	ReservedBytes   uint64 `yaml:"reserved_bytes"`
}

// DomainConfig declares one content domain; the app builds one adaptive
// threshold controller (§4.8) and retrieval facade per configured domain.
type DomainConfig struct {
	// Name is the domain identifier (e.g., "code", "medical", "legal",
	// "creative", "research", "general") — must match one of
	// atc.Domain's declared constants.
	Name string `yaml:"name"`

	// WeightProfile names a weight profile from the fingerprint package's
	// named-profile registry (e.g., "semantic_search", "code_search").
	// config.Diff reports changes to it; retrieval does not read it, and the
	// name is not checked against the registry.
	WeightProfile string `yaml:"weight_profile"`
}

// ProvidersConfig declares which provider implementation to use for each
// external collaborator the core relies on (§1): the embedder and the
// causal/graph relationship tagger. Each field selects a named provider
// registered in the [Registry].
type ProvidersConfig struct {
	Embeddings ProviderEntry `yaml:"embeddings"`
	Tagger     ProviderEntry `yaml:"tagger"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "text-embedding-3-large", "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// MCPConfig holds the list of Model Context Protocol servers to connect to.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes how to connect to a single MCP tool server.
type MCPServerConfig struct {
	// Name is a unique human-readable identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	// Valid values: "stdio", "streamable-http".
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http.
	Command string `yaml:"command"`

	// URL is the endpoint address used when Transport is "streamable-http".
	// Ignored for stdio transport.
	URL string `yaml:"url"`

	// Env holds additional environment variables injected into the subprocess
	// when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}
