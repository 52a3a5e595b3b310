// Command memoryengine is the main entry point for the multi-space memory
// engine's MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/memoryengine/internal/app"
	"github.com/MrWong99/memoryengine/internal/config"
	"github.com/MrWong99/memoryengine/internal/health"
	"github.com/MrWong99/memoryengine/internal/mcp"
	"github.com/MrWong99/memoryengine/internal/observe"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "memoryengine: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "memoryengine: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("memoryengine starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage_path", cfg.Storage.Path,
	)

	// ── Telemetry ──────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "memoryengine",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Application wiring ────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	var healthSrv *http.Server
	if cfg.Server.ListenAddr != "" {
		healthSrv = startHealthServer(cfg.Server.ListenAddr, application, metrics)
	}

	watcher, err := config.NewWatcher(*configPath, makeConfigReloadHandler(logLevel))
	if err != nil {
		slog.Warn("config watcher not started", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("mcp server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	if healthSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown error", "err", err)
		}
		cancel()
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to provider names that are
// logged at startup. No factory is registered for any of them, so a config
// naming one leaves that provider unset (see buildProviders).
var builtinProviders = map[string][]string{
	"embeddings": {"openai", "cohere"},
	"tagger":     {"openai", "anthropic", "ollama"},
}

// registerBuiltinProviders logs the names in builtinProviders at debug level.
// It registers no factory with reg, so cfg.Providers entries naming any
// provider are skipped rather than treated as fatal (see buildProviders).
func registerBuiltinProviders(reg *config.Registry) {
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
	_ = reg // wired when real provider factories land
}

// buildProviders instantiates the embeddings and tagger providers named in
// cfg using reg and returns them in an [app.Providers] struct. A provider
// name that has no registered factory is logged and left nil rather than
// treated as fatal, so the engine can still serve previously-ingested
// fingerprints without live embedding/tagging support configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "embeddings", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			ps.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", name)
		}
	}

	if name := cfg.Providers.Tagger.Name; name != "" {
		p, err := reg.CreateTagger(cfg.Providers.Tagger)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "tagger", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tagger provider %q: %w", name, err)
		} else {
			ps.Tagger = p
			slog.Info("provider created", "kind", "tagger", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      memoryengine — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("Tagger", cfg.Providers.Tagger.Name, cfg.Providers.Tagger.Model)
	fmt.Printf("║  Domains         : %-19d ║\n", len(cfg.Domains))
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Health server ──────────────────────────────────────────────────────────────

// startHealthServer starts the /healthz and /readyz HTTP endpoints on addr
// in the background. Readiness checks that the fingerprint store is still
// reachable and that at least one domain's memory tools are registered on
// the MCP host.
func startHealthServer(addr string, application *app.App, metrics *observe.Metrics) *http.Server {
	handler := health.New(
		health.Checker{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, _, err := application.Store().GetFingerprint(uuid.Nil)
				return err
			},
		},
		health.Checker{
			Name: "mcp_tools",
			Check: func(ctx context.Context) error {
				if len(application.Host().AvailableTools(mcp.BudgetDeep)) == 0 {
					return fmt.Errorf("no mcp tools registered")
				}
				return nil
			},
		},
	)

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{Addr: addr, Handler: observe.Middleware(metrics)(mux)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server error", "err", err)
		}
	}()
	slog.Info("health endpoints listening", "addr", addr)
	return srv
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// makeConfigReloadHandler returns the [config.Watcher] callback that applies
// a reloaded config's hot-reloadable changes (config.Diff). Only the log
// level can be changed without a restart today; domain and provider changes
// are logged so an operator knows a restart is needed to pick them up.
func makeConfigReloadHandler(logLevel *slog.LevelVar) func(old, new *config.Config) {
	return func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("config reload: log level changed", "new_level", diff.NewLogLevel)
		}
		if diff.ProvidersChanged {
			slog.Warn("config reload: provider settings changed — restart required to apply")
		}
		for _, dc := range diff.DomainChanges {
			slog.Warn("config reload: domain configuration changed — restart required to apply",
				"domain", dc.Name, "added", dc.Added, "removed", dc.Removed, "weight_profile_changed", dc.WeightProfileChanged)
		}
	}
}
