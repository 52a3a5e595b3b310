// Package app wires the memory engine's subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New opens storage, builds the
// index manager and GPU budget tracker, constructs one adaptive threshold
// controller and retrieval facade per configured domain, and registers the
// resulting tools with an MCP host. Run serves until the context is
// cancelled, and Shutdown tears everything down in reverse order.
//
// For testing, inject substitute collaborators via functional options
// (WithMCPHost, WithMetrics). When an option is not provided, New builds
// the real implementation from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/memoryengine/internal/config"
	"github.com/MrWong99/memoryengine/internal/mcp"
	"github.com/MrWong99/memoryengine/internal/mcp/mcphost"
	"github.com/MrWong99/memoryengine/internal/mcp/tools/memorytool"
	"github.com/MrWong99/memoryengine/internal/observe"
	"github.com/MrWong99/memoryengine/internal/resilience"
	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/gpubudget"
	"github.com/MrWong99/memoryengine/pkg/memspace/indexmanager"
	"github.com/MrWong99/memoryengine/pkg/memspace/ingest"
	"github.com/MrWong99/memoryengine/pkg/memspace/retrieval"
	"github.com/MrWong99/memoryengine/pkg/memspace/storage"
	"github.com/MrWong99/memoryengine/pkg/provider/embeddings"
	"github.com/MrWong99/memoryengine/pkg/provider/llm"
)

// Providers holds the external collaborators the core relies on (§1): the
// embedder and the causal/graph relationship tagger. Either may be nil —
// callers that only query previously-ingested fingerprints need neither.
type Providers struct {
	Embeddings embeddings.Provider
	Tagger     llm.Provider
}

// domainInstance pairs one configured domain's adaptive threshold
// controller with the retrieval facade sharing it.
type domainInstance struct {
	control *atc.Controller
	facade  *retrieval.Facade
}

// defaultArms seeds the adaptive threshold bandit with six candidate
// strictness values spanning the range the six domains' own Strictness()
// priors are drawn from (0.2 creative .. 1.0 medical), so every domain
// starts with at least one nearby candidate to converge toward.
var defaultArms = []atc.Arm{
	{Value: 0.2},
	{Value: 0.3},
	{Value: 0.5},
	{Value: 0.6},
	{Value: 0.8},
	{Value: 0.9},
}

const (
	defaultUCBExploration  = 1.4
	defaultCalibrationBins = 10
)

// App owns the full lifecycle of a running memory engine instance.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	store    *storage.Store
	indexes  *indexmanager.Manager
	budget   *gpubudget.Tracker
	ingester *ingest.Ingester
	domains  map[atc.Domain]*domainInstance

	mcpHost *mcphost.Host

	closers  []func() error
	stopOnce sync.Once
}

// Option customises App construction. Used primarily by tests to inject
// substitute collaborators in place of the real ones New would build.
type Option func(*App)

// WithMCPHost overrides the MCP host New would otherwise construct. Its
// Close method is not registered as a closer — the caller retains
// ownership.
func WithMCPHost(h *mcphost.Host) Option {
	return func(a *App) { a.mcpHost = h }
}

// WithMetrics overrides the [observe.Metrics] instance used to record
// ingest, query, and tool-execution measurements.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New constructs a ready-to-run App: it opens the fingerprint store,
// builds the shared index manager and GPU budget tracker, wires the
// ingest contract over them, constructs one adaptive threshold controller
// and retrieval facade per domain named in cfg.Domains, registers the
// resulting memory tools with an MCP host (prefixed per domain when more
// than one domain is configured), connects to any external MCP servers
// named in cfg.MCP.Servers, and runs an initial calibration pass.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		domains:   make(map[atc.Domain]*domainInstance),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.initStorage(); err != nil {
		return nil, err
	}

	a.indexes = indexmanager.New()

	if err := a.initBudget(); err != nil {
		return nil, err
	}

	a.ingester = ingest.New(a.indexes, a.store, a.budget)

	a.guardTagger()

	if err := a.initDomains(); err != nil {
		return nil, err
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.mcpHost == nil {
		host := mcphost.New()
		a.mcpHost = host
		a.closers = append(a.closers, host.Close)
	}

	if err := a.registerMemoryTools(); err != nil {
		return nil, err
	}

	if err := a.connectMCPServers(ctx); err != nil {
		return nil, err
	}

	if err := a.mcpHost.Calibrate(ctx); err != nil {
		slog.Warn("initial tool calibration failed", "err", err)
	}

	return a, nil
}

func (a *App) initStorage() error {
	store, err := storage.Open(a.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// guardTagger wraps the configured causal/graph relationship tagger in a
// circuit breaker so a failing LLM backend degrades to fast rejection
// instead of cascading latency into every ingest call that needs tagging.
// A nil Tagger (no tagger configured) is left nil.
func (a *App) guardTagger() {
	if a.providers == nil || a.providers.Tagger == nil {
		return
	}
	name := "tagger"
	if a.cfg.Providers.Tagger.Name != "" {
		name = a.cfg.Providers.Tagger.Name
	}
	guarded := resilience.NewLLMFallback(a.providers.Tagger, name, resilience.FallbackConfig{})
	a.providers = &Providers{Embeddings: a.providers.Embeddings, Tagger: guarded}
}

func (a *App) initBudget() error {
	b := a.cfg.Budget
	switch {
	case b.TotalBytes == 0 && b.WeightsBytes == 0 && b.ActivationBytes == 0 && b.WorkingBytes == 0 && b.ReservedBytes == 0:
		tracker, err := gpubudget.NewDefaultTracker()
		if err != nil {
			return fmt.Errorf("init default gpu budget: %w", err)
		}
		a.budget = tracker
	default:
		total := b.TotalBytes
		if total == 0 {
			total = gpubudget.DefaultTotalBytes
		}
		tracker := gpubudget.NewTracker(total)
		for name, size := range map[string]uint64{
			gpubudget.ReservationWeights:    b.WeightsBytes,
			gpubudget.ReservationActivation: b.ActivationBytes,
			gpubudget.ReservationWorking:    b.WorkingBytes,
			gpubudget.ReservationReserved:   b.ReservedBytes,
		} {
			if size == 0 {
				continue
			}
			if err := tracker.Allocate(name, size); err != nil {
				return fmt.Errorf("allocate gpu budget reservation %q: %w", name, err)
			}
		}
		a.budget = tracker
	}
	return nil
}

// initDomains builds one atc.Controller and retrieval.Facade per domain
// named in cfg.Domains, all sharing the App's index manager and store. A
// config with no domains configured falls back to DomainGeneral alone, so
// the memory tools are always registered for at least one domain.
func (a *App) initDomains() error {
	names := a.cfg.Domains
	if len(names) == 0 {
		names = []config.DomainConfig{{Name: "general"}}
	}
	for _, dc := range names {
		domain, ok := atc.ParseDomain(dc.Name)
		if !ok {
			return fmt.Errorf("init domains: %q is not a recognised domain", dc.Name)
		}
		control := atc.NewController(defaultCalibrationBins, defaultArms, defaultUCBExploration)
		facade := retrieval.New(a.indexes, control, a.store, domain)
		a.domains[domain] = &domainInstance{control: control, facade: facade}
	}
	return nil
}

// registerMemoryTools builds the three memory tools for each configured
// domain and registers them as built-in MCP tools. When more than one
// domain is configured, each domain's tool names are prefixed with the
// domain name (e.g. "code_retrieve_similar") to avoid collisions; a
// single-domain configuration keeps the bare tool names.
func (a *App) registerMemoryTools() error {
	prefixNames := len(a.domains) > 1
	for domain, inst := range a.domains {
		toolSet := memorytool.NewTools(a.store, inst.facade)
		for _, t := range toolSet {
			def := t.Definition
			if prefixNames {
				def.Name = domain.String() + "_" + def.Name
			}
			if err := a.mcpHost.RegisterBuiltin(mcphost.BuiltinTool{
				Definition:  def,
				Handler:     t.Handler,
				DeclaredP50: t.DeclaredP50,
				DeclaredMax: t.DeclaredMax,
			}); err != nil {
				return fmt.Errorf("register tool %q for domain %s: %w", def.Name, domain, err)
			}
		}
	}
	return nil
}

func (a *App) connectMCPServers(ctx context.Context) error {
	for _, sc := range a.cfg.MCP.Servers {
		cfg := mcp.ServerConfig{
			Name:      sc.Name,
			Transport: sc.Transport,
			Command:   sc.Command,
			URL:       sc.URL,
			Env:       sc.Env,
		}
		if err := a.mcpHost.RegisterServer(ctx, cfg); err != nil {
			return fmt.Errorf("register mcp server %q: %w", sc.Name, err)
		}
	}
	return nil
}

// Ingester returns the shared ingest contract used to add new fingerprints
// to the engine.
func (a *App) Ingester() *ingest.Ingester { return a.ingester }

// Store returns the shared fingerprint store.
func (a *App) Store() *storage.Store { return a.store }

// Host returns the MCP host serving the memory tools.
func (a *App) Host() *mcphost.Host { return a.mcpHost }

// Metrics returns the metrics instance this App records to.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Providers returns the embedder and tagger collaborators, with the
// tagger wrapped in a circuit breaker (see guardTagger).
func (a *App) Providers() *Providers { return a.providers }

// Run blocks until ctx is cancelled. The MCP host itself is passive — it
// answers ExecuteTool/AvailableTools calls made by whatever transport the
// caller wires to it — so Run's only job is to hold the application alive
// for that long.
func (a *App) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Shutdown releases every resource acquired by New, in reverse
// acquisition order. A failing closer does not stop the ones after it; the
// first closer error is returned. If ctx is done before a closer runs, the
// remaining closers are skipped and ctx's error is returned.
// Calling Shutdown more than once is a no-op after the first call.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				return
			default:
			}
			if cerr := a.closers[i](); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
