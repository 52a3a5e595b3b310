package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/provider/embeddings"
	"github.com/MrWong99/memoryengine/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each of
// the two external collaborators the core relies on (§1): the embedder and
// the causal/graph relationship tagger. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
	tagger     map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		tagger:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterTagger registers a causal/graph relationship tagger (LLM) factory
// under name.
func (r *Registry) RegisterTagger(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagger[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTagger instantiates a causal/graph relationship tagger using the
// factory registered under entry.Name.
func (r *Registry) CreateTagger(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tagger[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tagger/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
