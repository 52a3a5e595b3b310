package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/google/uuid"
)

// CodeEntityType classifies the syntactic unit a CodeChunk was chunked
// from. Mirrors the categories an AST chunker reports; this package relies
// only on the chunker's output shape (§1), never on the chunker itself.
type CodeEntityType string

const (
	CodeEntityFunction  CodeEntityType = "function"
	CodeEntityMethod    CodeEntityType = "method"
	CodeEntityStruct    CodeEntityType = "struct"
	CodeEntityEnum      CodeEntityType = "enum"
	CodeEntityInterface CodeEntityType = "interface"
	CodeEntityImpl      CodeEntityType = "impl"
	CodeEntityModule    CodeEntityType = "module"
	CodeEntityConst     CodeEntityType = "const"
	CodeEntityTypeAlias CodeEntityType = "type_alias"
)

// CodeChunkMetadata is the subset of an AST chunker's per-chunk metadata
// this adapter depends on.
type CodeChunkMetadata struct {
	FilePath   string
	Language   string
	ScopeChain []string
	EntityType CodeEntityType
	Signature  string
	StartLine  int
	EndLine    int
	ParentType string
}

// CodeChunk is a pre-chunked code entity as produced by an external AST
// chunker. ContextualizedText is what gets embedded (typically the raw
// code prefixed with file/scope context); Code is the raw snippet retained
// on the resulting entity.
type CodeChunk struct {
	Code               string
	ContextualizedText string
	Metadata           CodeChunkMetadata
}

// CodeEntity is the storage-facing record derived from a CodeChunk: the
// chunk's code and location metadata, addressed by the id its fingerprint
// is ingested under.
type CodeEntity struct {
	ID         uuid.UUID
	Name       string
	Code       string
	EntityType CodeEntityType
	Language   string
	FilePath   string
	StartLine  int
	EndLine    int
	Signature  string
	ModulePath string
}

// CodeEmbedder produces a complete 13-space Fingerprint for a code chunk's
// contextualized text. This is an external collaborator (§1's embedder
// boundary): codecapture never computes embeddings itself, only routes
// chunks to one.
type CodeEmbedder interface {
	EmbedCode(ctx context.Context, contextualizedText string) (*fingerprint.Fingerprint, error)
}

// CodeCapture adapts pre-chunked code entities into the ingest contract.
// It treats an AST chunker's output shape only — never raw source — as
// its input, converts each chunk to a CodeEntity, obtains a full
// fingerprint via Embedder (with its E7/Code space populated alongside
// E1/Semantic and the rest), and routes the result through the same
// Ingester any other content uses.
type CodeCapture struct {
	Ingester *Ingester
	Embedder CodeEmbedder
}

// NewCodeCapture constructs a CodeCapture over an existing Ingester.
func NewCodeCapture(ingester *Ingester, embedder CodeEmbedder) *CodeCapture {
	return &CodeCapture{Ingester: ingester, Embedder: embedder}
}

// CaptureChunk converts chunk to a CodeEntity, embeds its contextualized
// text into a full fingerprint, and ingests it. Returns the id the
// fingerprint was ingested under; the CodeEntity itself is not persisted.
func (cc *CodeCapture) CaptureChunk(ctx context.Context, chunk CodeChunk) (uuid.UUID, error) {
	if strings.TrimSpace(chunk.Code) == "" {
		return uuid.Nil, fmt.Errorf("codecapture: CaptureChunk: code content is empty")
	}

	entity := chunkToEntity(chunk)

	fp, err := cc.Embedder.EmbedCode(ctx, chunk.ContextualizedText)
	if err != nil {
		return uuid.Nil, fmt.Errorf("codecapture: CaptureChunk: embedding failed: %w", err)
	}

	if _, err := cc.Ingester.Ingest(ctx, entity.ID, fp, fingerprint.PurposeVector{}, false); err != nil {
		return uuid.Nil, fmt.Errorf("codecapture: CaptureChunk: %w", err)
	}
	return entity.ID, nil
}

// CaptureBatch captures each non-empty chunk in turn, stopping at the
// first failure. Unlike the original's batched-embedder call, chunks are
// embedded one at a time through the same Embedder interface — batching
// the embedder call itself is an optimization left to a given Embedder
// implementation, not something this adapter needs to know about.
func (cc *CodeCapture) CaptureBatch(ctx context.Context, chunks []CodeChunk) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Code) == "" {
			continue
		}
		id, err := cc.CaptureChunk(ctx, chunk)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func chunkToEntity(chunk CodeChunk) CodeEntity {
	name := "anonymous"
	var modulePath string
	if n := len(chunk.Metadata.ScopeChain); n > 0 {
		name = chunk.Metadata.ScopeChain[n-1]
		if n > 1 {
			modulePath = strings.Join(chunk.Metadata.ScopeChain[:n-1], "::")
		}
	}
	return CodeEntity{
		ID:         uuid.New(),
		Name:       name,
		Code:       chunk.Code,
		EntityType: chunk.Metadata.EntityType,
		Language:   chunk.Metadata.Language,
		FilePath:   chunk.Metadata.FilePath,
		StartLine:  chunk.Metadata.StartLine,
		EndLine:    chunk.Metadata.EndLine,
		Signature:  chunk.Metadata.Signature,
		ModulePath: modulePath,
	}
}
