// Package memorytool exposes the multi-space memory engine's retrieval
// facade (pkg/memspace/retrieval) as built-in MCP tools.
//
// Three tools are exported via [NewTools]:
//   - "retrieve_similar"    — E1 k-NN retrieval, gated by the domain
//     threshold, over a previously-ingested fingerprint used as the query.
//   - "check_divergence"    — per-space divergence alerts between two
//     previously-ingested fingerprints.
//   - "detect_contradictions" — semantic + graph-edge contradiction search
//     rooted at a previously-ingested node.
//
// All three tools resolve their inputs by UUID through the storage layer
// rather than accepting raw vectors over JSON: a fingerprint is a
// completeness-checked, 13-space object (§3.1), not something an LLM tool
// call should be trusted to assemble by hand. Ingestion itself happens
// through the ingest contract (pkg/memspace/ingest), not through this tool
// surface.
package memorytool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/memoryengine/internal/mcp/tools"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/retrieval"
	"github.com/MrWong99/memoryengine/pkg/memspace/storage"
	"github.com/MrWong99/memoryengine/pkg/provider/llm"
	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// retrieve_similar
// ─────────────────────────────────────────────────────────────────────────────

type retrieveSimilarArgs struct {
	// QueryID is the UUID of a previously-ingested fingerprint to use as the
	// search query.
	QueryID string `json:"query_id"`

	// SessionID must be a valid UUID. The search does not vary by session:
	// no weight profile is applied, and the threshold is the tool's domain's.
	SessionID string `json:"session_id"`

	// Limit caps the number of results returned. Defaults to 10 when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

func makeRetrieveSimilarHandler(store *storage.Store, facade *retrieval.Facade) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a retrieveSimilarArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: failed to parse arguments: %w", err)
		}
		queryID, err := uuid.Parse(a.QueryID)
		if err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: invalid query_id: %w", err)
		}
		sessionID, err := uuid.Parse(a.SessionID)
		if err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: invalid session_id: %w", err)
		}
		limit := a.Limit
		if limit <= 0 {
			limit = defaultLimit
		}

		fp, ok, err := store.GetFingerprint(queryID)
		if err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("memory tool: retrieve_similar: query_id %q not found", a.QueryID)
		}

		hits, err := facade.RetrieveSimilar(ctx, fp, sessionID, limit)
		if err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: %w", err)
		}
		res, err := json.Marshal(hits)
		if err != nil {
			return "", fmt.Errorf("memory tool: retrieve_similar: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// check_divergence
// ─────────────────────────────────────────────────────────────────────────────

type checkDivergenceArgs struct {
	// QueryID is the fingerprint being checked for divergence.
	QueryID string `json:"query_id"`

	// ContextID is the fingerprint it is compared against (typically the
	// session's running context fingerprint).
	ContextID string `json:"context_id"`

	// SessionID must be a valid UUID; the θ_warn threshold that gates alerts
	// comes from the tool's configured domain, not from the session.
	SessionID string `json:"session_id"`
}

type divergenceResult struct {
	Alerts      []retrieval.DivergenceAlert `json:"alerts"`
	ShouldAlert bool                        `json:"should_alert"`
}

func makeCheckDivergenceHandler(store *storage.Store, facade *retrieval.Facade) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a checkDivergenceArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: failed to parse arguments: %w", err)
		}
		queryID, err := uuid.Parse(a.QueryID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: invalid query_id: %w", err)
		}
		contextID, err := uuid.Parse(a.ContextID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: invalid context_id: %w", err)
		}
		sessionID, err := uuid.Parse(a.SessionID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: invalid session_id: %w", err)
		}

		query, ok, err := store.GetFingerprint(queryID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("memory tool: check_divergence: query_id %q not found", a.QueryID)
		}
		contextFP, ok, err := store.GetFingerprint(contextID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("memory tool: check_divergence: context_id %q not found", a.ContextID)
		}

		alerts, err := facade.CheckDivergence(ctx, query, contextFP, sessionID)
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: %w", err)
		}

		res, err := json.Marshal(divergenceResult{Alerts: alerts, ShouldAlert: retrieval.ShouldAlertDivergence(alerts)})
		if err != nil {
			return "", fmt.Errorf("memory tool: check_divergence: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// detect_contradictions
// ─────────────────────────────────────────────────────────────────────────────

type detectContradictionsArgs struct {
	// NodeID is the fingerprint being checked for contradicting neighbors.
	NodeID string `json:"node_id"`

	// Threshold is the minimum semantic similarity for a k-NN candidate to
	// be treated as corroborating. Defaults to 0.5 when ≤ 0.
	Threshold float64 `json:"threshold,omitempty"`

	// Limit caps the semantic candidate pool size. Defaults to 20 when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

const (
	defaultLimit             = 10
	defaultContradictionPool = 20
	defaultThreshold         = 0.5
)

func makeDetectContradictionsHandler(store *storage.Store, facade *retrieval.Facade) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a detectContradictionsArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("memory tool: detect_contradictions: failed to parse arguments: %w", err)
		}
		nodeID, err := uuid.Parse(a.NodeID)
		if err != nil {
			return "", fmt.Errorf("memory tool: detect_contradictions: invalid node_id: %w", err)
		}
		threshold := a.Threshold
		if threshold <= 0 {
			threshold = defaultThreshold
		}
		limit := a.Limit
		if limit <= 0 {
			limit = defaultContradictionPool
		}

		fp, ok, err := store.GetFingerprint(nodeID)
		if err != nil {
			return "", fmt.Errorf("memory tool: detect_contradictions: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("memory tool: detect_contradictions: node_id %q not found", a.NodeID)
		}
		vec, ok := fp.Dense(fingerprint.Semantic)
		if !ok {
			return "", fmt.Errorf("memory tool: detect_contradictions: node %q has no semantic embedding", a.NodeID)
		}

		hits, err := facade.DetectContradictions(ctx, vec, nodeID, threshold, limit)
		if err != nil {
			return "", fmt.Errorf("memory tool: detect_contradictions: %w", err)
		}
		res, err := json.Marshal(hits)
		if err != nil {
			return "", fmt.Errorf("memory tool: detect_contradictions: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// NewTools
// ─────────────────────────────────────────────────────────────────────────────

// NewTools constructs the retrieval-facade tool set, wired to a shared
// storage layer (for resolving UUIDs to fingerprints) and retrieval facade.
func NewTools(store *storage.Store, facade *retrieval.Facade) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "retrieve_similar",
				Description: "Retrieve memories similar to a previously-ingested fingerprint by k-NN search over its E1 semantic embedding, keeping hits at or above the domain's calibrated threshold. No weight profile is applied.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query_id":   map[string]any{"type": "string", "description": "UUID of the previously-ingested fingerprint to use as the query."},
						"session_id": map[string]any{"type": "string", "description": "Session UUID. Results are gated by the tool's configured domain threshold, not by the session."},
						"limit":      map[string]any{"type": "integer", "description": "Maximum number of results. Defaults to 10.", "minimum": 1, "maximum": 100},
					},
					"required": []string{"query_id", "session_id"},
				},
				EstimatedDurationMs: 50,
				MaxDurationMs:       300,
				Idempotent:          true,
				CacheableSeconds:    10,
			},
			Handler:     makeRetrieveSimilarHandler(store, facade),
			DeclaredP50: 50,
			DeclaredMax: 300,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "check_divergence",
				Description: "Compute per-space semantic divergence between two previously-ingested fingerprints and report severity-graded alerts for any space falling below the domain's warning threshold.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query_id":   map[string]any{"type": "string", "description": "UUID of the fingerprint being checked."},
						"context_id": map[string]any{"type": "string", "description": "UUID of the fingerprint it is compared against."},
						"session_id": map[string]any{"type": "string", "description": "Session UUID. θ_warn comes from the tool's configured domain, not from the session."},
					},
					"required": []string{"query_id", "context_id", "session_id"},
				},
				EstimatedDurationMs: 60,
				MaxDurationMs:       300,
				Idempotent:          true,
				CacheableSeconds:    10,
			},
			Handler:     makeCheckDivergenceHandler(store, facade),
			DeclaredP50: 60,
			DeclaredMax: 300,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "detect_contradictions",
				Description: "Find memories that contradict a previously-ingested node, combining explicit Contradicts graph edges with semantic k-NN proximity, ranked by combined confidence.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"node_id":   map[string]any{"type": "string", "description": "UUID of the fingerprint to check for contradictions."},
						"threshold": map[string]any{"type": "number", "description": "Minimum semantic similarity for a candidate to be considered corroborating. Defaults to 0.5."},
						"limit":     map[string]any{"type": "integer", "description": "Maximum semantic candidate pool size. Defaults to 20.", "minimum": 1, "maximum": 200},
					},
					"required": []string{"node_id"},
				},
				EstimatedDurationMs: 80,
				MaxDurationMs:       500,
				Idempotent:          true,
				CacheableSeconds:    10,
			},
			Handler:     makeDetectContradictionsHandler(store, facade),
			DeclaredP50: 80,
			DeclaredMax: 500,
		},
	}
}
