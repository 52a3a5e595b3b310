package fingerprint

// Named weight profiles (§3.4). Each profile is a concrete, loadable
// 13-vector; per I3 every profile zero-weights the three temporal embedders
// (E2, E3, E4) since they must never drive topic or similarity scoring.
//
// Index order follows AllEmbedders(): E1 Semantic, E2 TemporalRecent, E3
// TemporalPeriodic, E4 TemporalPositional, E5 Causal, E6 Sparse, E7 Code, E8
// Graph, E9 HDC, E10 Multimodal, E11 Entity, E12 LateInteraction, E13
// SPLADE.
var namedProfiles = map[string]WeightProfile{
	// semantic_search: dominated by E1, with a light multimodal/entity tail
	// and lexical support from E6/E13.
	"semantic_search": {
		0.55, 0, 0, 0, 0, 0.10, 0, 0, 0, 0.10, 0.10, 0, 0.15,
	},
	// causal_reasoning: dominated by E5 (asymmetric), semantic support.
	"causal_reasoning": {
		0.25, 0, 0, 0, 0.55, 0, 0, 0, 0, 0, 0, 0, 0.20,
	},
	// code_search: E7 primary, E1 secondary for natural-language comments.
	"code_search": {
		0.30, 0, 0, 0, 0, 0.10, 0.50, 0, 0, 0, 0, 0, 0.10,
	},
	// graph_reasoning: E8 primary (asymmetric structural direction).
	"graph_reasoning": {
		0.20, 0, 0, 0, 0, 0, 0, 0.60, 0, 0, 0.20, 0, 0,
	},
	// typo_tolerant: E9 HDC carries the weight since Hamming-on-sign is
	// resilient to small lexical perturbations.
	"typo_tolerant": {
		0.20, 0, 0, 0, 0, 0.10, 0, 0, 0.60, 0, 0, 0, 0.10,
	},
	// sequence_navigation: note this profile's name implies positional
	// locality, but I3 forbids weighting E4 directly in scoring — it drives
	// badge emission only. Weight is distributed across semantic, entity
	// and late-interaction instead, with E4 left at zero by construction.
	"sequence_navigation": {
		0.45, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0.35, 0.20, 0,
	},
	// intent_search: a blended profile favoring late-interaction precision.
	"intent_search": {
		0.35, 0, 0, 0, 0, 0.10, 0, 0, 0, 0.10, 0.10, 0.25, 0.10,
	},
	// pipeline_stage1_recall: SPLADE-heavy, used for stage-1 of the
	// two-stage/four-stage pipeline fusion mode.
	"pipeline_stage1_recall": {
		0.10, 0, 0, 0, 0, 0.20, 0, 0, 0, 0, 0, 0, 0.70,
	},
	// pipeline_stage2_scoring: dense-heavy rerank profile for stage 2.
	"pipeline_stage2_scoring": {
		0.50, 0, 0, 0, 0.15, 0, 0.15, 0.10, 0, 0.10, 0, 0, 0,
	},
	// pipeline_full: balanced across all non-temporal spaces, used when no
	// more specific profile applies.
	"pipeline_full": {
		0.25, 0, 0, 0, 0.10, 0.10, 0.10, 0.10, 0.05, 0.05, 0.10, 0.10, 0.05,
	},
}

// NamedProfile looks up a registered weight profile by name. The bool result
// reports whether the name was found.
func NamedProfile(name string) (WeightProfile, bool) {
	wp, ok := namedProfiles[name]
	return wp, ok
}

// ProfileNames returns the registered profile names in no particular order
// (map iteration order), useful for config validation error messages.
func ProfileNames() []string {
	names := make([]string, 0, len(namedProfiles))
	for n := range namedProfiles {
		names = append(names, n)
	}
	return names
}
