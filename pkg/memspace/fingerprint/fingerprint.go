package fingerprint

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// SparseVector is the (indices, values) representation shared by E6 and E13.
// The two embedders never share a vocabulary assumption (I5): a SparseVector
// produced for one must never be compared against the other.
type SparseVector struct {
	Indices []uint16
	Values  []float32
}

// TokenVectors is the per-token dense representation used by E12
// (late-interaction / ColBERT-style). Each token has its own dense vector of
// LateInteraction.Dim() length.
type TokenVectors struct {
	Tokens [][]float32
}

// Fingerprint is the atomic, all-or-nothing aggregation of all thirteen
// embeddings for a single content item. Once constructed by New it is
// immutable; there is no way to obtain a partially populated Fingerprint.
type Fingerprint struct {
	dense  map[Embedder][]float32
	sparse map[Embedder]SparseVector
	tokens map[Embedder]TokenVectors
}

// Inputs bundles the raw embedder outputs supplied to the constructor. Every
// field for which the corresponding Embedder's DataKind matches must be
// populated; New validates this exhaustively.
type Inputs struct {
	Dense  map[Embedder][]float32
	Sparse map[Embedder]SparseVector
	Tokens map[Embedder]TokenVectors
}

// New validates I1 (completeness) and I2 (finiteness, plus zero-norm
// rejection for dense embeddings) and constructs an immutable Fingerprint,
// or returns the first offending embedder's error.
// Embedders are checked in declaration order (E1..E13) so the reported
// failure is deterministic.
func New(in Inputs) (*Fingerprint, error) {
	fp := &Fingerprint{
		dense:  make(map[Embedder][]float32),
		sparse: make(map[Embedder]SparseVector),
		tokens: make(map[Embedder]TokenVectors),
	}

	for _, e := range AllEmbedders() {
		switch e.DataKind() {
		case KindDense:
			v, ok := in.Dense[e]
			if !ok {
				return nil, memerr.New(memerr.KindDimension, "fingerprint.New", e.Name()+": missing dense embedding")
			}
			if len(v) != e.Dim() {
				return nil, memerr.DimensionMismatch("fingerprint.New:"+e.Name(), e.Dim(), len(v))
			}
			if err := validateFinite(e.Name(), v); err != nil {
				return nil, err
			}
			if Norm(v) == 0 {
				return nil, memerr.New(memerr.KindInvalidVector, "fingerprint.New", e.Name()+": zero-norm dense vector")
			}
			cp := make([]float32, len(v))
			copy(cp, v)
			fp.dense[e] = cp

		case KindSparse:
			sv, ok := in.Sparse[e]
			if !ok {
				return nil, memerr.New(memerr.KindDimension, "fingerprint.New", e.Name()+": missing sparse embedding")
			}
			if len(sv.Indices) != len(sv.Values) {
				return nil, memerr.New(memerr.KindDimension, "fingerprint.New", e.Name()+": indices/values length mismatch")
			}
			for _, idx := range sv.Indices {
				if int(idx) >= e.Dim() {
					return nil, memerr.DimensionMismatch("fingerprint.New:"+e.Name(), e.Dim(), int(idx)+1)
				}
			}
			for _, v := range sv.Values {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					return nil, memerr.New(memerr.KindInvalidVector, "fingerprint.New", e.Name()+": non-finite sparse value")
				}
			}
			idxCp := make([]uint16, len(sv.Indices))
			copy(idxCp, sv.Indices)
			valCp := make([]float32, len(sv.Values))
			copy(valCp, sv.Values)
			fp.sparse[e] = SparseVector{Indices: idxCp, Values: valCp}

		case KindTokenDense:
			tv, ok := in.Tokens[e]
			if !ok {
				return nil, memerr.New(memerr.KindDimension, "fingerprint.New", e.Name()+": missing token embedding")
			}
			if len(tv.Tokens) == 0 {
				return nil, memerr.New(memerr.KindDimension, "fingerprint.New", e.Name()+": empty token list")
			}
			cpTokens := make([][]float32, len(tv.Tokens))
			for i, t := range tv.Tokens {
				if len(t) != e.Dim() {
					return nil, memerr.DimensionMismatch("fingerprint.New:"+e.Name(), e.Dim(), len(t))
				}
				if err := validateFinite(e.Name(), t); err != nil {
					return nil, err
				}
				cp := make([]float32, len(t))
				copy(cp, t)
				cpTokens[i] = cp
			}
			fp.tokens[e] = TokenVectors{Tokens: cpTokens}
		}
	}

	return fp, nil
}

func validateFinite(ctx string, v []float32) error {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return memerr.New(memerr.KindInvalidVector, "fingerprint.New", ctx+": non-finite value")
		}
	}
	return nil
}

// Dense returns a copy of the dense embedding for e, or (nil, false) if e is
// not a dense embedder.
func (fp *Fingerprint) Dense(e Embedder) ([]float32, bool) {
	v, ok := fp.dense[e]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Sparse returns the sparse (indices, values) pair for e, or (zero, false)
// if e is not a sparse embedder.
func (fp *Fingerprint) Sparse(e Embedder) (SparseVector, bool) {
	v, ok := fp.sparse[e]
	return v, ok
}

// Tokens returns the per-token dense vectors for e, or (zero, false) if e is
// not a token-dense embedder.
func (fp *Fingerprint) Tokens(e Embedder) (TokenVectors, bool) {
	v, ok := fp.tokens[e]
	return v, ok
}

// Norm computes the L2 norm of a dense vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
