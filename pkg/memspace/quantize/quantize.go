// Package quantize implements the per-embedder quantization router (C2):
// a total function from Embedder to a statically assigned quantization
// method, dispatching strictly on that assignment. It never falls back to
// float32 — an unimplemented method is itself a fatal error kind.
package quantize

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// Method is the quantization scheme assigned to an embedder.
type Method int

const (
	MethodPQ8 Method = iota
	MethodFloat8E4M3
	MethodBinary
	MethodSparseNative
	MethodTokenPruning
)

func (m Method) String() string {
	switch m {
	case MethodPQ8:
		return "PQ8"
	case MethodFloat8E4M3:
		return "Float8-E4M3"
	case MethodBinary:
		return "Binary"
	case MethodSparseNative:
		return "SparseNative"
	case MethodTokenPruning:
		return "TokenPruning"
	default:
		return "Unknown"
	}
}

// methodTable is the mandatory, static assignment from §6.4. It is a total
// function over fingerprint.AllEmbedders(); TestMethodTableExhaustive in
// quantize_test.go asserts every embedder has an entry.
var methodTable = map[fingerprint.Embedder]Method{
	fingerprint.Semantic:           MethodPQ8,
	fingerprint.Causal:             MethodPQ8,
	fingerprint.Code:               MethodPQ8,
	fingerprint.Multimodal:         MethodPQ8,
	fingerprint.TemporalRecent:     MethodFloat8E4M3,
	fingerprint.TemporalPeriodic:   MethodFloat8E4M3,
	fingerprint.TemporalPositional: MethodFloat8E4M3,
	fingerprint.Graph:              MethodFloat8E4M3,
	fingerprint.Entity:             MethodFloat8E4M3,
	fingerprint.HDC:                MethodBinary,
	fingerprint.Sparse:             MethodSparseNative,
	fingerprint.SPLADE:             MethodSparseNative,
	fingerprint.LateInteraction:    MethodTokenPruning,
}

// MethodFor returns the statically assigned method for e.
func MethodFor(e fingerprint.Embedder) Method { return methodTable[e] }

// implemented reports whether a dense encoder for the given method exists.
// Per §3.3/§4.2, PQ8 and Float8-E4M3 are declared but not yet implemented;
// the router must fail with QuantizerNotImplemented rather than silently
// emit float32.
func implemented(m Method) bool {
	return m == MethodBinary
}

// QuantizedEmbedding is the quantized payload produced by Quantize.
type QuantizedEmbedding struct {
	Method      Method
	OriginalDim int
	Data        []byte
	// Threshold is the binary-quantization decision boundary; part of
	// metadata per §4.2. Unused for other methods.
	Threshold float32
}

// CanQuantize reports whether e's statically assigned method has an encoder.
func CanQuantize(e fingerprint.Embedder) bool { return implemented(methodTable[e]) }

// ExpectedSize returns the number of bytes Quantize would produce for a
// dense vector of the given dimension under e's assigned method.
func ExpectedSize(e fingerprint.Embedder, dim int) (int, error) {
	m := methodTable[e]
	switch m {
	case MethodBinary:
		return (dim + 7) / 8, nil
	case MethodPQ8:
		return 0, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.ExpectedSize", e.Name()+": "+m.String())
	case MethodFloat8E4M3:
		return 0, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.ExpectedSize", e.Name()+": "+m.String())
	case MethodSparseNative, MethodTokenPruning:
		return 0, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.ExpectedSize", e.Name()+": method has no fixed dense size")
	default:
		return 0, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.ExpectedSize", e.Name())
	}
}

const defaultBinaryThreshold float32 = 0.0

// Quantize dispatches on e's statically assigned method. Sparse embedders
// (E6, E13) and the token-pruning embedder (E12) never reach the dense path
// here: calling Quantize for them fails with InvalidModelInput, since their
// payload is the native (indices, values) / pruned-token representation,
// not a dense vector.
func Quantize(e fingerprint.Embedder, dense []float32) (*QuantizedEmbedding, error) {
	if e.IsSparse() || e.DataKind() == fingerprint.KindTokenDense {
		return nil, memerr.New(memerr.KindDimension, "quantize.Quantize", e.Name()+": not a dense-path embedder (InvalidModelInput)")
	}
	for _, v := range dense {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, memerr.New(memerr.KindInvalidVector, "quantize.Quantize", e.Name()+": non-finite input")
		}
	}

	m := methodTable[e]
	switch m {
	case MethodBinary:
		return quantizeBinary(dense, defaultBinaryThreshold), nil
	default:
		return nil, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.Quantize", e.Name()+": "+m.String())
	}
}

// Dequantize reverses Quantize for implemented methods.
func Dequantize(e fingerprint.Embedder, q *QuantizedEmbedding) ([]float32, error) {
	switch q.Method {
	case MethodBinary:
		return dequantizeBinary(q), nil
	default:
		return nil, memerr.New(memerr.KindQuantizerNotImplemented, "quantize.Dequantize", e.Name()+": "+q.Method.String())
	}
}

// quantizeBinary packs each component as sign(x) >= threshold into a byte
// vector of length ceil(dim/8), MSB-first within each byte. The default
// threshold (0.0) means "value >= 0 -> 1 bit", so an all-zero input vector
// maps to all-0xFF bytes — this is an intentional, documented artifact
// (§4.2), not a bug: the decision is "is this component non-negative", and
// zero satisfies that.
func quantizeBinary(dense []float32, threshold float32) *QuantizedEmbedding {
	dim := len(dense)
	nbytes := (dim + 7) / 8
	data := make([]byte, nbytes)
	for i, v := range dense {
		if v >= threshold {
			data[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return &QuantizedEmbedding{
		Method:      MethodBinary,
		OriginalDim: dim,
		Data:        data,
		Threshold:   threshold,
	}
}

// dequantizeBinary reconstructs a sign-only dense vector (+1/-1 per
// component) from a packed binary payload. Magnitude information is
// irrecoverable by design: binary quantization preserves sign pattern only
// (P3, P10).
func dequantizeBinary(q *QuantizedEmbedding) []float32 {
	out := make([]float32, q.OriginalDim)
	for i := 0; i < q.OriginalDim; i++ {
		bit := (q.Data[i/8] >> (7 - uint(i%8))) & 1
		if bit == 1 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}
