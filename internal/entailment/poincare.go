// Package entailment implements hyperbolic entailment cones: an O(1)
// IS-A-hierarchy containment test over a Poincaré-ball embedding, used to
// corroborate Contains/ScopedBy graph edges.
package entailment

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// Eps is the numerical tolerance used throughout this package for
// degenerate-point and zero-vector edge cases.
const Eps = 1e-6

// Point is a position in the Poincaré ball: a coordinate vector with norm
// strictly less than 1.
type Point struct {
	Coords []float64
}

// Origin returns the ball's origin point of the given dimension.
func Origin(dim int) Point { return Point{Coords: make([]float64, dim)} }

// Norm returns the Euclidean norm of the point's coordinates.
func (p Point) Norm() float64 {
	var sum float64
	for _, c := range p.Coords {
		sum += c * c
	}
	return math.Sqrt(sum)
}

// IsValid reports whether the point lies strictly inside the unit ball.
func (p Point) IsValid() bool { return p.Norm() < 1.0 }

// NewPoint validates and constructs a Point, failing fast per the
// original's "never unwrap in prod" discipline.
func NewPoint(coords []float64) (Point, error) {
	p := Point{Coords: append([]float64(nil), coords...)}
	if !p.IsValid() {
		return Point{}, memerr.New(memerr.KindInvalidVector, "entailment.NewPoint", "point norm must be < 1.0 to lie in the Poincare ball")
	}
	return p, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sqNorm(a []float64) float64 { return dot(a, a) }

// mobiusAdd computes the Möbius addition a ⊕ b in the Poincaré ball.
func mobiusAdd(a, b []float64) []float64 {
	ab := dot(a, b)
	an := sqNorm(a)
	bn := sqNorm(b)
	denom := 1 + 2*ab + an*bn
	out := make([]float64, len(a))
	if math.Abs(denom) < Eps {
		return out
	}
	numA := 1 + 2*ab + bn
	numB := 1 - an
	for i := range a {
		out[i] = (numA*a[i] + numB*b[i]) / denom
	}
	return out
}

func negate(a []float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = -v
	}
	return out
}

// Distance computes the Poincaré-ball geodesic distance between p and q.
func Distance(p, q Point) float64 {
	diff := mobiusAdd(negate(p.Coords), q.Coords)
	n := math.Sqrt(sqNorm(diff))
	if n >= 1 {
		n = 1 - Eps
	}
	return 2 * math.Atanh(n)
}

// LogMap computes the logarithmic map at p of point x: the tangent vector at
// p pointing toward x, whose norm equals the geodesic distance from p to x.
func LogMap(p, x Point) []float64 {
	u := mobiusAdd(negate(p.Coords), x.Coords)
	un := math.Sqrt(sqNorm(u))
	if un < Eps {
		return make([]float64, len(p.Coords))
	}
	pn2 := sqNorm(p.Coords)
	lambda := 2.0 / (1 - pn2)
	if math.Abs(lambda) < Eps {
		lambda = Eps
	}
	scale := (2.0 / lambda) * math.Atanh(math.Min(un, 1-Eps)) / un
	out := make([]float64, len(u))
	for i, v := range u {
		out[i] = scale * v
	}
	return out
}
