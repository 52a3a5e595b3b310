package entailment

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

const minAperture = 1e-6
const maxAperture = math.Pi / 2

// ConeConfig governs aperture decay with hierarchy depth: aperture =
// clamp(baseAperture * decay^depth, minAperture, maxAperture).
type ConeConfig struct {
	BaseAperture float64
	Decay        float64
}

// DefaultConeConfig: a wide root aperture that narrows by 15% per
// hierarchy level.
var DefaultConeConfig = ConeConfig{BaseAperture: 1.0, Decay: 0.85}

// ComputeAperture returns the decayed aperture at the given depth, clamped
// to the valid (0, π/2] range.
func (c ConeConfig) ComputeAperture(depth int) float64 {
	a := c.BaseAperture * math.Pow(c.Decay, float64(depth))
	if a < minAperture {
		a = minAperture
	}
	if a > maxAperture {
		a = maxAperture
	}
	return a
}

// Cone is an entailment cone rooted at Apex: every point whose angular
// offset from the cone axis (the direction back toward the ball's origin)
// is within EffectiveAperture() is considered entailed by the apex concept.
type Cone struct {
	Apex           Point
	Aperture       float64
	ApertureFactor float64
	Depth          int
}

// NewCone constructs a cone at apex for the given hierarchy depth, deriving
// its base aperture from config. Fails fast if apex is invalid or the
// derived aperture falls outside (0, π/2].
func NewCone(apex Point, depth int, config ConeConfig) (*Cone, error) {
	if !apex.IsValid() {
		return nil, memerr.New(memerr.KindInvalidVector, "entailment.NewCone", "apex point norm must be < 1.0")
	}
	aperture := config.ComputeAperture(depth)
	if aperture <= 0 || aperture > maxAperture {
		return nil, memerr.New(memerr.KindInvalidVector, "entailment.NewCone", "computed aperture out of (0, pi/2] range")
	}
	return &Cone{Apex: apex, Aperture: aperture, ApertureFactor: 1.0, Depth: depth}, nil
}

// EffectiveAperture applies ApertureFactor and clamps to the valid range.
func (c *Cone) EffectiveAperture() float64 {
	eff := c.Aperture * c.ApertureFactor
	if eff < minAperture {
		eff = minAperture
	}
	if eff > maxAperture {
		eff = maxAperture
	}
	return eff
}

// Contains reports whether point lies within the cone: its angular offset
// from the cone's axis (apex -> origin direction) is within the effective
// aperture. A point at the apex, or a cone whose apex sits at the ball's
// origin, is always contained (angle treated as 0).
func (c *Cone) Contains(point Point) bool {
	return c.angle(point) <= c.EffectiveAperture()
}

func (c *Cone) angle(point Point) float64 {
	if Distance(c.Apex, point) < Eps {
		return 0
	}
	if c.Apex.Norm() < Eps {
		return 0
	}

	tangent := LogMap(c.Apex, point)
	origin := Origin(len(c.Apex.Coords))
	toOrigin := LogMap(c.Apex, origin)

	tNorm := math.Sqrt(sqNorm(tangent))
	oNorm := math.Sqrt(sqNorm(toOrigin))
	if tNorm < Eps || oNorm < Eps {
		return 0
	}

	cosAngle := dot(tangent, toOrigin) / (tNorm * oNorm)
	if cosAngle > 1 {
		cosAngle = 1
	}
	if cosAngle < -1 {
		cosAngle = -1
	}
	return math.Acos(cosAngle)
}

// BuildCone constructs a child cone at apex one level deeper than its
// parent's depth, for callers building a hierarchy top-down from a known
// parent cone.
func BuildCone(apex Point, parentDepth int, config ConeConfig) (*Cone, error) {
	return NewCone(apex, parentDepth+1, config)
}
