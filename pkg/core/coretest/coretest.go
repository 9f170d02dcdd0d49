// Package coretest provides seeded samplers and direction generators for tests.
// The renderer itself draws from core.HashSampler.
package coretest

import (
	"math"
	"math/rand"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Sampler is a core.Sampler backed by math/rand
type Sampler struct {
	random *rand.Rand
}

var _ core.Sampler = (*Sampler)(nil)

// NewSampler returns a sampler seeded with seed
func NewSampler(seed int64) *Sampler {
	return &Sampler{random: rand.New(rand.NewSource(seed))}
}

func (s *Sampler) Get1D() float64 { return s.random.Float64() }

func (s *Sampler) Get2D() core.Vec2 { return core.NewVec2(s.Get1D(), s.Get1D()) }

func (s *Sampler) Get3D() core.Vec3 { return core.NewVec3(s.Get1D(), s.Get1D(), s.Get1D()) }

// UniformDirection maps u to a direction on the unit sphere with constant density 1/(4 pi)
func UniformDirection(u core.Vec2) core.Vec3 {
	cosTheta := 1 - 2*u.X
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	sinPhi, cosPhi := math.Sincos(2 * math.Pi * u.Y)
	return core.NewVec3(sinTheta*cosPhi, sinTheta*sinPhi, cosTheta)
}

// RandomDirection draws a uniform direction from random
func RandomDirection(random *rand.Rand) core.Vec3 {
	return UniformDirection(core.NewVec2(random.Float64(), random.Float64()))
}
