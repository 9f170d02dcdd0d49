package integrator

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Integrator computes the radiance arriving along a camera ray
type Integrator interface {
	Trace(ray core.Ray, sampler core.Sampler) core.Vec3
}

// Config bounds path length and variance
type Config struct {
	MaxBounces   int     // hard cap on surface interactions per path
	RRMinBounces int     // bounces before Russian roulette starts
	FireflyClamp float64 // ceiling on the largest throughput channel
	MaxRadiance  float64 // per-sample radiance clamp before accumulation
	RayEpsilon   float64 // origin offset for continuation rays
}

// DefaultConfig returns the settings used by the renderer unless overridden
func DefaultConfig() Config {
	return Config{
		MaxBounces:   8,
		RRMinBounces: 3,
		FireflyClamp: 100,
		MaxRadiance:  1000,
		RayEpsilon:   1e-4,
	}
}
