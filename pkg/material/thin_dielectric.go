package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// thinSlabReflectance returns the total reflectance and transmittance of a
// zero-thickness slab including every internal bounce, renormalized so the
// pair sums to exactly 1.
func thinSlabReflectance(cosTheta, eta float64) (r, t float64) {
	single := FresnelDielectric(cosTheta, eta)
	if single >= 1 {
		return 1, 0
	}
	trans := 1 - single
	rTotal := single + trans*trans*single/(1-single*single+epsilon)
	tTotal := trans * trans / (1 - single*single + epsilon)

	r = math.Min(1, math.Max(0, rTotal/(rTotal+tTotal)))
	return r, 1 - r
}

func sampleThinDielectric(p *Params, wo, u core.Vec3) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}
	eta := p.IntIOR / max(p.ExtIOR, epsilon)
	r, _ := thinSlabReflectance(wo.Z, eta)
	if u.X < r {
		return deltaSample(mirror(wo), core.Splat(1), false)
	}
	// Both interfaces refract by opposite amounts, so the direction is unchanged
	return deltaSample(wo.Negate(), core.Splat(1), true)
}
