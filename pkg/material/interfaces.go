package material

import "github.com/df07/go-mitsuba-pathtracer/pkg/core"

// BSDFSample is the outcome of sampling a continuation direction.
// A PDF of zero marks an invalid sample and the path should stop.
type BSDFSample struct {
	Wi        core.Vec3 // sampled direction, pointing away from the surface
	Weight    core.Vec3 // f(wo, wi) * |cos(wi)| / pdf
	PDF       float64   // solid-angle density; 1 for delta lobes by convention
	Refracted bool      // wi is on the opposite side of the normal
	Delta     bool      // wi came from a delta distribution
}

// Surface is the shading context at a hit point.
type Surface struct {
	Normal    core.Vec3 // unit shading normal on the side of wo
	FrontFace bool      // the incoming ray hit the outside of the surface
}

func invalidSample() BSDFSample {
	return BSDFSample{}
}

func deltaSample(wi, weight core.Vec3, refracted bool) BSDFSample {
	return BSDFSample{Wi: wi, Weight: weight, PDF: 1, Refracted: refracted, Delta: true}
}

// mirror reflects a local direction about +Z
func mirror(wo core.Vec3) core.Vec3 {
	return core.Vec3{X: -wo.X, Y: -wo.Y, Z: wo.Z}
}
