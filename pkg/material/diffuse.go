package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Lambertian reflection. All directions are local (normal = +Z).

func evalDiffuse(p *Params, wo, wi core.Vec3) core.Vec3 {
	if wi.Z <= 0 {
		return core.Vec3{}
	}
	return p.BaseColor.Multiply(1 / math.Pi)
}

func pdfDiffuse(wo, wi core.Vec3) float64 {
	if wi.Z <= 0 {
		return 0
	}
	return wi.Z / math.Pi
}

func sampleDiffuse(p *Params, wo, u core.Vec3) BSDFSample {
	wi := core.SampleCosineHemisphereLocal(core.Vec2{X: u.X, Y: u.Y})
	if wi.Z <= 0 {
		return invalidSample()
	}
	// albedo/pi * cos / (cos/pi)
	return BSDFSample{Wi: wi, Weight: p.BaseColor, PDF: wi.Z / math.Pi}
}
