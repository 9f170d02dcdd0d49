package material

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// conductorFresnel returns the tinted reflectance at the given cosine. Materials
// without complex IOR data behave as a generic mirror with Schlick reflectance
// starting at the base color.
func conductorFresnel(p *Params, cosTheta float64) core.Vec3 {
	if !p.UsesComplexIOR {
		return FresnelSchlick(cosTheta, p.BaseColor)
	}
	ext := p.ExtIOR
	if ext <= 0 {
		ext = 1
	}
	f := FresnelConductor(cosTheta, p.Eta.Multiply(1/ext), p.K.Multiply(1/ext))
	return f.MultiplyVec(p.BaseColor)
}

func evalConductor(p *Params, wo, wi core.Vec3) core.Vec3 {
	if p.IsSmooth() || wo.Z <= 0 || wi.Z <= 0 {
		return core.Vec3{}
	}
	alpha := p.Alpha()
	h := wo.Add(wi).Normalize()
	d := DGGX(h.Z, alpha)
	g := GSmithGGX(wo.Z, wi.Z, alpha)
	f := conductorFresnel(p, wo.Dot(h))
	return f.Multiply(d * g / (4*wo.Z*wi.Z + epsilon))
}

func pdfConductor(p *Params, wo, wi core.Vec3) float64 {
	if p.IsSmooth() || wo.Z <= 0 || wi.Z <= 0 {
		return 0
	}
	h := wo.Add(wi).Normalize()
	return GGXReflectionPDF(h.Z, wo.Dot(h), p.Alpha())
}

func sampleConductor(p *Params, wo, u core.Vec3) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}
	if p.IsSmooth() {
		return deltaSample(mirror(wo), conductorFresnel(p, wo.Z), false)
	}

	alpha := p.Alpha()
	h := SampleGGX(core.Vec2{X: u.X, Y: u.Y}, alpha)
	woDotH := wo.Dot(h)
	if woDotH <= 0 {
		return invalidSample()
	}
	wi := core.Reflect(wo, h)
	if wi.Z <= 0 {
		return invalidSample()
	}

	pdf := GGXReflectionPDF(h.Z, woDotH, alpha)
	g := GSmithGGX(wo.Z, wi.Z, alpha)
	// D cancels between f and pdf: weight = F G (wo·h) / (cos_o h.z)
	weight := conductorFresnel(p, woDotH).Multiply(g * woDotH / (wo.Z*h.Z + epsilon))
	return BSDFSample{Wi: wi, Weight: weight, PDF: pdf}
}
