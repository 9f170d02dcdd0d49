package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Dielectric interfaces. eta is the transmitted-side index over the incident-side
// index. Transmitted radiance is scaled by 1/eta² (the squared incident/transmitted
// ratio) because radiance is compressed or expanded across the boundary.

// refractLocal refracts wo through a microfacet with normal m (m·wo > 0).
// ok is false on total internal reflection.
func refractLocal(wo, m core.Vec3, eta float64) (core.Vec3, bool) {
	cosI := wo.Dot(m)
	sin2T := (1 - cosI*cosI) / (eta * eta)
	if sin2T >= 1 {
		return core.Vec3{}, false
	}
	cosT := math.Sqrt(1 - sin2T)
	return m.Multiply(cosI/eta - cosT).Subtract(wo.Multiply(1 / eta)), true
}

func sampleSmoothDielectric(wo, u core.Vec3, eta float64) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}
	f := FresnelDielectric(wo.Z, eta)
	if u.X < f {
		return deltaSample(mirror(wo), core.Splat(1), false)
	}
	wi, ok := refractLocal(wo, core.Vec3{Z: 1}, eta)
	if !ok {
		return deltaSample(mirror(wo), core.Splat(1), false)
	}
	return deltaSample(wi, core.Splat(1/(eta*eta)), true)
}

// transmissionHalfVector returns the generalized half vector for a refraction pair,
// oriented towards +Z.
func transmissionHalfVector(wo, wi core.Vec3, eta float64) core.Vec3 {
	h := wo.Add(wi.Multiply(eta)).Normalize()
	if h.Z < 0 {
		h = h.Negate()
	}
	return h
}

// evalRoughDielectricValue returns the scalar BSDF value of a rough interface.
func evalRoughDielectricValue(wo, wi core.Vec3, alpha, eta float64) float64 {
	if wo.Z <= 0 || wi.Z == 0 {
		return 0
	}

	if wi.Z > 0 {
		h := wo.Add(wi).Normalize()
		f := FresnelDielectric(wo.Dot(h), eta)
		return f * DGGX(h.Z, alpha) * GSmithGGX(wo.Z, wi.Z, alpha) / (4*wo.Z*wi.Z + epsilon)
	}

	h := transmissionHalfVector(wo, wi, eta)
	woDotH := wo.Dot(h)
	wiDotH := wi.Dot(h)
	if woDotH <= 0 || wiDotH >= 0 {
		return 0
	}
	f := FresnelDielectric(woDotH, eta)
	denom := woDotH + eta*wiDotH
	d := DGGX(h.Z, alpha)
	g := GSmithGGX(wo.Z, wi.Z, alpha)
	// eta² of the Jacobian cancels with the 1/eta² radiance scaling
	return (1 - f) * d * g * math.Abs(woDotH*wiDotH) / (wo.Z*math.Abs(wi.Z)*denom*denom + epsilon)
}

func pdfRoughDielectric(wo, wi core.Vec3, alpha, eta float64) float64 {
	if wo.Z <= 0 || wi.Z == 0 {
		return 0
	}

	if wi.Z > 0 {
		h := wo.Add(wi).Normalize()
		woDotH := wo.Dot(h)
		f := FresnelDielectric(woDotH, eta)
		return f * GGXReflectionPDF(h.Z, woDotH, alpha)
	}

	h := transmissionHalfVector(wo, wi, eta)
	woDotH := wo.Dot(h)
	wiDotH := wi.Dot(h)
	if woDotH <= 0 || wiDotH >= 0 {
		return 0
	}
	f := FresnelDielectric(woDotH, eta)
	denom := woDotH + eta*wiDotH
	dwhdwi := eta * eta * math.Abs(wiDotH) / (denom*denom + epsilon)
	return (1 - f) * DGGX(h.Z, alpha) * h.Z * dwhdwi
}

// sampleRoughDielectric picks reflection or refraction about a GGX half vector
// with probability equal to its Fresnel term. u.Z drives the branch choice.
func sampleRoughDielectric(wo, u core.Vec3, alpha, eta float64) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}
	h := SampleGGX(core.Vec2{X: u.X, Y: u.Y}, alpha)
	woDotH := wo.Dot(h)
	if woDotH <= 0 {
		return invalidSample()
	}
	f := FresnelDielectric(woDotH, eta)
	d := DGGX(h.Z, alpha)

	if u.Z < f {
		wi := core.Reflect(wo, h)
		if wi.Z <= 0 {
			return invalidSample()
		}
		g := GSmithGGX(wo.Z, wi.Z, alpha)
		return BSDFSample{
			Wi:     wi,
			Weight: core.Splat(g * woDotH / (wo.Z*h.Z + epsilon)),
			PDF:    f * d * h.Z / (4*woDotH + epsilon),
		}
	}

	wi, ok := refractLocal(wo, h, eta)
	if !ok || wi.Z >= 0 {
		return invalidSample()
	}
	wiDotH := wi.Dot(h)
	denom := woDotH + eta*wiDotH
	dwhdwi := eta * eta * math.Abs(wiDotH) / (denom*denom + epsilon)
	g := GSmithGGX(wo.Z, wi.Z, alpha)
	return BSDFSample{
		Wi:        wi,
		Weight:    core.Splat(g * woDotH / ((wo.Z*h.Z + epsilon) * eta * eta)),
		PDF:       (1 - f) * d * h.Z * dwhdwi,
		Refracted: true,
	}
}

func evalDielectric(p *Params, wo, wi core.Vec3, eta float64) core.Vec3 {
	if p.IsSmooth() {
		return core.Vec3{}
	}
	return core.Splat(evalRoughDielectricValue(wo, wi, p.Alpha(), eta))
}

func pdfDielectric(p *Params, wo, wi core.Vec3, eta float64) float64 {
	if p.IsSmooth() {
		return 0
	}
	return pdfRoughDielectric(wo, wi, p.Alpha(), eta)
}

func sampleDielectric(p *Params, wo, u core.Vec3, eta float64) BSDFSample {
	if p.IsSmooth() {
		return sampleSmoothDielectric(wo, u, eta)
	}
	return sampleRoughDielectric(wo, u, p.Alpha(), eta)
}
