package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// PlasticTuning holds the empirical constants of the plastic model.
type PlasticTuning struct {
	SpecularScale          float64 `yaml:"specular_scale"`           // multiplier on the coating lobe
	MinSpecularProbability float64 `yaml:"min_specular_probability"` // lower clamp on the coating sampling probability
	MaxSpecularProbability float64 `yaml:"max_specular_probability"` // upper clamp; plastics are mostly diffuse
}

// DefaultPlasticTuning returns the physically neutral scale with a 5%..20% sampling range.
func DefaultPlasticTuning() PlasticTuning {
	return PlasticTuning{
		SpecularScale:          1.0,
		MinSpecularProbability: 0.05,
		MaxSpecularProbability: 0.2,
	}
}

// plasticModel is a dielectric coating over a diffuse substrate, precomputed per
// shading event.
type plasticModel struct {
	eta      float64
	invEta2  float64
	diffuse  core.Vec3 // substrate reflectance after the internal-scattering correction
	fIn      float64   // coating reflectance at the viewing angle
	pSpec    float64
	alpha    float64
	smooth   bool
	specular float64
}

func newPlasticModel(p *Params, wo core.Vec3, tuning PlasticTuning) plasticModel {
	eta := p.IntIOR / max(p.ExtIOR, epsilon)
	fdrInt := fresnelDiffuseReflectance(1 / eta)

	var diffuse core.Vec3
	if p.Nonlinear {
		// Internal bounces tint the substrate: albedo / (1 - albedo * Fdr)
		diffuse = core.Vec3{
			X: p.BaseColor.X / (1 - p.BaseColor.X*fdrInt + epsilon),
			Y: p.BaseColor.Y / (1 - p.BaseColor.Y*fdrInt + epsilon),
			Z: p.BaseColor.Z / (1 - p.BaseColor.Z*fdrInt + epsilon),
		}
	} else {
		diffuse = p.BaseColor.Multiply(1 / (1 - fdrInt + epsilon))
	}

	fIn := FresnelDielectric(wo.Z, eta)
	lo, hi := tuning.MinSpecularProbability, tuning.MaxSpecularProbability
	if hi < lo {
		lo, hi = hi, lo
	}
	return plasticModel{
		eta:      eta,
		invEta2:  1 / (eta * eta),
		diffuse:  diffuse,
		fIn:      fIn,
		pSpec:    math.Min(hi, math.Max(lo, fIn)),
		alpha:    p.Alpha(),
		smooth:   p.IsSmooth(),
		specular: tuning.SpecularScale,
	}
}

// diffuseLobe is attenuated by the coating on the way in and on the way out
func (m *plasticModel) diffuseLobe(wi core.Vec3) core.Vec3 {
	fOut := FresnelDielectric(wi.Z, m.eta)
	return m.diffuse.Multiply((1 - m.fIn) * (1 - fOut) * m.invEta2 / math.Pi)
}

func (m *plasticModel) specularLobe(wo, wi core.Vec3) core.Vec3 {
	if m.smooth {
		return core.Vec3{}
	}
	h := wo.Add(wi).Normalize()
	f := FresnelDielectric(wo.Dot(h), m.eta)
	d := DGGX(h.Z, m.alpha)
	g := GSmithGGX(wo.Z, wi.Z, m.alpha)
	return core.Splat(m.specular * f * d * g / (4*wo.Z*wi.Z + epsilon))
}

func (m *plasticModel) eval(wo, wi core.Vec3) core.Vec3 {
	if wo.Z <= 0 || wi.Z <= 0 {
		return core.Vec3{}
	}
	return m.diffuseLobe(wi).Add(m.specularLobe(wo, wi))
}

// pdf combines the lobes: pSpec * pdfSpec + (1 - pSpec) * pdfDiffuse.
// The smooth coating is a delta lobe and has no density.
func (m *plasticModel) pdf(wo, wi core.Vec3) float64 {
	if wo.Z <= 0 || wi.Z <= 0 {
		return 0
	}
	pdf := (1 - m.pSpec) * wi.Z / math.Pi
	if !m.smooth {
		h := wo.Add(wi).Normalize()
		pdf += m.pSpec * GGXReflectionPDF(h.Z, wo.Dot(h), m.alpha)
	}
	return pdf
}

func (m *plasticModel) sample(wo, u core.Vec3) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}

	var wi core.Vec3
	if u.Z < m.pSpec {
		if m.smooth {
			return deltaSample(mirror(wo), core.Splat(m.specular*m.fIn/m.pSpec), false)
		}
		h := SampleGGX(core.Vec2{X: u.X, Y: u.Y}, m.alpha)
		if wo.Dot(h) <= 0 {
			return invalidSample()
		}
		wi = core.Reflect(wo, h)
	} else {
		wi = core.SampleCosineHemisphereLocal(core.Vec2{X: u.X, Y: u.Y})
	}
	if wi.Z <= 0 {
		return invalidSample()
	}

	pdf := m.pdf(wo, wi)
	if pdf < epsilon {
		return invalidSample()
	}
	return BSDFSample{Wi: wi, Weight: m.eval(wo, wi).Multiply(wi.Z / pdf), PDF: pdf}
}
