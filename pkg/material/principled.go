package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// principledModel is the Disney-style layered BSDF: Burley diffuse with sheen,
// a tinted GGX specular lobe, a GTR1 clearcoat and a rough dielectric
// transmission lobe. Lobe selection probabilities partition [0, 1).
type principledModel struct {
	p *Params

	alpha          float64
	clearcoatAlpha float64
	eta            float64
	smooth         bool

	cspec0 core.Vec3
	csheen core.Vec3

	diffuseWeight float64 // (1 - metallic)(1 - specTrans)
	transWeight   float64 // (1 - metallic) specTrans

	pDiffuse, pSpecular, pClearcoat, pTransmission float64
}

func newPrincipledModel(p *Params, wo core.Vec3, eta float64) principledModel {
	lum := p.BaseColor.Luminance()
	tint := core.Splat(1)
	if lum > 0 {
		tint = p.BaseColor.Multiply(1 / lum)
	}

	dielectricF0 := core.Splat(1).Lerp(tint, p.SpecTint).Multiply(p.Specular * 0.08)
	m := principledModel{
		p:              p,
		alpha:          p.Alpha(),
		clearcoatAlpha: 0.1 + (0.001-0.1)*p.ClearcoatGloss,
		eta:            eta,
		smooth:         p.IsSmooth(),
		cspec0:         dielectricF0.Lerp(p.BaseColor, p.Metallic),
		csheen:         core.Splat(1).Lerp(tint, p.SheenTint),
		diffuseWeight:  (1 - p.Metallic) * (1 - p.SpecTrans),
		transWeight:    (1 - p.Metallic) * p.SpecTrans,
	}

	wD := lum * m.diffuseWeight
	wS := FresnelSchlick(wo.Z, m.cspec0).Luminance()
	wC := 0.25 * p.Clearcoat
	wT := m.transWeight
	total := wD + wS + wC + wT
	if total <= 0 {
		m.pDiffuse = 1
		return m
	}
	m.pDiffuse = wD / total
	m.pSpecular = wS / total
	m.pClearcoat = wC / total
	m.pTransmission = wT / total
	return m
}

// evalContinuous returns the lobes that have a density. The specular and
// transmission lobes are excluded when the surface is smooth.
func (m *principledModel) evalContinuous(wo, wi core.Vec3) core.Vec3 {
	if wo.Z <= 0 || wi.Z == 0 {
		return core.Vec3{}
	}

	result := core.Vec3{}
	if m.transWeight > 0 && !m.smooth {
		t := evalRoughDielectricValue(wo, wi, m.alpha, m.eta)
		result = result.Add(m.p.BaseColor.Multiply(t * m.transWeight))
	}
	if wi.Z < 0 {
		return result
	}

	h := wo.Add(wi).Normalize()
	lDotH := wi.Dot(h)
	fh := SchlickWeight(lDotH)

	if m.diffuseWeight > 0 {
		fl := SchlickWeight(wi.Z)
		fv := SchlickWeight(wo.Z)
		fd90 := 0.5 + 2*lDotH*lDotH*m.p.Roughness
		fd := (1 + (fd90-1)*fl) * (1 + (fd90-1)*fv)
		diffuse := m.p.BaseColor.Multiply(fd / math.Pi)
		sheen := m.csheen.Multiply(fh * m.p.Sheen)
		result = result.Add(diffuse.Add(sheen).Multiply(m.diffuseWeight))
	}

	if !m.smooth {
		d := DGGX(h.Z, m.alpha)
		g := GSmithGGX(wo.Z, wi.Z, m.alpha)
		f := m.cspec0.Lerp(core.Splat(1), fh)
		result = result.Add(f.Multiply(d * g / (4*wo.Z*wi.Z + epsilon)))
	}

	if m.p.Clearcoat > 0 {
		dr := DGTR1(h.Z, m.clearcoatAlpha)
		fr := 0.04 + 0.96*fh
		gr := GSmithGGX(wo.Z, wi.Z, 0.25)
		result = result.Add(core.Splat(0.25 * m.p.Clearcoat * dr * fr * gr / (4*wo.Z*wi.Z + epsilon)))
	}
	return result
}

// pdfContinuous mixes the lobe densities with their selection probabilities.
func (m *principledModel) pdfContinuous(wo, wi core.Vec3) float64 {
	if wo.Z <= 0 || wi.Z == 0 {
		return 0
	}
	pdf := 0.0
	if m.pTransmission > 0 && !m.smooth {
		pdf += m.pTransmission * pdfRoughDielectric(wo, wi, m.alpha, m.eta)
	}
	if wi.Z < 0 {
		return pdf
	}

	h := wo.Add(wi).Normalize()
	pdf += m.pDiffuse * wi.Z / math.Pi
	if !m.smooth {
		pdf += m.pSpecular * GGXReflectionPDF(h.Z, wo.Dot(h), m.alpha)
	}
	if m.pClearcoat > 0 {
		pdf += m.pClearcoat * DGTR1(h.Z, m.clearcoatAlpha) * h.Z / (4*math.Abs(wo.Dot(h)) + epsilon)
	}
	return pdf
}

func (m *principledModel) sample(wo, u core.Vec3) BSDFSample {
	if wo.Z <= 0 {
		return invalidSample()
	}
	uv := core.Vec2{X: u.X, Y: u.Y}
	sel := u.Z

	var wi core.Vec3
	switch {
	case sel < m.pDiffuse:
		wi = core.SampleCosineHemisphereLocal(uv)

	case sel < m.pDiffuse+m.pSpecular:
		if m.smooth {
			f := FresnelSchlick(wo.Z, m.cspec0)
			return deltaSample(mirror(wo), f.Multiply(1/m.pSpecular), false)
		}
		h := SampleGGX(uv, m.alpha)
		if wo.Dot(h) <= 0 {
			return invalidSample()
		}
		wi = core.Reflect(wo, h)

	case sel < m.pDiffuse+m.pSpecular+m.pClearcoat:
		h := SampleGTR1(uv, m.clearcoatAlpha)
		if wo.Dot(h) <= 0 {
			return invalidSample()
		}
		wi = core.Reflect(wo, h)

	default:
		if m.pTransmission <= 0 {
			return invalidSample()
		}
		start := m.pDiffuse + m.pSpecular + m.pClearcoat
		lobeU := core.Vec3{X: u.X, Y: u.Y, Z: math.Min((sel-start)/m.pTransmission, 0.9999999)}
		if m.smooth {
			s := sampleSmoothDielectric(wo, lobeU, m.eta)
			s.Weight = s.Weight.MultiplyVec(m.p.BaseColor).Multiply(m.transWeight / m.pTransmission)
			return s
		}
		s := sampleRoughDielectric(wo, lobeU, m.alpha, m.eta)
		if s.PDF <= 0 {
			return s
		}
		wi = s.Wi
	}

	if wi.Z == 0 || (wi.Z < 0 && m.pTransmission <= 0) {
		return invalidSample()
	}
	pdf := m.pdfContinuous(wo, wi)
	if pdf < epsilon {
		return invalidSample()
	}
	f := m.evalContinuous(wo, wi)
	return BSDFSample{
		Wi:        wi,
		Weight:    f.Multiply(math.Abs(wi.Z) / pdf),
		PDF:       pdf,
		Refracted: wi.Z < 0,
	}
}
