package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// maxNesting bounds Blend/Mask recursion; deeper references fall back to diffuse.
const maxNesting = 8

// Dispatcher routes the three BSDF operations to the module selected by a
// record's Type. It is total over every Type value: unknown types shade as
// Diffuse. A Dispatcher is read-only after construction and safe for
// concurrent use.
type Dispatcher struct {
	Materials Table
	Plastic   PlasticTuning
}

// NewDispatcher creates a dispatcher over the scene's material table
func NewDispatcher(materials Table, plastic PlasticTuning) *Dispatcher {
	return &Dispatcher{Materials: materials, Plastic: plastic}
}

// relativeEta returns the transmitted-over-incident index ratio for the side hit
func relativeEta(p *Params, frontFace bool) float64 {
	intIOR := max(p.IntIOR, epsilon)
	extIOR := max(p.ExtIOR, epsilon)
	if frontFace {
		return intIOR / extIOR
	}
	return extIOR / intIOR
}

// Evaluate returns the BSDF value for the world-space pair (wo, wi)
func (d *Dispatcher) Evaluate(p *Params, wo, wi core.Vec3, s Surface) core.Vec3 {
	frame := core.NewFrame(s.Normal)
	return d.evalLocal(p, frame.ToLocal(wo), frame.ToLocal(wi), s.FrontFace, 0)
}

// PDF returns the solid-angle density with which Sample produces wi
func (d *Dispatcher) PDF(p *Params, wo, wi core.Vec3, s Surface) float64 {
	frame := core.NewFrame(s.Normal)
	return d.pdfLocal(p, frame.ToLocal(wo), frame.ToLocal(wi), s.FrontFace, 0)
}

// Sample draws a continuation direction from three uniform numbers in [0, 1)
func (d *Dispatcher) Sample(p *Params, wo core.Vec3, s Surface, u core.Vec3) BSDFSample {
	frame := core.NewFrame(s.Normal)
	result := d.sampleLocal(p, frame.ToLocal(wo), s.FrontFace, u, 0)
	if result.PDF > 0 {
		result.Wi = frame.ToWorld(result.Wi).Normalize()
	}
	return result
}

// child resolves a Blend/Mask reference; missing children shade as a diffuse
// surface with the parent's base color.
func (d *Dispatcher) child(p *Params, slot int, depth int) Params {
	idx := p.Children[slot]
	if depth >= maxNesting || idx < 0 || int(idx) >= len(d.Materials) {
		return NewDiffuse(p.BaseColor)
	}
	return d.Materials[idx]
}

func (d *Dispatcher) evalLocal(p *Params, wo, wi core.Vec3, frontFace bool, depth int) core.Vec3 {
	switch p.Type {
	case Conductor, RoughConductor:
		return evalConductor(p, wo, wi)
	case Dielectric, RoughDielectric:
		return evalDielectric(p, wo, wi, relativeEta(p, frontFace))
	case ThinDielectric, Null:
		return core.Vec3{}
	case Plastic, RoughPlastic:
		m := newPlasticModel(p, wo, d.Plastic)
		return m.eval(wo, wi)
	case Principled:
		m := newPrincipledModel(p, wo, relativeEta(p, frontFace))
		return m.evalContinuous(wo, wi)
	case Blend:
		w := clamp01(p.BlendWeight)
		first, second := d.child(p, 0, depth), d.child(p, 1, depth)
		a := d.evalLocal(&first, wo, wi, frontFace, depth+1)
		b := d.evalLocal(&second, wo, wi, frontFace, depth+1)
		return a.Multiply(1 - w).Add(b.Multiply(w))
	case Mask:
		wrapped := d.child(p, 0, depth)
		return d.evalLocal(&wrapped, wo, wi, frontFace, depth+1).Multiply(clamp01(p.Opacity))
	default:
		return evalDiffuse(p, wo, wi)
	}
}

func (d *Dispatcher) pdfLocal(p *Params, wo, wi core.Vec3, frontFace bool, depth int) float64 {
	switch p.Type {
	case Conductor, RoughConductor:
		return pdfConductor(p, wo, wi)
	case Dielectric, RoughDielectric:
		return pdfDielectric(p, wo, wi, relativeEta(p, frontFace))
	case ThinDielectric, Null:
		return 0
	case Plastic, RoughPlastic:
		m := newPlasticModel(p, wo, d.Plastic)
		return m.pdf(wo, wi)
	case Principled:
		m := newPrincipledModel(p, wo, relativeEta(p, frontFace))
		return m.pdfContinuous(wo, wi)
	case Blend:
		w := clamp01(p.BlendWeight)
		first, second := d.child(p, 0, depth), d.child(p, 1, depth)
		return (1-w)*d.pdfLocal(&first, wo, wi, frontFace, depth+1) +
			w*d.pdfLocal(&second, wo, wi, frontFace, depth+1)
	case Mask:
		wrapped := d.child(p, 0, depth)
		return clamp01(p.Opacity) * d.pdfLocal(&wrapped, wo, wi, frontFace, depth+1)
	default:
		return pdfDiffuse(wo, wi)
	}
}

func (d *Dispatcher) sampleLocal(p *Params, wo core.Vec3, frontFace bool, u core.Vec3, depth int) BSDFSample {
	switch p.Type {
	case Conductor, RoughConductor:
		return sampleConductor(p, wo, u)
	case Dielectric, RoughDielectric:
		return sampleDielectric(p, wo, u, relativeEta(p, frontFace))
	case ThinDielectric:
		return sampleThinDielectric(p, wo, u)
	case Plastic, RoughPlastic:
		m := newPlasticModel(p, wo, d.Plastic)
		return m.sample(wo, u)
	case Principled:
		m := newPrincipledModel(p, wo, relativeEta(p, frontFace))
		return m.sample(wo, u)
	case Null:
		return passThrough(wo)
	case Blend:
		return d.sampleBlend(p, wo, frontFace, u, depth)
	case Mask:
		return d.sampleMask(p, wo, frontFace, u, depth)
	default:
		return sampleDiffuse(p, wo, u)
	}
}

func passThrough(wo core.Vec3) BSDFSample {
	return deltaSample(wo.Negate(), core.Splat(1), true)
}

// sampleBlend draws the second child when u.X >= 1 - weight. u.X is rescaled to
// [0, 1) within the chosen branch and the child's pdf is scaled by the branch probability.
func (d *Dispatcher) sampleBlend(p *Params, wo core.Vec3, frontFace bool, u core.Vec3, depth int) BSDFSample {
	w := clamp01(p.BlendWeight)
	threshold := 1 - w

	var chosen Params
	var prob float64
	if u.X >= threshold {
		chosen, prob = d.child(p, 1, depth), w
		u.X = (u.X - threshold) / w
	} else {
		chosen, prob = d.child(p, 0, depth), threshold
		u.X /= threshold
	}
	u.X = math.Min(u.X, 0.9999999)

	s := d.sampleLocal(&chosen, wo, frontFace, u, depth+1)
	s.PDF *= prob
	return s
}

// sampleMask passes the ray through when u.X < 1 - opacity and otherwise
// samples the wrapped material with its pdf scaled by opacity. Delta lobes are
// scaled too, matching sampleBlend.
func (d *Dispatcher) sampleMask(p *Params, wo core.Vec3, frontFace bool, u core.Vec3, depth int) BSDFSample {
	opacity := clamp01(p.Opacity)
	threshold := 1 - opacity
	if u.X < threshold {
		return passThrough(wo)
	}

	u.X = math.Min((u.X-threshold)/opacity, 0.9999999)
	wrapped := d.child(p, 0, depth)
	s := d.sampleLocal(&wrapped, wo, frontFace, u, depth+1)
	s.PDF *= opacity
	return s
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
