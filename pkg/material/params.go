package material

import (
	"strings"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Type selects the BSDF family a Params record describes.
type Type int32

const (
	Diffuse Type = iota
	Conductor
	RoughConductor
	Dielectric
	RoughDielectric
	Plastic
	RoughPlastic
	ThinDielectric
	Principled
	Blend
	Mask
	Null
)

// ParseType looks up a material type by its scene-file plugin name.
func ParseType(name string) (Type, bool) {
	switch strings.ToLower(name) {
	case "diffuse":
		return Diffuse, true
	case "conductor":
		return Conductor, true
	case "roughconductor":
		return RoughConductor, true
	case "dielectric":
		return Dielectric, true
	case "roughdielectric":
		return RoughDielectric, true
	case "plastic":
		return Plastic, true
	case "roughplastic":
		return RoughPlastic, true
	case "thindielectric":
		return ThinDielectric, true
	case "principled":
		return Principled, true
	case "blendbsdf", "blend":
		return Blend, true
	case "mask":
		return Mask, true
	case "null":
		return Null, true
	}
	return Diffuse, false
}

func (t Type) String() string {
	switch t {
	case Diffuse:
		return "diffuse"
	case Conductor:
		return "conductor"
	case RoughConductor:
		return "roughconductor"
	case Dielectric:
		return "dielectric"
	case RoughDielectric:
		return "roughdielectric"
	case Plastic:
		return "plastic"
	case RoughPlastic:
		return "roughplastic"
	case ThinDielectric:
		return "thindielectric"
	case Principled:
		return "principled"
	case Blend:
		return "blendbsdf"
	case Mask:
		return "mask"
	case Null:
		return "null"
	}
	return "invalid"
}

// NoTexture marks an unbound texture slot or child reference.
const NoTexture int32 = -1

// Params is the flat material record. Fields that the active Type does not
// use are ignored by every lobe.
type Params struct {
	Type Type

	BaseColor core.Vec3
	Roughness float64 // < SmoothThreshold selects the delta branch

	// Conductor complex index of refraction, RGB approximation.
	Eta            core.Vec3
	K              core.Vec3
	UsesComplexIOR bool // false means a generic mirror tinted by BaseColor

	IntIOR float64
	ExtIOR float64

	Metallic       float64
	Specular       float64
	SpecTint       float64
	Sheen          float64
	SheenTint      float64
	Clearcoat      float64
	ClearcoatGloss float64
	SpecTrans      float64

	Opacity     float64 // Mask
	BlendWeight float64 // Blend: probability of the second child
	Nonlinear   bool    // Plastic internal scattering model

	BaseColorTexture int32
	RoughnessTexture int32
	NormalTexture    int32

	// Children index the material table for Blend (both) and Mask (first).
	Children [2]int32
}

// DefaultParams returns the defaults every parsed material starts from.
func DefaultParams() Params {
	return Params{
		Type:             Diffuse,
		BaseColor:        core.Splat(0.5),
		Roughness:        0.1,
		Eta:              core.Splat(1),
		K:                core.Splat(0),
		IntIOR:           1.5046,
		ExtIOR:           1.000277,
		Specular:         0.5,
		Opacity:          1,
		BlendWeight:      0.5,
		BaseColorTexture: NoTexture,
		RoughnessTexture: NoTexture,
		NormalTexture:    NoTexture,
		Children:         [2]int32{NoTexture, NoTexture},
	}
}

// NewDiffuse returns a Lambertian material
func NewDiffuse(albedo core.Vec3) Params {
	p := DefaultParams()
	p.BaseColor = albedo
	p.Roughness = 1
	return p
}

// NewDielectric returns a glass-like material; roughness 0 gives a smooth interface
func NewDielectric(intIOR, roughness float64) Params {
	p := DefaultParams()
	p.Type = Dielectric
	if roughness >= SmoothThreshold {
		p.Type = RoughDielectric
	}
	p.IntIOR = intIOR
	p.Roughness = roughness
	return p
}

// NewConductor returns a metal using a named preset (see LookupConductor).
// Unknown names produce a generic mirror tinted by BaseColor.
func NewConductor(preset string, roughness float64) Params {
	p := DefaultParams()
	p.Type = Conductor
	if roughness >= SmoothThreshold {
		p.Type = RoughConductor
	}
	p.BaseColor = core.Splat(1)
	p.Roughness = roughness
	p.Metallic = 1
	if eta, k, ok := LookupConductor(preset); ok && preset != "none" {
		p.Eta, p.K, p.UsesComplexIOR = eta, k, true
	}
	return p
}

// IsSmooth reports whether the delta branch applies
func (p *Params) IsSmooth() bool {
	return p.Roughness < SmoothThreshold
}

// Alpha returns the GGX width for this material's roughness
func (p *Params) Alpha() float64 {
	return RoughnessToAlpha(p.Roughness)
}

// Table is the dense, index-addressable material array of a scene.
type Table []Params

// At returns the record at index i, or a mid-grey diffuse for an out-of-range index.
func (t Table) At(i int32) Params {
	if i < 0 || int(i) >= len(t) {
		return NewDiffuse(core.Splat(0.5))
	}
	return t[i]
}
