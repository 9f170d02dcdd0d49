package loaders

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
)

// texture slots a bsdf property name can bind
const (
	slotNone = iota
	slotBaseColor
	slotRoughness
	slotNormal
)

func textureSlot(name string) int {
	switch name {
	case "reflectance", "diffuse_reflectance", "base_color":
		return slotBaseColor
	case "alpha", "roughness":
		return slotRoughness
	case "normalmap":
		return slotNormal
	}
	return slotNone
}

// bsdfDefaults returns the per-plugin defaults of a Mitsuba bsdf
func bsdfDefaults(t material.Type) material.Params {
	p := material.DefaultParams()
	p.Type = t
	switch t {
	case material.Diffuse:
		p.Roughness = 1
	case material.Conductor:
		p.Roughness = 0
		p.BaseColor = core.Splat(1)
		p.Metallic = 1
	case material.RoughConductor:
		p.Roughness = 0.1
		p.BaseColor = core.Splat(1)
		p.Metallic = 1
	case material.Dielectric, material.ThinDielectric:
		p.Roughness = 0
	case material.RoughDielectric:
		p.Roughness = 0.1
	case material.Plastic:
		p.Roughness = 0
		p.IntIOR = 1.49
	case material.RoughPlastic:
		p.Roughness = 0.1
		p.IntIOR = 1.49
	case material.Mask:
		p.Opacity = 0.5
	}
	return p
}

// parseBSDF appends the material described by n (and any nested children)
// and returns its table index
func (p *MitsubaParser) parseBSDF(n *xmlNode) int32 {
	bsdfType := p.attr(n, "type")

	switch bsdfType {
	case "twosided":
		return p.parseWrapped(n, bsdfType)
	case "normalmap", "bumpmap":
		inner := p.parseWrapped(n, bsdfType)
		params := p.scene.Materials[inner]
		if bsdfType == "bumpmap" {
			p.warnf("bump maps are not supported, using the inner bsdf")
			return inner
		}
		for i := range n.Children {
			child := &n.Children[i]
			if textureSlot(p.attr(child, "name")) == slotNormal {
				params.NormalTexture = p.parseTextureRef(child, slotNormal)
			}
		}
		// Copy so a shared inner material keeps its own normals
		return p.addMaterial(params)
	}

	t, ok := material.ParseType(bsdfType)
	if !ok {
		p.warnf("unsupported bsdf type, using diffuse", zap.String("type", bsdfType))
	}
	params := bsdfDefaults(t)

	// Reserve the slot so nested children land after their parent
	idx := p.addMaterial(params)
	var children []int32

	for i := range n.Children {
		child := &n.Children[i]
		name := p.attr(child, "name")
		switch child.name() {
		case "bsdf":
			children = append(children, p.parseBSDF(child))
		case "ref":
			if slot := textureSlot(name); slot != slotNone {
				p.bindTexture(&params, slot, p.parseTextureRef(child, slot))
				continue
			}
			children = append(children, p.lookupMaterial(p.attr(child, "id")))
		case "texture":
			slot := textureSlot(name)
			if slot == slotNone {
				p.warnf("texture bound to unsupported property", zap.String("name", name))
				continue
			}
			p.bindTexture(&params, slot, p.parseTextureRef(child, slot))
		case "rgb", "spectrum":
			c, err := parseColor(p.attr(child, "value"))
			if err != nil {
				p.fail(fmt.Errorf("bsdf %q color %q: %w", bsdfType, name, err))
				continue
			}
			p.applyColor(&params, name, c)
		case "float":
			v, err := strconv.ParseFloat(strings.TrimSpace(p.attr(child, "value")), 64)
			if err != nil {
				p.fail(fmt.Errorf("bsdf %q float %q: %w", bsdfType, name, err))
				continue
			}
			p.applyFloat(&params, name, v)
		case "string":
			p.applyString(&params, name, p.attr(child, "value"))
		case "boolean":
			if name == "nonlinear" {
				params.Nonlinear = parseBool(p.attr(child, "value"))
			}
		}
	}

	switch t {
	case material.Blend:
		if len(children) != 2 {
			p.fail(fmt.Errorf("blendbsdf needs 2 nested bsdfs, got %d", len(children)))
		}
		for i := 0; i < len(children) && i < 2; i++ {
			params.Children[i] = children[i]
		}
	case material.Mask:
		if len(children) == 0 {
			p.fail(fmt.Errorf("mask without a nested bsdf"))
		} else {
			params.Children[0] = children[0]
		}
	}

	p.scene.Materials[idx] = params
	return idx
}

// parseWrapped returns the single bsdf inside a wrapper plugin
func (p *MitsubaParser) parseWrapped(n *xmlNode, wrapper string) int32 {
	for i := range n.Children {
		child := &n.Children[i]
		switch child.name() {
		case "bsdf":
			return p.parseBSDF(child)
		case "ref":
			if textureSlot(p.attr(child, "name")) == slotNone {
				return p.lookupMaterial(p.attr(child, "id"))
			}
		}
	}
	p.fail(fmt.Errorf("%s without a nested bsdf", wrapper))
	return p.addMaterial(material.NewDiffuse(core.Splat(0.5)))
}

func (p *MitsubaParser) applyColor(params *material.Params, name string, c core.Vec3) {
	switch name {
	case "reflectance", "diffuse_reflectance", "specular_reflectance", "base_color":
		params.BaseColor = c
	case "eta":
		params.Eta = c
		params.UsesComplexIOR = true
	case "k":
		params.K = c
		params.UsesComplexIOR = true
	case "opacity":
		params.Opacity = c.Average()
	case "weight":
		params.BlendWeight = c.Average()
	default:
		p.warnf("ignoring bsdf color property", zap.String("name", name))
	}
}

func (p *MitsubaParser) applyFloat(params *material.Params, name string, v float64) {
	switch name {
	case "alpha":
		// Mitsuba alpha is the GGX width; roughness squares back to it
		params.Roughness = math.Sqrt(math.Max(v, 0))
	case "roughness":
		params.Roughness = v
	case "int_ior":
		params.IntIOR = v
	case "ext_ior":
		params.ExtIOR = v
	case "eta":
		// A scalar eta is relative to the outside
		params.IntIOR = v
		params.ExtIOR = 1
	case "metallic":
		params.Metallic = v
	case "specular":
		params.Specular = v
	case "spec_tint":
		params.SpecTint = v
	case "sheen":
		params.Sheen = v
	case "sheen_tint":
		params.SheenTint = v
	case "clearcoat":
		params.Clearcoat = v
	case "clearcoat_gloss":
		params.ClearcoatGloss = v
	case "spec_trans":
		params.SpecTrans = v
	case "opacity":
		params.Opacity = v
	case "weight":
		params.BlendWeight = v
	default:
		p.warnf("ignoring bsdf float property", zap.String("name", name))
	}
}

func (p *MitsubaParser) applyString(params *material.Params, name, value string) {
	switch name {
	case "material":
		eta, k, ok := material.LookupConductor(value)
		if !ok {
			p.fail(fmt.Errorf("unknown conductor preset %q", value))
			return
		}
		params.Eta, params.K = eta, k
		params.UsesComplexIOR = strings.ToLower(value) != "none"
	case "int_ior", "ext_ior":
		ior, ok := material.LookupIOR(value)
		if !ok {
			p.fail(fmt.Errorf("unknown IOR preset %q", value))
			return
		}
		if name == "int_ior" {
			params.IntIOR = ior
		} else {
			params.ExtIOR = ior
		}
	case "distribution":
		if value != "ggx" {
			p.warnf("only the ggx distribution is supported", zap.String("distribution", value))
		}
	default:
		p.warnf("ignoring bsdf string property", zap.String("name", name))
	}
}

func (p *MitsubaParser) bindTexture(params *material.Params, slot int, tex int32) {
	switch slot {
	case slotBaseColor:
		params.BaseColorTexture = tex
	case slotRoughness:
		params.RoughnessTexture = tex
	case slotNormal:
		params.NormalTexture = tex
	}
}

// parseTextureRef registers the bitmap behind a <texture> or <ref> and
// returns its index in SceneDescription.Textures
func (p *MitsubaParser) parseTextureRef(n *xmlNode, slot int) int32 {
	if n.name() == "ref" {
		id := p.attr(n, "id")
		def, ok := p.textureIDs[id]
		if !ok {
			p.fail(fmt.Errorf("unknown texture reference %q", id))
			return material.NoTexture
		}
		n = def
	}

	if texType := p.attr(n, "type"); texType != "bitmap" {
		p.warnf("skipping unsupported texture", zap.String("type", texType))
		return material.NoTexture
	}
	filename := p.stringProp(n, "filename")
	if filename == "" {
		p.fail(fmt.Errorf("bitmap texture without filename"))
		return material.NoTexture
	}

	// Colors are sRGB-encoded unless the file says raw; data maps are linear
	space := SRGB
	if slot != slotBaseColor {
		space = Linear
	}
	if raw := p.property(n, "boolean", "raw"); raw != nil && parseBool(p.attr(raw, "value")) {
		space = Linear
	}

	ref := TextureRef{Path: p.resolve(filename), Space: space}
	if idx, ok := p.textureIdx[ref]; ok {
		return idx
	}
	idx := int32(len(p.scene.Textures))
	p.scene.Textures = append(p.scene.Textures, ref)
	p.textureIdx[ref] = idx
	return idx
}
