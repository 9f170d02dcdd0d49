package server

import (
	"fmt"
	"math"
	"net/http"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/geometry"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool           `json:"hit"`
	MaterialType string         `json:"materialType"`
	Material     int32          `json:"material"`
	Instance     int32          `json:"instance"`
	Triangle     int            `json:"triangle"`
	Emitter      bool           `json:"emitter"`
	Point        [3]float64     `json:"point"`
	Normal       [3]float64     `json:"normal"`
	UV           [2]float64     `json:"uv"`
	Distance     float64        `json:"distance"`
	FrontFace    bool           `json:"frontFace"`
	Properties   map[string]any `json:"properties"`
}

// handleInspect casts a ray through one pixel and describes what it hits
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sceneID := q.Get("scene")
	if sceneID == "" {
		sceneID = defaultSceneID
	}
	path, err := s.resolveScene(sceneID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	req := &RenderRequest{}
	if err := s.parseSize(q, req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cfg := *s.config
	cfg.Render.Width, cfg.Render.Height = req.Width, req.Height

	sceneObj, err := scene.Load(path, cfg.SceneOptions(s.log))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	camCfg := sceneObj.Camera.Config()
	x, err := parseIntParam(q, "x", -1, 0, camCfg.Width-1)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	y, err := parseIntParam(q, "y", -1, 0, camCfg.Height-1)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if x < 0 || y < 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x and y are required"})
		return
	}

	s.writeJSON(w, http.StatusOK, inspectPixel(sceneObj, x, y))
}

// inspectPixel casts the center ray of pixel (x, y) and reports the first hit
func inspectPixel(sceneObj *scene.Scene, x, y int) InspectResponse {
	ray := sceneObj.Camera.GenerateRay(x, y, core.NewVec2(0.5, 0.5))
	hit, ok := sceneObj.Intersect(ray, 1e-4, math.Inf(1))
	if !ok {
		return InspectResponse{Hit: false, Instance: -1, Material: -1, Triangle: -1}
	}
	return describeHit(sceneObj, ray, hit)
}

func describeHit(sceneObj *scene.Scene, ray core.Ray, hit geometry.Hit) InspectResponse {
	inst := sceneObj.Instance(hit.Instance)
	params := sceneObj.Materials.At(inst.Material)

	resp := InspectResponse{
		Hit:          true,
		MaterialType: params.Type.String(),
		Material:     inst.Material,
		Instance:     hit.Instance,
		Triangle:     hit.Triangle,
		Emitter:      inst.Emitter,
		Point:        vec3Array(hit.Point),
		Normal:       vec3Array(hit.Normal),
		UV:           [2]float64{hit.UV.X, hit.UV.Y},
		Distance:     hit.T,
		FrontFace:    hit.Normal.Dot(ray.Direction) < 0,
		Properties:   materialProperties(sceneObj.Materials, params, 0),
	}
	if inst.Emitter {
		resp.Properties["emission"] = vec3Array(inst.Emission)
	}
	return resp
}

// materialProperties lists the parameters the material's type reads. Blend
// and Mask children are described recursively.
func materialProperties(table material.Table, p material.Params, depth int) map[string]any {
	props := map[string]any{}

	switch p.Type {
	case material.Diffuse:
		props["baseColor"] = vec3Array(p.BaseColor)
		props["color"] = hexColor(p.BaseColor)
	case material.Conductor, material.RoughConductor:
		props["roughness"] = p.Roughness
		if p.UsesComplexIOR {
			props["eta"] = vec3Array(p.Eta)
			props["k"] = vec3Array(p.K)
		} else {
			props["specularReflectance"] = vec3Array(p.BaseColor)
		}
	case material.Dielectric, material.RoughDielectric, material.ThinDielectric:
		props["intIOR"] = p.IntIOR
		props["extIOR"] = p.ExtIOR
		props["roughness"] = p.Roughness
		props["color"] = "#ffffff"
	case material.Plastic, material.RoughPlastic:
		props["baseColor"] = vec3Array(p.BaseColor)
		props["color"] = hexColor(p.BaseColor)
		props["roughness"] = p.Roughness
		props["intIOR"] = p.IntIOR
		props["nonlinear"] = p.Nonlinear
	case material.Principled:
		props["baseColor"] = vec3Array(p.BaseColor)
		props["color"] = hexColor(p.BaseColor)
		props["roughness"] = p.Roughness
		props["metallic"] = p.Metallic
		props["specular"] = p.Specular
		props["specTrans"] = p.SpecTrans
		props["clearcoat"] = p.Clearcoat
		props["sheen"] = p.Sheen
	case material.Blend:
		props["weight"] = p.BlendWeight
		if depth < 4 {
			props["first"] = childInfo(table, p.Children[0], depth)
			props["second"] = childInfo(table, p.Children[1], depth)
		}
	case material.Mask:
		props["opacity"] = p.Opacity
		if depth < 4 {
			props["material"] = childInfo(table, p.Children[0], depth)
		}
	}

	if p.BaseColorTexture != material.NoTexture {
		props["baseColorTexture"] = p.BaseColorTexture
	}
	if p.RoughnessTexture != material.NoTexture {
		props["roughnessTexture"] = p.RoughnessTexture
	}
	if p.NormalTexture != material.NoTexture {
		props["normalTexture"] = p.NormalTexture
	}
	return props
}

func childInfo(table material.Table, index int32, depth int) map[string]any {
	child := table.At(index)
	return map[string]any{
		"index":      index,
		"type":       child.Type.String(),
		"properties": materialProperties(table, child, depth+1),
	}
}

func vec3Array(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func hexColor(c core.Vec3) string {
	clamp := func(v float64) int { return int(math.Max(0, math.Min(1, v)) * 255) }
	return fmt.Sprintf("#%02x%02x%02x", clamp(c.X), clamp(c.Y), clamp(c.Z))
}
