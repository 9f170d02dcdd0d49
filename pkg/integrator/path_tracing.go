package integrator

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// pdfEpsilon is the smallest sampling density a path continues with
const pdfEpsilon = 1e-8

// PathTracer implements unidirectional path tracing with BSDF sampling. It only
// reads the scene and is safe for concurrent use.
type PathTracer struct {
	scene      *scene.Scene
	dispatcher *material.Dispatcher
	config     Config
}

// NewPathTracer creates a path tracer over a built scene
func NewPathTracer(s *scene.Scene, config Config, plastic material.PlasticTuning) *PathTracer {
	if config.MaxBounces <= 0 {
		config.MaxBounces = DefaultConfig().MaxBounces
	}
	if config.RayEpsilon <= 0 {
		config.RayEpsilon = DefaultConfig().RayEpsilon
	}
	return &PathTracer{
		scene:      s,
		dispatcher: material.NewDispatcher(s.Materials, plastic),
		config:     config,
	}
}

// Config returns the settings the tracer was created with
func (pt *PathTracer) Config() Config {
	return pt.config
}

// Trace follows one path from ray and returns the radiance it carries back
func (pt *PathTracer) Trace(ray core.Ray, sampler core.Sampler) core.Vec3 {
	radiance := core.Vec3{}
	throughput := core.Splat(1)
	tMin := pt.config.RayEpsilon * 1e-3

	for bounce := 0; bounce < pt.config.MaxBounces; bounce++ {
		hit, ok := pt.scene.Intersect(ray, tMin, math.Inf(1))
		if !ok {
			env := pt.scene.Environment.Radiance(ray.Direction)
			radiance = radiance.Add(throughput.MultiplyVec(env))
			break
		}

		inst := pt.scene.Instance(hit.Instance)
		if inst.Emitter {
			radiance = radiance.Add(throughput.MultiplyVec(inst.Emission))
		}

		params := pt.resolveTextures(pt.scene.Materials.At(inst.Material), hit.UV)

		// Orient both normals towards the incoming ray
		frontFace := hit.Normal.Dot(ray.Direction) < 0
		n, shading := hit.Normal, hit.Shading
		if !frontFace {
			n, shading = n.Negate(), shading.Negate()
		}
		shading = pt.perturbNormal(&params, hit.UV, n, shading)

		wo := ray.Direction.Negate().Normalize()
		bs := pt.dispatcher.Sample(&params, wo, material.Surface{Normal: shading, FrontFace: frontFace}, sampler.Get3D())
		if bs.PDF < pdfEpsilon {
			break
		}
		if !bs.Refracted && n.Dot(bs.Wi) <= 0 {
			break
		}

		throughput = throughput.MultiplyVec(bs.Weight)
		if !validThroughput(throughput) {
			break
		}
		throughput = ClampFirefly(throughput, pt.config.FireflyClamp)

		if bounce >= pt.config.RRMinBounces {
			var survived bool
			throughput, survived = RussianRoulette(throughput, sampler.Get1D())
			if !survived {
				break
			}
		}

		offset := n.Multiply(pt.config.RayEpsilon)
		if bs.Refracted {
			offset = offset.Negate()
		}
		ray = core.NewRay(hit.Point.Add(offset), bs.Wi)
	}

	return radiance
}

// resolveTextures replaces texture-mapped fields with their texels at uv.
// Roughness maps store alpha.
func (pt *PathTracer) resolveTextures(p material.Params, uv core.Vec2) material.Params {
	textures := pt.scene.Textures
	if p.BaseColorTexture != material.NoTexture && textures.Get(p.BaseColorTexture) != nil {
		p.BaseColor = textures.Sample(p.BaseColorTexture, uv).RGB()
	}
	if p.RoughnessTexture != material.NoTexture && textures.Get(p.RoughnessTexture) != nil {
		alpha := math.Max(textures.Sample(p.RoughnessTexture, uv).R, 0)
		p.Roughness = math.Min(math.Sqrt(alpha), 1)
	}
	return p
}

// perturbNormal applies a tangent-space normal map around the shading normal.
// A perturbed normal below the geometric surface is discarded.
func (pt *PathTracer) perturbNormal(p *material.Params, uv core.Vec2, n, shading core.Vec3) core.Vec3 {
	if p.NormalTexture == material.NoTexture || pt.scene.Textures.Get(p.NormalTexture) == nil {
		return shading
	}
	texel := pt.scene.Textures.Sample(p.NormalTexture, uv).RGB()
	local := texel.Multiply(2).Subtract(core.Splat(1))
	if local.LengthSquared() < 1e-12 {
		return shading
	}
	perturbed := core.NewFrame(shading).ToWorld(local.Normalize()).Normalize()
	if perturbed.Dot(n) <= 0 {
		return shading
	}
	return perturbed
}

func validThroughput(t core.Vec3) bool {
	return t.IsFinite() && t.X >= 0 && t.Y >= 0 && t.Z >= 0
}

// ClampFirefly scales throughput down so its largest channel does not exceed
// ceiling, preserving chromaticity. A non-positive ceiling disables the clamp.
func ClampFirefly(throughput core.Vec3, ceiling float64) core.Vec3 {
	m := throughput.MaxComponent()
	if ceiling <= 0 || m <= ceiling {
		return throughput
	}
	return throughput.Multiply(ceiling / m)
}

// RussianRoulette keeps a path with probability p = max channel (at most 1)
// and divides the survivor by p. u is uniform in [0, 1).
func RussianRoulette(throughput core.Vec3, u float64) (core.Vec3, bool) {
	p := math.Min(throughput.MaxComponent(), 1)
	if p <= 0 || u >= p {
		return core.Vec3{}, false
	}
	return throughput.Multiply(1 / p), true
}
