package scene

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/geometry"
	"github.com/df07/go-mitsuba-pathtracer/pkg/loaders"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
	"github.com/df07/go-mitsuba-pathtracer/pkg/texture"
)

// ErrEmptyScene is returned when no shape contributes a triangle
var ErrEmptyScene = errors.New("scene has no geometry")

// Instance is one shape's record in the instance table
type Instance struct {
	Material      int32
	Emitter       bool
	Emission      core.Vec3 // zero unless Emitter
	VertexOffset  int
	IndexOffset   int
	TriangleCount int
}

// Scene contains all the elements needed for rendering
type Scene struct {
	Name        string
	Materials   material.Table
	Instances   []Instance
	Mesh        *geometry.Mesh
	BVH         *geometry.BVH // Acceleration structure for ray-object intersection
	Textures    *texture.Store
	Environment *texture.Environment
	Camera      *Camera

	// Hints from the scene file; zero when unset
	SamplesPerPixel int
	MaxDepth        int

	// Report holds non-fatal load problems (missing textures, bad meshes)
	Report error
}

// Options adjusts how a description becomes a renderable scene
type Options struct {
	Logger *zap.Logger

	// Width and Height override the film size when positive
	Width  int
	Height int

	// EnvironmentIntensity overrides an environment map's scale when positive
	EnvironmentIntensity float64

	// Gradient sky used when the scene has no global emitter
	SkyTop    core.Vec3
	SkyBottom core.Vec3
}

// DefaultOptions returns options with the standard blue-white sky
func DefaultOptions() Options {
	return Options{
		SkyTop:    core.NewVec3(0.5, 0.7, 1.0),
		SkyBottom: core.NewVec3(1.0, 1.0, 1.0),
	}
}

// Build assembles the material, instance and texture tables, the global mesh
// with its BVH, the environment and the camera
func Build(desc *loaders.SceneDescription, opts Options) (*Scene, error) {
	if desc == nil {
		return nil, ErrEmptyScene
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Scene{
		Name:            desc.Path,
		Materials:       append(material.Table(nil), desc.Materials...),
		Mesh:            &geometry.Mesh{},
		Textures:        texture.NewStore(),
		SamplesPerPixel: desc.Sensor.SampleCount,
		MaxDepth:        desc.MaxDepth,
	}
	if len(s.Materials) == 0 {
		s.Materials = material.Table{material.NewDiffuse(core.Splat(0.5))}
	}
	report := desc.Report

	report = multierr.Append(report, s.loadTextures(desc.Textures, log))

	for _, shape := range desc.Shapes {
		if shape.Mesh == nil || shape.Mesh.TriangleCount() == 0 {
			continue
		}
		s.addInstance(shape)
	}
	if s.Mesh.TriangleCount() == 0 {
		return nil, ErrEmptyScene
	}
	s.BVH = geometry.NewBVH(s.Mesh.Triangles())

	env, err := buildEnvironment(desc.Environment, opts)
	if err != nil {
		log.Warn("Environment map unavailable, using gradient sky", zap.Error(err))
		report = multierr.Append(report, err)
	}
	s.Environment = env

	s.Camera = buildCamera(desc.Sensor, opts)
	s.Report = report

	log.Info("Scene built",
		zap.String("name", s.Name),
		zap.Int("materials", len(s.Materials)),
		zap.Int("instances", len(s.Instances)),
		zap.Int("triangles", s.Mesh.TriangleCount()),
		zap.Int("textures", s.Textures.Len()),
		zap.Int("problems", len(multierr.Errors(report))))
	return s, nil
}

// loadTextures fills the store and rebinds material texture indices; a
// texture that fails to load leaves its slots unbound
func (s *Scene) loadTextures(refs []loaders.TextureRef, log *zap.Logger) error {
	var errs error
	remap := make([]int32, len(refs))
	for i, ref := range refs {
		img, err := loaders.LoadImage(ref.Path, ref.Space)
		if err != nil {
			log.Warn("Texture not loaded", zap.String("path", ref.Path), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("texture %s: %w", ref.Path, err))
			remap[i] = material.NoTexture
			continue
		}
		remap[i] = s.Textures.Add(ref.Path, img)
	}

	rebind := func(idx *int32) {
		if *idx >= 0 && int(*idx) < len(remap) {
			*idx = remap[*idx]
		} else {
			*idx = material.NoTexture
		}
	}
	for i := range s.Materials {
		m := &s.Materials[i]
		rebind(&m.BaseColorTexture)
		rebind(&m.RoughnessTexture)
		rebind(&m.NormalTexture)
	}
	return errs
}

func (s *Scene) addInstance(shape loaders.ShapeDesc) {
	inst := Instance{
		Material:      shape.Material,
		Emitter:       shape.Emitter,
		TriangleCount: shape.Mesh.TriangleCount(),
	}
	if inst.Material < 0 || int(inst.Material) >= len(s.Materials) {
		inst.Material = 0
	}
	if shape.Emitter {
		inst.Emission = shape.Emission
	}

	id := int32(len(s.Instances))
	m := shape.Mesh
	inst.VertexOffset, inst.IndexOffset = s.Mesh.Append(id, m.Positions, m.Normals, m.UVs, m.Indices)
	s.Instances = append(s.Instances, inst)
}

func buildEnvironment(desc loaders.EnvironmentDesc, opts Options) (*texture.Environment, error) {
	switch desc.Kind {
	case loaders.EnvironmentMap:
		intensity := desc.Intensity
		if opts.EnvironmentIntensity > 0 {
			intensity = opts.EnvironmentIntensity
		}
		img, err := loaders.LoadImage(desc.Filename, loaders.Linear)
		if err != nil {
			return texture.NewGradientEnvironment(opts.SkyTop, opts.SkyBottom), fmt.Errorf("environment %s: %w", desc.Filename, err)
		}
		return texture.NewMapEnvironment(img, intensity), nil
	case loaders.ConstantEnvironment:
		return texture.NewUniformEnvironment(desc.Radiance.Multiply(desc.Intensity)), nil
	}
	return texture.NewGradientEnvironment(opts.SkyTop, opts.SkyBottom), nil
}

func buildCamera(sensor loaders.SensorDesc, opts Options) *Camera {
	width, height := sensor.Width, sensor.Height
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}
	aspect := float64(width) / float64(height)
	return NewCamera(CameraConfig{
		Center: sensor.Position,
		LookAt: sensor.Target,
		Up:     sensor.Up,
		Width:  width,
		Height: height,
		VFov:   VerticalFOV(sensor.FOV, sensor.FOVAxis, aspect),
	})
}

// Intersect returns the nearest hit along ray within (tMin, tMax)
func (s *Scene) Intersect(ray core.Ray, tMin, tMax float64) (geometry.Hit, bool) {
	return s.BVH.Intersect(ray, tMin, tMax)
}

// Instance returns the record of the instance with the given id
func (s *Scene) Instance(id int32) Instance {
	if id < 0 || int(id) >= len(s.Instances) {
		return Instance{}
	}
	return s.Instances[id]
}

// TriangleCount returns the number of triangles in the scene
func (s *Scene) TriangleCount() int {
	return s.Mesh.TriangleCount()
}

// EmitterCount returns the number of emissive instances
func (s *Scene) EmitterCount() int {
	count := 0
	for _, inst := range s.Instances {
		if inst.Emitter {
			count++
		}
	}
	return count
}

// MaterialCounts returns how many table entries use each material type
func (s *Scene) MaterialCounts() map[material.Type]int {
	counts := make(map[material.Type]int)
	for _, m := range s.Materials {
		counts[m.Type]++
	}
	return counts
}
