package scene

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/loaders"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
)

// CornellName identifies the built-in scene wherever a scene path is accepted
const CornellName = "builtin:cornell"

// NewCornellDescription creates a classic Cornell box with quad walls, an area
// light, a rough gold block and a glass block
func NewCornellDescription() *loaders.SceneDescription {
	desc := &loaders.SceneDescription{
		Path:        CornellName,
		MaterialIDs: make(map[string]int32),
		Sensor: loaders.SensorDesc{
			Position: core.NewVec3(278, 278, -800), // outside the box looking in
			Target:   core.NewVec3(278, 278, 0),
			Up:       core.NewVec3(0, 1, 0),
			FOV:      40,
			FOVAxis:  "y",
			Width:    400,
			Height:   400,
		},
		Environment: loaders.EnvironmentDesc{Kind: loaders.ConstantEnvironment, Intensity: 1}, // black background
	}

	addMaterial := func(id string, p material.Params) int32 {
		desc.Materials = append(desc.Materials, p)
		idx := int32(len(desc.Materials) - 1)
		desc.MaterialIDs[id] = idx
		return idx
	}
	white := addMaterial("white", material.NewDiffuse(core.NewVec3(0.73, 0.73, 0.73)))
	red := addMaterial("red", material.NewDiffuse(core.NewVec3(0.65, 0.05, 0.05)))
	green := addMaterial("green", material.NewDiffuse(core.NewVec3(0.12, 0.45, 0.15)))
	gold := addMaterial("gold", material.NewConductor("Au", 0.3))
	glass := addMaterial("glass", material.NewDielectric(1.5, 0))

	addShape := func(mesh *loaders.MeshData, mat int32) *loaders.ShapeDesc {
		desc.Shapes = append(desc.Shapes, loaders.ShapeDesc{Type: "builtin", Mesh: mesh, Material: mat})
		return &desc.Shapes[len(desc.Shapes)-1]
	}

	// Cornell box dimensions (standard 555x555x555 units)
	const boxSize = 555.0

	addShape(quad(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(boxSize, 0, 0)), white)             // floor
	addShape(quad(core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize)), white)       // ceiling
	addShape(quad(core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0)), white)       // back wall
	addShape(quad(core.NewVec3(boxSize, 0, 0), core.NewVec3(0, boxSize, 0), core.NewVec3(0, 0, boxSize)), red)         // left wall, seen from the camera
	addShape(quad(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0)), green)             // right wall

	// Ceiling light, slightly below the ceiling and facing down
	const lightSize = 130.0
	lightOffset := (boxSize - lightSize) / 2.0
	light := addShape(quad(
		core.NewVec3(lightOffset, boxSize-1, lightOffset),
		core.NewVec3(lightSize, 0, 0),
		core.NewVec3(0, 0, lightSize),
	), white)
	light.Emitter = true
	light.Emission = core.NewVec3(15, 15, 15)

	addShape(block(core.NewVec3(185, 165, 169), core.NewVec3(82.5, 165, 82.5), 15), gold)
	addShape(block(core.NewVec3(370, 82.5, 351), core.NewVec3(82.5, 82.5, 82.5), -18), glass)

	return desc
}

// quad builds a parallelogram from a corner and two edges; the face normal is u × v
func quad(corner, u, v core.Vec3) *loaders.MeshData {
	n := u.Cross(v).Normalize()
	return &loaders.MeshData{
		Positions: []core.Vec3{corner, corner.Add(u), corner.Add(u).Add(v), corner.Add(v)},
		Normals:   []core.Vec3{n, n, n, n},
		UVs: []core.Vec2{
			core.NewVec2(0, 0), core.NewVec2(1, 0), core.NewVec2(1, 1), core.NewVec2(0, 1),
		},
		Indices: []int{0, 1, 2, 0, 2, 3},
	}
}

// block builds a box with the given center and half extents, rotated about Y
func block(center, half core.Vec3, degrees float64) *loaders.MeshData {
	mesh := loaders.NewCubeMesh()
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	rotate := func(v core.Vec3) core.Vec3 {
		return core.NewVec3(cos*v.X+sin*v.Z, v.Y, -sin*v.X+cos*v.Z)
	}
	mesh.Transform(
		func(p core.Vec3) core.Vec3 { return center.Add(rotate(p.MultiplyVec(half))) },
		func(n core.Vec3) core.Vec3 {
			inv := core.NewVec3(1/half.X, 1/half.Y, 1/half.Z)
			return rotate(n.MultiplyVec(inv))
		},
	)
	return mesh
}
