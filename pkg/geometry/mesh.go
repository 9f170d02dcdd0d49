package geometry

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Mesh holds the global vertex and index arrays every instance's triangles
// point into. Normals and UVs hold one entry per position; a zero normal means
// the vertex has none.
type Mesh struct {
	Positions []core.Vec3
	Normals   []core.Vec3
	UVs       []core.Vec2
	Indices   []int
	Instances []int32 // owning instance per triangle
}

// Append adds one instance's triangles and returns the vertex and index
// offsets at which they were stored. Missing normals or UVs are zero-filled.
func (m *Mesh) Append(instance int32, positions, normals []core.Vec3, uvs []core.Vec2, indices []int) (vertexOffset, indexOffset int) {
	vertexOffset = len(m.Positions)
	indexOffset = len(m.Indices)

	m.Positions = append(m.Positions, positions...)
	for i := range positions {
		n := core.Vec3{}
		if i < len(normals) {
			n = normals[i]
		}
		m.Normals = append(m.Normals, n)

		uv := core.Vec2{}
		if i < len(uvs) {
			uv = uvs[i]
		}
		m.UVs = append(m.UVs, uv)
	}

	for _, idx := range indices {
		m.Indices = append(m.Indices, vertexOffset+idx)
	}
	for i := 0; i < len(indices)/3; i++ {
		m.Instances = append(m.Instances, instance)
	}
	return vertexOffset, indexOffset
}

// TriangleCount returns the number of triangles
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangles creates one intersectable triangle per index triple
func (m *Mesh) Triangles() []Shape {
	shapes := make([]Shape, m.TriangleCount())
	for i := range shapes {
		shapes[i] = NewMeshTriangle(m, i)
	}
	return shapes
}
