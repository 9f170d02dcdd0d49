package loaders

import (
	"errors"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// ErrEmptyMesh is returned when a mesh file contains no triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// MeshData is an indexed triangle mesh as read from disk. Normals and UVs are
// either empty or hold one entry per position.
type MeshData struct {
	Positions []core.Vec3
	Normals   []core.Vec3
	UVs       []core.Vec2
	Indices   []int // three per triangle
}

// TriangleCount returns the number of triangles
func (m *MeshData) TriangleCount() int {
	return len(m.Indices) / 3
}

// appendFan triangulates a convex polygon around its first vertex
func (m *MeshData) appendFan(polygon []int) {
	for i := 1; i+1 < len(polygon); i++ {
		m.Indices = append(m.Indices, polygon[0], polygon[i], polygon[i+1])
	}
}

// validate rejects out-of-range indices and drops attribute arrays whose
// length does not match the position count
func (m *MeshData) validate() error {
	if len(m.Indices) == 0 {
		return ErrEmptyMesh
	}
	for _, idx := range m.Indices {
		if idx < 0 || idx >= len(m.Positions) {
			return errors.New("face index out of range")
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		m.Normals = nil
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Positions) {
		m.UVs = nil
	}
	return nil
}

// Transform applies an affine point transform and its normal transform in place
func (m *MeshData) Transform(point func(core.Vec3) core.Vec3, normal func(core.Vec3) core.Vec3) {
	for i, p := range m.Positions {
		m.Positions[i] = point(p)
	}
	for i, n := range m.Normals {
		m.Normals[i] = normal(n).Normalize()
	}
}
