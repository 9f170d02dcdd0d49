package geometry

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Triangle is one face of a Mesh
type Triangle struct {
	mesh       *Mesh
	index      int // triangle number within the mesh
	i0, i1, i2 int // vertex indices
	normal     core.Vec3
	bbox       core.AABB
}

// NewMeshTriangle creates the triangle with the given number from the mesh arrays
func NewMeshTriangle(mesh *Mesh, index int) *Triangle {
	t := &Triangle{
		mesh:  mesh,
		index: index,
		i0:    mesh.Indices[index*3],
		i1:    mesh.Indices[index*3+1],
		i2:    mesh.Indices[index*3+2],
	}
	v0, v1, v2 := t.vertices()
	t.normal = v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize()
	t.bbox = core.NewAABBFromPoints(v0, v1, v2)
	return t
}

func (t *Triangle) vertices() (core.Vec3, core.Vec3, core.Vec3) {
	p := t.mesh.Positions
	return p[t.i0], p[t.i1], p[t.i2]
}

// Hit tests if a ray intersects with the triangle using the Möller-Trumbore algorithm
func (t *Triangle) Hit(ray core.Ray, tMin, tMax float64, hit *Hit) bool {
	const epsilon = 1e-12

	v0, v1, v2 := t.vertices()
	edge1 := v1.Subtract(v0)
	edge2 := v2.Subtract(v0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)

	// Ray lies in the plane of the triangle
	if a > -epsilon && a < epsilon {
		return false
	}

	f := 1.0 / a
	s := ray.Origin.Subtract(v0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return false
	}

	tParam := f * edge2.Dot(q)
	if tParam < tMin || tParam > tMax {
		return false
	}

	w := 1 - u - v
	hit.T = tParam
	hit.Point = ray.At(tParam)
	hit.Normal = t.normal
	hit.Shading = t.shadingNormal(w, u, v)
	// Vertex normals define the outside when the winding disagrees
	if hit.Shading.Dot(hit.Normal) < 0 {
		hit.Normal = hit.Normal.Negate()
	}
	hit.UV = t.interpolateUV(w, u, v)
	hit.Instance = t.mesh.Instances[t.index]
	hit.Triangle = t.index
	return true
}

// shadingNormal interpolates vertex normals, falling back to the face normal
func (t *Triangle) shadingNormal(w, u, v float64) core.Vec3 {
	n := t.mesh.Normals
	if len(n) == 0 {
		return t.normal
	}
	s := n[t.i0].Multiply(w).Add(n[t.i1].Multiply(u)).Add(n[t.i2].Multiply(v))
	if s.LengthSquared() < 1e-12 || !s.IsFinite() {
		return t.normal
	}
	return s.Normalize()
}

func (t *Triangle) interpolateUV(w, u, v float64) core.Vec2 {
	uvs := t.mesh.UVs
	if len(uvs) == 0 {
		return core.NewVec2(u, v)
	}
	return uvs[t.i0].Multiply(w).Add(uvs[t.i1].Multiply(u)).Add(uvs[t.i2].Multiply(v))
}

// BoundingBox returns the axis-aligned bounding box for this triangle
func (t *Triangle) BoundingBox() core.AABB {
	return t.bbox
}
