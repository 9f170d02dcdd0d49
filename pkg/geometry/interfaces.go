package geometry

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Hit is the nearest intersection along a ray
type Hit struct {
	T        float64
	Point    core.Vec3
	Normal   core.Vec3 // geometric normal, not flipped towards the ray
	Shading  core.Vec3 // interpolated vertex normal, same hemisphere as Normal
	UV       core.Vec2
	Instance int32
	Triangle int
}

// Shape interface for objects that can be hit by rays
type Shape interface {
	Hit(ray core.Ray, tMin, tMax float64, hit *Hit) bool
	BoundingBox() core.AABB
}
