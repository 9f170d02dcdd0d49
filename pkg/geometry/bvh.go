package geometry

import (
	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode struct {
	BoundingBox core.AABB
	Left        *BVHNode
	Right       *BVHNode
	Shapes      []Shape // Multiple shapes for leaf nodes (nil for internal nodes)
}

// BVH is the scene's intersection oracle: nearest hit along a ray or a miss
type BVH struct {
	Root   *BVHNode
	Center core.Vec3 // finite scene center
	Radius float64   // bounding sphere radius around Center
}

// NewBVH constructs a BVH from a slice of shapes
func NewBVH(shapes []Shape) *BVH {
	if len(shapes) == 0 {
		return &BVH{}
	}

	// Copy so partitioning never reorders the caller's slice
	shapesCopy := make([]Shape, len(shapes))
	copy(shapesCopy, shapes)

	root := buildBVH(shapesCopy, 0)
	center := root.BoundingBox.Center()
	return &BVH{
		Root:   root,
		Center: center,
		Radius: root.BoundingBox.Max.Subtract(center).Length(),
	}
}

// Leaf threshold: if we have this many or fewer shapes, store them in a leaf node
const leafThreshold = 8

// maxDepth stops splitting degenerate inputs such as many coincident triangles
const maxDepth = 64

// buildBVH recursively builds the BVH by splitting at the midpoint of the
// longest axis
func buildBVH(shapes []Shape, depth int) *BVHNode {
	boundingBox := core.EmptyAABB()
	for _, shape := range shapes {
		boundingBox = boundingBox.Union(shape.BoundingBox())
	}

	if len(shapes) <= leafThreshold || depth >= maxDepth {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	axis, splitPos, ok := findSplit(shapes)
	if !ok {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	leftShapes, rightShapes := partitionShapes(shapes, axis, splitPos)
	if len(leftShapes) == 0 || len(rightShapes) == 0 {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	return &BVHNode{
		BoundingBox: boundingBox,
		Left:        buildBVH(leftShapes, depth+1),
		Right:       buildBVH(rightShapes, depth+1),
	}
}

// findSplit picks the longest axis of the centroid bounds and splits at its midpoint
func findSplit(shapes []Shape) (axis int, splitPos float64, ok bool) {
	centroids := core.EmptyAABB()
	for _, shape := range shapes {
		centroids = centroids.Extend(shape.BoundingBox().Center())
	}

	axis = centroids.LongestAxis()
	minVal, maxVal := centroids.Min.Get(axis), centroids.Max.Get(axis)
	if maxVal <= minVal {
		return 0, 0, false
	}
	return axis, (minVal + maxVal) * 0.5, true
}

// partitionShapes splits shapes in place by centroid; the halves share the backing array
func partitionShapes(shapes []Shape, axis int, splitPos float64) ([]Shape, []Shape) {
	i, j := 0, len(shapes)-1
	for i <= j {
		if shapes[i].BoundingBox().Center().Get(axis) < splitPos {
			i++
			continue
		}
		shapes[i], shapes[j] = shapes[j], shapes[i]
		j--
	}
	return shapes[:i], shapes[i:]
}

// Hit tests if a ray intersects any shape in the BVH and fills hit with the nearest one
func (bvh *BVH) Hit(ray core.Ray, tMin, tMax float64, hit *Hit) bool {
	if bvh == nil || bvh.Root == nil {
		return false
	}
	return bvh.hitNode(bvh.Root, ray, tMin, tMax, hit)
}

// Intersect returns the nearest hit, or false on a miss
func (bvh *BVH) Intersect(ray core.Ray, tMin, tMax float64) (Hit, bool) {
	var hit Hit
	ok := bvh.Hit(ray, tMin, tMax, &hit)
	return hit, ok
}

// hitNode recursively tests ray intersection with BVH nodes
func (bvh *BVH) hitNode(node *BVHNode, ray core.Ray, tMin, tMax float64, hit *Hit) bool {
	if !node.BoundingBox.Hit(ray, tMin, tMax) {
		return false
	}

	hitAnything := false
	closestSoFar := tMax

	if node.Shapes != nil {
		for _, shape := range node.Shapes {
			if shape.Hit(ray, tMin, closestSoFar, hit) {
				hitAnything = true
				closestSoFar = hit.T
			}
		}
		return hitAnything
	}

	if node.Left != nil && bvh.hitNode(node.Left, ray, tMin, closestSoFar, hit) {
		hitAnything = true
		closestSoFar = hit.T
	}
	if node.Right != nil && bvh.hitNode(node.Right, ray, tMin, closestSoFar, hit) {
		hitAnything = true
	}
	return hitAnything
}

// BoundingBox returns the overall bounding box of the BVH
func (bvh *BVH) BoundingBox() core.AABB {
	if bvh.Root == nil {
		return core.AABB{}
	}
	return bvh.Root.BoundingBox
}

// Stats summarizes the tree shape
type Stats struct {
	TotalNodes  int
	LeafNodes   int
	MaxDepth    int
	AvgDepth    float64
	TotalShapes int
}

// Stats returns statistics about the BVH structure
func (bvh *BVH) Stats() Stats {
	if bvh.Root == nil {
		return Stats{}
	}

	stats := Stats{}
	bvh.collectStats(bvh.Root, 0, &stats)
	if stats.LeafNodes > 0 {
		stats.AvgDepth /= float64(stats.LeafNodes)
	}
	return stats
}

// collectStats recursively collects statistics about the BVH
func (bvh *BVH) collectStats(node *BVHNode, depth int, stats *Stats) {
	stats.TotalNodes++
	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}

	if node.Shapes != nil {
		stats.LeafNodes++
		stats.TotalShapes += len(node.Shapes)
		stats.AvgDepth += float64(depth)
		return
	}
	if node.Left != nil {
		bvh.collectStats(node.Left, depth+1, stats)
	}
	if node.Right != nil {
		bvh.collectStats(node.Right, depth+1, stats)
	}
}
