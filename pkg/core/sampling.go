package core

import "math"

// Sampler supplies the uniform numbers a path consumes. HashSampler is the
// renderer's implementation.
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// SampleCosineHemisphereLocal returns a cosine-weighted direction around +Z.
// The density of the returned direction is cos(theta)/pi.
func SampleCosineHemisphereLocal(sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	r := math.Sqrt(sample.Y)
	return Vec3{
		X: r * math.Cos(a),
		Y: r * math.Sin(a),
		Z: math.Sqrt(max(0, 1.0-sample.Y)),
	}
}
