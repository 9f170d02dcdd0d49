package core

import "math"

// Frame is an orthonormal shading basis. N is the surface normal and
// (T, B, N) is right-handed. In local coordinates the normal is +Z.
type Frame struct {
	T, B, N Vec3
}

// BuildOrthonormalBasis returns two tangents completing the unit normal n to a
// right-handed orthonormal basis. The tangent is built from whichever of the
// X or Y components dominates so the normalization never divides by a tiny length.
func BuildOrthonormalBasis(n Vec3) (t, b Vec3) {
	if math.Abs(n.X) > math.Abs(n.Y) {
		invLen := 1.0 / math.Sqrt(n.X*n.X+n.Z*n.Z)
		t = Vec3{-n.Z * invLen, 0, n.X * invLen}
	} else {
		invLen := 1.0 / math.Sqrt(n.Y*n.Y+n.Z*n.Z)
		t = Vec3{0, n.Z * invLen, -n.Y * invLen}
	}
	b = n.Cross(t)
	return t, b
}

// NewFrame builds a shading frame around the unit normal n
func NewFrame(n Vec3) Frame {
	t, b := BuildOrthonormalBasis(n)
	return Frame{T: t, B: b, N: n}
}

// ToWorld rotates a local direction (z = normal) into world space
func (f Frame) ToWorld(d Vec3) Vec3 {
	return f.T.Multiply(d.X).Add(f.B.Multiply(d.Y)).Add(f.N.Multiply(d.Z))
}

// ToLocal rotates a world direction into the frame's local space
func (f Frame) ToLocal(d Vec3) Vec3 {
	return Vec3{d.Dot(f.T), d.Dot(f.B), d.Dot(f.N)}
}

// LocalToWorld rotates localDir from the frame around n into world space
func LocalToWorld(localDir, n Vec3) Vec3 {
	return NewFrame(n).ToWorld(localDir)
}

// WorldToLocal is the inverse of LocalToWorld
func WorldToLocal(worldDir, n Vec3) Vec3 {
	return NewFrame(n).ToLocal(worldDir)
}
